package validation

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 64 << 10

// MaxEventsPageSize caps a single GET /v1/events page.
const MaxEventsPageSize = 1000
