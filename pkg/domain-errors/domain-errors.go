package domainerrors

import "errors"

// Code represents a ledger error category independent of transport layer.
// These codes describe which precondition a call violated, not HTTP terms.
type Code string

const (
	// Input and lifecycle violations.
	CodeInvalidInput      Code = "invalid_input"
	CodeAlreadyRegistered Code = "already_registered"
	CodeNotRegistered     Code = "not_registered"
	CodeInvalidTarget     Code = "invalid_target"
	CodeOnlyStudent       Code = "only_student"

	// Linkage state violations.
	CodeAlreadyLinked    Code = "already_linked"
	CodeSameInstitute    Code = "same_institute"
	CodeNoPendingRequest Code = "no_pending_request"
	CodeNotLinked        Code = "not_linked"

	// Relationship and record violations.
	CodeUnauthorized    Code = "unauthorized"
	CodeAlreadyVerified Code = "already_verified"
	CodeOutOfRange      Code = "out_of_range"
	CodeSelfGrant       Code = "self_grant"

	// Infrastructure and transport.
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeRateLimited Code = "rate_limited"
	CodeTimeout     Code = "timeout"
	CodeInternal    Code = "internal_error"
)

// Error carries a Code through any layer. The message is for humans; callers
// branch on the code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, whatever the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap adds msg to err. A code already in err's chain wins over code, so a
// rule violation stays a rule violation however many layers annotate it.
func Wrap(err error, code Code, msg string) error {
	if e := outermost(err); e != nil {
		code = e.Code
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost *Error in err's chain has code.
func HasCode(err error, code Code) bool {
	e := outermost(err)
	return e != nil && e.Code == code
}

// CodeOf is the outermost code in err's chain, or CodeInternal if there is none.
func CodeOf(err error) Code {
	if e := outermost(err); e != nil {
		return e.Code
	}
	return CodeInternal
}

func outermost(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
