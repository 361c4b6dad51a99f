package ledger

import (
	"database/sql"

	accessservice "ecertify/internal/access/service"
	accessstore "ecertify/internal/access/store"
	certservice "ecertify/internal/certificate/service"
	certstore "ecertify/internal/certificate/store"
	"ecertify/internal/events"
	eventstore "ecertify/internal/events/store"
	idservice "ecertify/internal/identity/service"
	idstore "ecertify/internal/identity/store"
	linkservice "ecertify/internal/linkage/service"
	linkstore "ecertify/internal/linkage/store"
)

// Stores bundles one backend's stores with the transaction boundary that
// makes them atomic together.
type Stores struct {
	Profiles     idservice.Store
	Linkage      linkservice.Store
	Certificates certservice.Store
	Grants       accessservice.Store
	Events       events.Store
	Tx           StoreTx
}

// MemoryStores returns a fresh in-memory backend.
func MemoryStores() Stores {
	return Stores{
		Profiles:     idstore.NewInMemory(),
		Linkage:      linkstore.NewInMemory(),
		Certificates: certstore.NewInMemory(),
		Grants:       accessstore.NewInMemory(),
		Events:       eventstore.NewInMemory(),
		Tx:           newMemoryTx(),
	}
}

// PostgresStores returns a backend on db. The schema in migrations/ must be
// applied first.
func PostgresStores(db *sql.DB) Stores {
	return Stores{
		Profiles:     idstore.NewPostgres(db),
		Linkage:      linkstore.NewPostgres(db),
		Certificates: certstore.NewPostgres(db),
		Grants:       accessstore.NewPostgres(db),
		Events:       eventstore.NewPostgres(db),
		Tx:           newPostgresTx(db),
	}
}
