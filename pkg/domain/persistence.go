package domain

import "context"

// Transaction exposes the sample operations a persistence implementation must
// support within an atomic scope. Only user rows live in a store; the
// baseline is held by the service and never persisted.
type Transaction interface {
	Snapshot() TransactionView
	CreateSample(Sample) (Sample, error)
	UpdateSample(id string, mutator func(*Sample) error) (Sample, error)
	DeleteSample(id string) error
	DeleteAllSamples() int
	FindSample(id string) (Sample, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	RuleView
	// Revision is the store revision the view was taken from.
	Revision() uint64
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSample(id string) (Sample, bool)
	ListSamples() []Sample
	// Revision increments on every committed transaction that changed the
	// sample set. Analyses are stamped with the revision they observed.
	Revision() uint64
}
