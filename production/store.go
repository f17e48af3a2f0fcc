/*
store.go - Persistence interface for work orders and stage records

PURPOSE:
  Defines the boundary between the ledger and the database. The stage
  ledger is a keyed collection: one record per (order, stage), created on
  first entry and frozen once its duration is committed.

RECORD CONTRACT:
  - UpsertStageRecord() creates the record if absent. On an existing record
    it never touches EnteredAt or Duration; it only replaces the worker when
    the new worker is non-empty. The Duration of the argument is ignored.
  - CommitStageDuration() is the ONLY way a duration becomes Committed. It
    writes only when the stored duration is still Pending and reports
    whether it did. A second commit is a no-op returning false.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - production/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: The only caller of CommitStageDuration
*/
package production

import "context"

// Store persists work orders and their stage ledger.
type Store interface {
	// SaveOrder inserts or replaces a work order by ID.
	SaveOrder(ctx context.Context, order WorkOrder) error

	// GetOrder returns the order, or nil if it doesn't exist.
	GetOrder(ctx context.Context, id string) (*WorkOrder, error)

	// ListOrders returns orders matching the filter, newest first.
	ListOrders(ctx context.Context, filter OrderFilter) ([]WorkOrder, error)

	// DeleteOrder removes an order and its stage records.
	DeleteOrder(ctx context.Context, id string) error

	// UpsertStageRecord creates a record or merges the worker into it.
	UpsertStageRecord(ctx context.Context, rec StageRecord) error

	// CommitStageDuration freezes the duration of a pending record.
	// Returns false if the record is missing or already committed.
	CommitStageDuration(ctx context.Context, orderID string, stage Stage, minutes int) (bool, error)

	// StageRecord returns one record, or nil if the stage was never entered.
	StageRecord(ctx context.Context, orderID string, stage Stage) (*StageRecord, error)

	// StageRecords returns every record of an order ordered by EnteredAt.
	StageRecords(ctx context.Context, orderID string) ([]StageRecord, error)
}

// AllStageRecords is an optional extension for reports that group records
// across orders.
type AllStageRecords interface {
	AllStageRecords(ctx context.Context) ([]StageRecord, error)
}
