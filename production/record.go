package production

import (
	"strconv"
	"time"
)

// =============================================================================
// DURATION - Pending | Committed(minutes)
// =============================================================================

// Duration is the business time a stage record holds: either Pending (the
// stage is in progress, or was never finalized) or Committed with a minute
// count.
//
// Fields are unexported so a Committed value can only be replaced by building
// a new Duration. Stores never write one through UpsertStageRecord; the
// single write path is Store.CommitStageDuration, called by
// Ledger.CommitOnTransition.
type Duration struct {
	minutes   int
	committed bool
}

// Pending is the duration of a stage that has not been committed.
func Pending() Duration { return Duration{} }

// Committed is a frozen duration. Negative input is clamped to zero.
func Committed(minutes int) Duration {
	if minutes < 0 {
		minutes = 0
	}
	return Duration{minutes: minutes, committed: true}
}

// IsCommitted reports whether the duration is frozen.
func (d Duration) IsCommitted() bool { return d.committed }

// Minutes returns the committed minutes and whether there are any.
func (d Duration) Minutes() (int, bool) { return d.minutes, d.committed }

// CommittedOrZero is the committed minutes, or 0 while pending.
func (d Duration) CommittedOrZero() int { return d.minutes }

func (d Duration) String() string {
	if !d.committed {
		return "pending"
	}
	return strconv.Itoa(d.minutes) + "min"
}

// =============================================================================
// STAGE RECORD - One per (order, stage)
// =============================================================================

// StageRecord is a ledger entry: when an order entered a stage, who worked it,
// and how long it stayed once it left.
type StageRecord struct {
	OrderID   string
	Stage     Stage
	EnteredAt time.Time
	Worker    string
	Duration  Duration
}

// Key returns the uniqueness key of the record.
func (r StageRecord) Key() string { return r.OrderID + "/" + string(r.Stage) }
