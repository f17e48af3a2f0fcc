/*
ledger.go - Stage ledger: the single write path for stage durations

PURPOSE:
  The Ledger records when an order enters a stage and, when it leaves,
  commits the business minutes it spent there. It owns the order's stage
  fields and is the only code that calls Store.CommitStageDuration.

WRITE RULES:
  - Entering a stage creates its record once. Re-entering keeps the
    original entry time and never clears a committed duration.
  - Leaving a stage commits its duration at most once. A second transition
    out of the same stage, a retry, or a concurrent caller is a no-op.
  - Transitions of the same order are serialized by a per-order lock.
    The store's write-if-pending commit covers callers in other processes.

READ RULES:
  - A committed stage reports its committed minutes.
  - The current, non-terminal stage reports live time from entry to now.
  - Missing records contribute zero.

SEE ALSO:
  - record.go: Duration (Pending | Committed)
  - store.go: Store contract
  - worktime/elapsed.go: ElapsedBusinessMinutes
*/
package production

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/workorder-engine/worktime"
)

// CalendarSource supplies the working calendar. *worktime.Provider
// satisfies it; Calendar never fails.
type CalendarSource interface {
	Calendar(ctx context.Context) worktime.Calendar
}

// StaticCalendar is a CalendarSource that always returns the same calendar.
type StaticCalendar worktime.Calendar

func (c StaticCalendar) Calendar(context.Context) worktime.Calendar { return worktime.Calendar(c) }

// =============================================================================
// LEDGER
// =============================================================================

// Ledger moves orders through stages and accrues their business time.
type Ledger struct {
	Store     Store
	Calendars CalendarSource
	Logger    logrus.FieldLogger
	Now       func() time.Time

	locks orderLocks
}

// NewLedger creates a ledger using the system clock.
func NewLedger(store Store, calendars CalendarSource) *Ledger {
	return &Ledger{
		Store:     store,
		Calendars: calendars,
		Logger:    logrus.StandardLogger().WithField("component", "ledger"),
		Now:       time.Now,
	}
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Ledger) log() logrus.FieldLogger {
	if l.Logger == nil {
		return logrus.StandardLogger()
	}
	return l.Logger
}

// Calendar returns the current working calendar.
func (l *Ledger) Calendar(ctx context.Context) worktime.Calendar {
	if l.Calendars == nil {
		return worktime.DefaultCalendar()
	}
	return l.Calendars.Calendar(ctx)
}

// =============================================================================
// WRITES
// =============================================================================

// EnterStage records that an order entered a stage at the given instant.
//
// If the stage was already entered, the stored record is returned unchanged,
// except that a worker is filled in when the record has none.
func (l *Ledger) EnterStage(ctx context.Context, orderID string, stage Stage, at time.Time, worker string) (StageRecord, error) {
	unlock := l.locks.lock(orderID)
	defer unlock()
	return l.enterStage(ctx, orderID, stage, at, worker)
}

func (l *Ledger) enterStage(ctx context.Context, orderID string, stage Stage, at time.Time, worker string) (StageRecord, error) {
	existing, err := l.Store.StageRecord(ctx, orderID, stage)
	if err != nil {
		return StageRecord{}, fmt.Errorf("load stage record: %w", err)
	}

	if existing != nil {
		if existing.Worker != "" || worker == "" {
			return *existing, nil
		}
		existing.Worker = worker
		if err := l.Store.UpsertStageRecord(ctx, *existing); err != nil {
			return StageRecord{}, fmt.Errorf("update stage worker: %w", err)
		}
		return *existing, nil
	}

	rec := StageRecord{
		OrderID:   orderID,
		Stage:     stage,
		EnteredAt: at,
		Worker:    worker,
		Duration:  Pending(),
	}
	if err := l.Store.UpsertStageRecord(ctx, rec); err != nil {
		return StageRecord{}, fmt.Errorf("create stage record: %w", err)
	}

	// Re-read: another process may have created the record first.
	stored, err := l.Store.StageRecord(ctx, orderID, stage)
	if err != nil || stored == nil {
		return rec, nil
	}
	return *stored, nil
}

// CommitOnTransition finalizes the stage being left and enters the next one.
//
// The duration of "from" is the business time between its entry and "at".
// It is written only if still pending; a retried or concurrent transition
// leaves the first committed value in place and logs at debug level.
func (l *Ledger) CommitOnTransition(ctx context.Context, orderID string, from, to Stage, at time.Time, cal worktime.Calendar, worker string) error {
	if from == to {
		return &TransitionError{OrderID: orderID, From: from, To: to, Err: ErrInvalidTransition}
	}

	unlock := l.locks.lock(orderID)
	defer unlock()
	return l.commitLocked(ctx, orderID, from, to, at, cal, worker)
}

func (l *Ledger) commitLocked(ctx context.Context, orderID string, from, to Stage, at time.Time, cal worktime.Calendar, worker string) error {
	log := l.log().WithFields(logrus.Fields{"order": orderID, "from": from, "to": to})

	rec, err := l.Store.StageRecord(ctx, orderID, from)
	if err != nil {
		return fmt.Errorf("load stage record: %w", err)
	}

	switch {
	case rec == nil:
		log.Warn("leaving a stage with no entry record; nothing to commit")
	case rec.Duration.IsCommitted():
		log.Debug("stage already committed; keeping first value")
	default:
		minutes := worktime.ElapsedBusinessMinutes(rec.EnteredAt, at, cal)
		written, err := l.Store.CommitStageDuration(ctx, orderID, from, minutes)
		if err != nil {
			return fmt.Errorf("commit stage duration: %w", err)
		}
		if written {
			log.WithField("minutes", minutes).Info("stage committed")
		} else {
			log.Debug("stage committed by another writer")
		}
	}

	if _, err := l.enterStage(ctx, orderID, to, at, worker); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// ORDER LIFECYCLE
// =============================================================================

// Open persists a new order in the first stage of its sequence and opens
// the ledger record for that stage.
func (l *Ledger) Open(ctx context.Context, order WorkOrder) (WorkOrder, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if !order.Category.Valid() {
		order.Category = DefaultCategory
	}
	if order.Priority == "" {
		order.Priority = PriorityNormal
	}

	unlock := l.locks.lock(order.ID)
	defer unlock()

	now := l.now()
	order.Stage = InitialStage(order.Category)
	order.CreatedAt = now
	order.UpdatedAt = now
	order.ConcludedAt = nil

	if err := l.Store.SaveOrder(ctx, order); err != nil {
		return WorkOrder{}, fmt.Errorf("save order: %w", err)
	}
	if _, err := l.enterStage(ctx, order.ID, order.Stage, now, order.CurrentWorker); err != nil {
		return WorkOrder{}, err
	}

	l.log().WithFields(logrus.Fields{"order": order.ID, "stage": order.Stage}).Info("order opened")
	return order, nil
}

// Advance moves an order to the given stage, or to the next stage of its
// sequence when to is empty. The duration of the stage being left is
// committed and the new stage is entered at the same instant.
func (l *Ledger) Advance(ctx context.Context, orderID string, to Stage, worker string) (WorkOrder, error) {
	unlock := l.locks.lock(orderID)
	defer unlock()

	order, err := l.loadOrder(ctx, orderID)
	if err != nil {
		return WorkOrder{}, err
	}

	if order.Concluded() {
		return WorkOrder{}, &TransitionError{OrderID: orderID, From: order.Stage, To: to, Err: ErrOrderConcluded}
	}
	if to == "" {
		next, ok := NextStage(order)
		if !ok {
			return WorkOrder{}, &TransitionError{OrderID: orderID, From: order.Stage, Err: ErrInvalidTransition}
		}
		to = next
	}
	if !to.Valid() {
		return WorkOrder{}, &TransitionError{OrderID: orderID, From: order.Stage, To: to, Err: ErrUnknownStage}
	}
	if to == order.Stage {
		return WorkOrder{}, &TransitionError{OrderID: orderID, From: order.Stage, To: to, Err: ErrInvalidTransition}
	}

	now := l.now()
	if err := l.commitLocked(ctx, orderID, order.Stage, to, now, l.Calendar(ctx), worker); err != nil {
		return WorkOrder{}, err
	}

	order.Stage = to
	order.UpdatedAt = now
	if worker != "" {
		order.CurrentWorker = worker
	}
	if to.Terminal() {
		order.ConcludedAt = &now
	}
	if err := l.Store.SaveOrder(ctx, order); err != nil {
		return WorkOrder{}, fmt.Errorf("save order: %w", err)
	}
	return order, nil
}

// Edit applies fn to an order under its lock and saves it. Fields owned by
// the ledger (ID, Stage, CreatedAt, ConcludedAt) are restored after fn runs.
func (l *Ledger) Edit(ctx context.Context, orderID string, fn func(*WorkOrder)) (WorkOrder, error) {
	unlock := l.locks.lock(orderID)
	defer unlock()

	order, err := l.loadOrder(ctx, orderID)
	if err != nil {
		return WorkOrder{}, err
	}

	edited := order
	fn(&edited)
	edited.ID = order.ID
	edited.Stage = order.Stage
	edited.CreatedAt = order.CreatedAt
	edited.ConcludedAt = order.ConcludedAt
	if !edited.Category.Valid() {
		edited.Category = order.Category
	}
	edited.UpdatedAt = l.now()

	if err := l.Store.SaveOrder(ctx, edited); err != nil {
		return WorkOrder{}, fmt.Errorf("save order: %w", err)
	}
	return edited, nil
}

// AssignWorker sets the worker of a stage the order already entered.
// It never touches the entry time or the duration.
func (l *Ledger) AssignWorker(ctx context.Context, orderID string, stage Stage, worker string) (StageRecord, error) {
	unlock := l.locks.lock(orderID)
	defer unlock()

	worker = strings.TrimSpace(worker)
	if worker == "" {
		return StageRecord{}, fmt.Errorf("order %s stage %s: %w", orderID, stage, ErrWorkerRequired)
	}

	rec, err := l.Store.StageRecord(ctx, orderID, stage)
	if err != nil {
		return StageRecord{}, fmt.Errorf("load stage record: %w", err)
	}
	if rec == nil {
		return StageRecord{}, fmt.Errorf("order %s stage %s: %w", orderID, stage, ErrStageNotVisited)
	}

	rec.Worker = worker
	if err := l.Store.UpsertStageRecord(ctx, *rec); err != nil {
		return StageRecord{}, fmt.Errorf("update stage worker: %w", err)
	}
	return *rec, nil
}

func (l *Ledger) loadOrder(ctx context.Context, orderID string) (WorkOrder, error) {
	order, err := l.Store.GetOrder(ctx, orderID)
	if err != nil {
		return WorkOrder{}, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return WorkOrder{}, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	return *order, nil
}

// =============================================================================
// READS
// =============================================================================

// StageTiming is one line of an order's timeline.
type StageTiming struct {
	Stage      Stage
	Record     *StageRecord // nil if never entered
	Minutes    int          // committed, or live for the current stage
	Live       bool         // Minutes is running time, not committed
	Current    bool
	Counted    bool // included in the order's elapsed total
	Cumulative int  // running total of counted lines up to this one
}

// Timeline returns one line per stage of the order's sequence, followed by
// any visited stage outside it (such as waiting for material).
//
// Committed minutes are always counted, including those of stages after the
// current one when the order was sent back. Unvisited stages after the
// current one are listed but not counted.
func (l *Ledger) Timeline(ctx context.Context, order WorkOrder, cal worktime.Calendar, now time.Time) ([]StageTiming, error) {
	records, err := l.Store.StageRecords(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load stage records: %w", err)
	}
	return buildTimeline(order, records, cal, now), nil
}

func buildTimeline(order WorkOrder, records []StageRecord, cal worktime.Calendar, now time.Time) []StageTiming {
	byStage := make(map[Stage]StageRecord, len(records))
	for _, r := range records {
		byStage[r.Stage] = r
	}

	seq := SequenceFor(order.Category)
	current := IndexOf(seq, order.Stage)

	lines := make([]StageTiming, 0, len(seq)+1)
	for i, st := range seq {
		counted := current < 0 || i <= current
		lines = append(lines, timing(order, st, byStage, counted, cal, now))
	}
	// Off-sequence stages, in entry order.
	for _, r := range records {
		if IndexOf(seq, r.Stage) >= 0 {
			continue
		}
		lines = append(lines, timing(order, r.Stage, byStage, true, cal, now))
	}
	if current < 0 {
		if _, visited := byStage[order.Stage]; !visited {
			lines = append(lines, StageTiming{Stage: order.Stage, Current: true, Counted: true})
		}
	}

	total := 0
	for i := range lines {
		if lines[i].Counted {
			total += lines[i].Minutes
		}
		lines[i].Cumulative = total
	}
	return lines
}

func timing(order WorkOrder, st Stage, byStage map[Stage]StageRecord, counted bool, cal worktime.Calendar, now time.Time) StageTiming {
	line := StageTiming{Stage: st, Current: st == order.Stage, Counted: counted}
	rec, ok := byStage[st]
	if !ok {
		return line
	}
	line.Record = &rec

	if m, committed := rec.Duration.Minutes(); committed {
		line.Minutes = m
		line.Counted = true
		return line
	}
	if line.Current && !st.Terminal() {
		line.Minutes = worktime.ElapsedBusinessMinutes(rec.EnteredAt, now, cal)
		line.Live = true
	}
	return line
}

// PartialElapsed is the business time an order has accrued so far:
// every committed minute plus the live time of the current stage.
func (l *Ledger) PartialElapsed(ctx context.Context, order WorkOrder, cal worktime.Calendar, now time.Time) (int, error) {
	lines, err := l.Timeline(ctx, order, cal, now)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	return lines[len(lines)-1].Cumulative, nil
}

// TotalOnCompletion is the sum of every committed duration of the order.
// Pending records contribute zero.
func (l *Ledger) TotalOnCompletion(ctx context.Context, orderID string) (int, error) {
	records, err := l.Store.StageRecords(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("load stage records: %w", err)
	}
	total := 0
	for _, r := range records {
		total += r.Duration.CommittedOrZero()
	}
	return total, nil
}

// =============================================================================
// PER-ORDER LOCKS
// =============================================================================

type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	sync.Mutex
	refs int
}

// lock acquires the order's mutex and returns its release func. Entries are
// dropped once no caller holds or waits on them.
func (o *orderLocks) lock(orderID string) func() {
	o.mu.Lock()
	if o.locks == nil {
		o.locks = make(map[string]*orderLock)
	}
	l, ok := o.locks[orderID]
	if !ok {
		l = &orderLock{}
		o.locks[orderID] = l
	}
	l.refs++
	o.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, orderID)
		}
		o.mu.Unlock()
	}
}
