package production_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/production/store"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// 2025-03-10 is a Monday with no holiday in the week.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func utcCalendar() worktime.Calendar {
	cal := worktime.DefaultCalendar()
	cal.Location = time.UTC
	return cal
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store  *store.Memory
	ledger *production.Ledger
	clock  *clock
	logs   *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	mem := store.NewMemory()
	c := &clock{now: at(10, 8, 0)}
	l := production.NewLedger(mem, production.StaticCalendar(utcCalendar()))
	l.Logger = logger
	l.Now = c.Now
	return &fixture{store: mem, ledger: l, clock: c, logs: hook}
}

func (f *fixture) open(t *testing.T, category production.Category) production.WorkOrder {
	t.Helper()
	o, err := f.ledger.Open(context.Background(), production.WorkOrder{
		Number:   "OS-100",
		Customer: "Metalúrgica Lopes",
		Category: category,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) record(t *testing.T, orderID string, stage production.Stage) production.StageRecord {
	t.Helper()
	rec, err := f.store.StageRecord(context.Background(), orderID, stage)
	require.NoError(t, err)
	require.NotNil(t, rec, "no record for %s", stage)
	return *rec
}

// =============================================================================
// OPEN / ADVANCE
// =============================================================================

func TestLedger_Open(t *testing.T) {
	f := newFixture(t)

	o := f.open(t, production.CategoryBalanceamento)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, production.StageLavagem, o.Stage)
	assert.Equal(t, production.PriorityNormal, o.Priority)
	assert.Equal(t, at(10, 8, 0), o.CreatedAt)

	rec := f.record(t, o.ID, production.StageLavagem)
	assert.Equal(t, at(10, 8, 0), rec.EnteredAt)
	assert.False(t, rec.Duration.IsCommitted())
}

func TestLedger_Open_UnknownCategoryUsesDefault(t *testing.T) {
	f := newFixture(t)

	o := f.open(t, "motor_novo")

	assert.Equal(t, production.DefaultCategory, o.Category)
	assert.Equal(t, production.StageCorte, o.Stage)
}

// The canonical accrual scenario: a balanceamento order enters lavagem
// Monday 08:00 and moves on at 14:00 the same day.
func TestLedger_BalanceamentoScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: order opened Monday 08:00
	o := f.open(t, production.CategoryBalanceamento)

	// WHEN: advanced to the next stage at 14:00
	f.clock.Set(at(10, 14, 0))
	o, err := f.ledger.Advance(ctx, o.ID, "", "Carlos")
	require.NoError(t, err)

	// THEN: lavagem holds 300 minutes (4h morning + 1h afternoon)
	assert.Equal(t, production.StageBalanceamento, o.Stage)
	assert.Equal(t, "Carlos", o.CurrentWorker)
	m, ok := f.record(t, o.ID, production.StageLavagem).Duration.Minutes()
	assert.True(t, ok)
	assert.Equal(t, 300, m)

	next := f.record(t, o.ID, production.StageBalanceamento)
	assert.Equal(t, at(10, 14, 0), next.EnteredAt)
	assert.Equal(t, "Carlos", next.Worker)
	assert.False(t, next.Duration.IsCommitted())

	// AND: partial elapsed at 15:00 is 300 committed + 60 live
	partial, err := f.ledger.PartialElapsed(ctx, o, utcCalendar(), at(10, 15, 0))
	require.NoError(t, err)
	assert.Equal(t, 360, partial)
}

func TestLedger_AdvanceToConclusion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	// One transition per business day at 10:00.
	day := 10
	for !o.Concluded() {
		day++
		if day == 15 {
			day = 17 // skip the weekend
		}
		f.clock.Set(at(day, 10, 0))
		var err error
		o, err = f.ledger.Advance(ctx, o.ID, "", "")
		require.NoError(t, err)
	}

	require.NotNil(t, o.ConcludedAt)
	assert.Equal(t, f.clock.Now(), *o.ConcludedAt)

	total, err := f.ledger.TotalOnCompletion(ctx, o.ID)
	require.NoError(t, err)

	records, err := f.store.StageRecords(ctx, o.ID)
	require.NoError(t, err)
	sum := 0
	for _, r := range records {
		sum += r.Duration.CommittedOrZero()
	}
	assert.Equal(t, sum, total)
	assert.Positive(t, total)

	// The terminal stage never accrues.
	concluded := f.record(t, o.ID, production.StageConcluido)
	assert.False(t, concluded.Duration.IsCommitted())
	later, err := f.ledger.PartialElapsed(ctx, o, utcCalendar(), at(28, 16, 0))
	require.NoError(t, err)
	assert.Equal(t, total, later)
}

func TestLedger_AdvanceRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	_, err := f.ledger.Advance(ctx, "missing", "", "")
	assert.ErrorIs(t, err, production.ErrOrderNotFound)
	assert.True(t, production.IsNotFound(err))

	_, err = f.ledger.Advance(ctx, o.ID, production.StageLavagem, "")
	assert.ErrorIs(t, err, production.ErrInvalidTransition)

	_, err = f.ledger.Advance(ctx, o.ID, "polimento", "")
	assert.ErrorIs(t, err, production.ErrUnknownStage)
	assert.True(t, production.IsClientError(err))

	_, err = f.ledger.Advance(ctx, o.ID, production.StageConcluido, "")
	require.NoError(t, err)

	_, err = f.ledger.Advance(ctx, o.ID, production.StagePintura, "")
	assert.ErrorIs(t, err, production.ErrOrderConcluded)
	var te *production.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, production.StageConcluido, te.From)
}

// =============================================================================
// COMMIT RULES
// =============================================================================

func TestLedger_CommitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cal := utcCalendar()
	o := f.open(t, production.CategoryBalanceamento)

	require.NoError(t, f.ledger.CommitOnTransition(ctx, o.ID, production.StageLavagem, production.StageBalanceamento, at(10, 14, 0), cal, ""))
	// Retried with a later instant: the first value stands.
	require.NoError(t, f.ledger.CommitOnTransition(ctx, o.ID, production.StageLavagem, production.StageBalanceamento, at(11, 14, 0), cal, ""))

	m, _ := f.record(t, o.ID, production.StageLavagem).Duration.Minutes()
	assert.Equal(t, 300, m)
	assert.Equal(t, at(10, 14, 0), f.record(t, o.ID, production.StageBalanceamento).EnteredAt)

	var debug bool
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "stage already committed; keeping first value" {
			debug = true
		}
	}
	assert.True(t, debug, "second commit should log at debug level")
}

func TestLedger_CommitSameStageRejected(t *testing.T) {
	f := newFixture(t)
	o := f.open(t, production.CategoryBalanceamento)

	err := f.ledger.CommitOnTransition(context.Background(), o.ID, production.StageLavagem, production.StageLavagem, at(10, 9, 0), utcCalendar(), "")
	assert.ErrorIs(t, err, production.ErrInvalidTransition)
	assert.False(t, f.record(t, o.ID, production.StageLavagem).Duration.IsCommitted())
}

func TestLedger_CommitWithoutEntryRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	// Leaving a stage that was never entered commits nothing but still
	// enters the next stage.
	err := f.ledger.CommitOnTransition(ctx, o.ID, production.StagePintura, production.StageAcabamento, at(10, 9, 0), utcCalendar(), "")
	require.NoError(t, err)

	rec, err := f.store.StageRecord(ctx, o.ID, production.StagePintura)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, at(10, 9, 0), f.record(t, o.ID, production.StageAcabamento).EnteredAt)
}

func TestLedger_ConcurrentCommitsProduceOneValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cal := utcCalendar()
	o := f.open(t, production.CategoryBalanceamento)

	// Separate ledgers share the store, like separate processes would.
	ledgers := []*production.Ledger{f.ledger, production.NewLedger(f.store, production.StaticCalendar(cal))}
	ledgers[1].Logger = f.ledger.Logger

	candidates := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		leave := at(10, 9, 0).Add(time.Duration(i) * 7 * time.Minute)
		candidates[worktime.ElapsedBusinessMinutes(at(10, 8, 0), leave, cal)] = true

		wg.Add(1)
		go func(l *production.Ledger, leave time.Time) {
			defer wg.Done()
			assert.NoError(t, l.CommitOnTransition(ctx, o.ID, production.StageLavagem, production.StageBalanceamento, leave, cal, ""))
		}(ledgers[i%2], leave)
	}
	wg.Wait()

	rec := f.record(t, o.ID, production.StageLavagem)
	m, ok := rec.Duration.Minutes()
	require.True(t, ok)
	assert.True(t, candidates[m], "committed %d is not any caller's value", m)

	// Nothing overwrites it afterwards.
	require.NoError(t, f.ledger.CommitOnTransition(ctx, o.ID, production.StageLavagem, production.StageBalanceamento, at(20, 9, 0), cal, ""))
	again, _ := f.record(t, o.ID, production.StageLavagem).Duration.Minutes()
	assert.Equal(t, m, again)
}

// =============================================================================
// ENTER RULES
// =============================================================================

func TestLedger_ReenterKeepsEntryAndMergesWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	rec, err := f.ledger.EnterStage(ctx, o.ID, production.StageLavagem, at(11, 9, 0), "Ana")
	require.NoError(t, err)
	assert.Equal(t, at(10, 8, 0), rec.EnteredAt)
	assert.Equal(t, "Ana", rec.Worker)

	// A filled-in worker is not replaced by entering again.
	rec, err = f.ledger.EnterStage(ctx, o.ID, production.StageLavagem, at(12, 9, 0), "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Worker)
}

func TestLedger_ReturnFromHoldKeepsCommittedDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	f.clock.Set(at(10, 10, 0))
	_, err := f.ledger.Advance(ctx, o.ID, production.StageAguardandoMaterial, "")
	require.NoError(t, err)
	f.clock.Set(at(10, 15, 0))
	o, err = f.ledger.Advance(ctx, o.ID, production.StageLavagem, "")
	require.NoError(t, err)

	lavagem := f.record(t, o.ID, production.StageLavagem)
	m, _ := lavagem.Duration.Minutes()
	assert.Equal(t, 120, m)
	assert.Equal(t, at(10, 8, 0), lavagem.EnteredAt)

	hold, _ := f.record(t, o.ID, production.StageAguardandoMaterial).Duration.Minutes()
	assert.Equal(t, 240, hold)
}

func TestLedger_AssignWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	rec, err := f.ledger.AssignWorker(ctx, o.ID, production.StageLavagem, "Diego")
	require.NoError(t, err)
	assert.Equal(t, "Diego", rec.Worker)
	assert.Equal(t, at(10, 8, 0), f.record(t, o.ID, production.StageLavagem).EnteredAt)

	_, err = f.ledger.AssignWorker(ctx, o.ID, production.StagePintura, "Diego")
	assert.ErrorIs(t, err, production.ErrStageNotVisited)
}

func TestLedger_AssignWorkerRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)
	_, err := f.ledger.AssignWorker(ctx, o.ID, production.StageLavagem, "Diego")
	require.NoError(t, err)

	// WHEN: assigning a blank name
	_, err = f.ledger.AssignWorker(ctx, o.ID, production.StageLavagem, "  ")

	// THEN: rejected as client input, stored worker unchanged
	assert.ErrorIs(t, err, production.ErrWorkerRequired)
	assert.True(t, production.IsClientError(err))
	assert.Equal(t, "Diego", f.record(t, o.ID, production.StageLavagem).Worker)
}

func TestLedger_EditKeepsLedgerFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	f.clock.Set(at(10, 9, 30))
	edited, err := f.ledger.Edit(ctx, o.ID, func(w *production.WorkOrder) {
		w.Customer = "Têxtil Souza"
		w.Stage = production.StageConcluido
		w.DueDate = worktime.NewDate(2025, time.March, 20)
	})
	require.NoError(t, err)

	assert.Equal(t, "Têxtil Souza", edited.Customer)
	assert.Equal(t, production.StageLavagem, edited.Stage)
	assert.Equal(t, worktime.NewDate(2025, time.March, 20), edited.DueDate)
	assert.Equal(t, at(10, 9, 30), edited.UpdatedAt)
	assert.Equal(t, o.CreatedAt, edited.CreatedAt)
}

// =============================================================================
// READS
// =============================================================================

func TestLedger_PartialElapsedIsMonotone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cal := utcCalendar()
	o := f.open(t, production.CategoryRebobinar)

	prev := 0
	step := 0
	for now := at(10, 8, 0); now.Before(at(21, 18, 0)); now = now.Add(47 * time.Minute) {
		step++
		if step%9 == 0 && !o.Concluded() {
			f.clock.Set(now)
			var err error
			o, err = f.ledger.Advance(ctx, o.ID, "", "")
			require.NoError(t, err)
		}
		got, err := f.ledger.PartialElapsed(ctx, o, cal, now)
		require.NoError(t, err)
		if !assert.GreaterOrEqual(t, got, prev, "now=%s stage=%s", now, o.Stage) {
			return
		}
		prev = got
	}
}

// Sending an order back to an earlier stage keeps the minutes committed by
// the stages it already went through.
func TestLedger_PartialElapsedAfterSendingBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cal := utcCalendar()

	// GIVEN: lavagem 08:00-10:00, balanceamento 10:00-11:00, pintura from 11:00
	o := f.open(t, production.CategoryBalanceamento)
	f.clock.Set(at(10, 10, 0))
	o, err := f.ledger.Advance(ctx, o.ID, "", "")
	require.NoError(t, err)
	f.clock.Set(at(10, 11, 0))
	o, err = f.ledger.Advance(ctx, o.ID, "", "")
	require.NoError(t, err)
	require.Equal(t, production.StagePintura, o.Stage)

	before, err := f.ledger.PartialElapsed(ctx, o, cal, at(10, 14, 0))
	require.NoError(t, err)
	assert.Equal(t, 120+60+120, before)

	// WHEN: sent back to lavagem at 14:00
	f.clock.Set(at(10, 14, 0))
	o, err = f.ledger.Advance(ctx, o.ID, production.StageLavagem, "")
	require.NoError(t, err)
	require.Equal(t, production.StageLavagem, o.Stage)

	// THEN: nothing already accrued is lost
	total, err := f.ledger.TotalOnCompletion(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, total)

	after, err := f.ledger.PartialElapsed(ctx, o, cal, at(10, 14, 0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before)
	assert.GreaterOrEqual(t, after, total)

	nextDay, err := f.ledger.PartialElapsed(ctx, o, cal, at(11, 10, 0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, nextDay, after)

	lines, err := f.ledger.Timeline(ctx, o, cal, at(10, 14, 0))
	require.NoError(t, err)
	assert.True(t, lines[1].Counted, "balanceamento")
	assert.True(t, lines[2].Counted, "pintura")
	assert.False(t, lines[3].Counted, "acabamento never visited")
}

func TestLedger_Timeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	f.clock.Set(at(10, 14, 0))
	o, err := f.ledger.Advance(ctx, o.ID, "", "")
	require.NoError(t, err)

	lines, err := f.ledger.Timeline(ctx, o, utcCalendar(), at(10, 16, 0))
	require.NoError(t, err)
	require.Len(t, lines, 5)

	assert.Equal(t, production.StageLavagem, lines[0].Stage)
	assert.Equal(t, 300, lines[0].Minutes)
	assert.False(t, lines[0].Live)

	assert.Equal(t, production.StageBalanceamento, lines[1].Stage)
	assert.True(t, lines[1].Current)
	assert.True(t, lines[1].Live)
	assert.Equal(t, 120, lines[1].Minutes)
	assert.Equal(t, 420, lines[1].Cumulative)

	for _, l := range lines[2:] {
		assert.Nil(t, l.Record)
		assert.False(t, l.Counted)
		assert.Equal(t, 420, l.Cumulative)
	}
}

func TestLedger_TimelineOnHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.open(t, production.CategoryBalanceamento)

	f.clock.Set(at(10, 10, 0))
	o, err := f.ledger.Advance(ctx, o.ID, production.StageAguardandoMaterial, "")
	require.NoError(t, err)

	lines, err := f.ledger.Timeline(ctx, o, utcCalendar(), at(10, 11, 0))
	require.NoError(t, err)
	require.Len(t, lines, 6)

	hold := lines[5]
	assert.Equal(t, production.StageAguardandoMaterial, hold.Stage)
	assert.True(t, hold.Live)
	assert.Equal(t, 60, hold.Minutes)
	assert.Equal(t, 120+60, hold.Cumulative)
	assert.Zero(t, production.ProgressFraction(o))
}

func TestLedger_PartialElapsedMissingRecordIsZero(t *testing.T) {
	f := newFixture(t)
	o := production.WorkOrder{ID: "ghost", Category: production.CategoryRebobinar, Stage: production.StageLavagem}

	got, err := f.ledger.PartialElapsed(context.Background(), o, utcCalendar(), at(12, 12, 0))
	require.NoError(t, err)
	assert.Zero(t, got)
}
