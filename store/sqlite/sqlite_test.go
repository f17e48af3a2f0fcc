package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/store/sqlite"
	"github.com/warp/workorder-engine/worktime"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func sampleOrder(id string) production.WorkOrder {
	return production.WorkOrder{
		ID:                id,
		Number:            "OS-" + id,
		Customer:          "Metalúrgica Lopes",
		MotorType:         "WEG 50cv",
		Category:          production.CategoryBalanceamento,
		SecondaryActivity: "pintura especial",
		Priority:          production.PriorityAlta,
		EntryDate:         worktime.NewDate(2025, time.March, 7),
		DueDate:           worktime.NewDate(2025, time.March, 20),
		Stage:             production.StageLavagem,
		CreatedAt:         at(10, 8, 0),
		UpdatedAt:         at(10, 8, 0),
	}
}

// =============================================================================
// ORDERS
// =============================================================================

func TestStore_OrderRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	o := sampleOrder("a")
	require.NoError(t, s.SaveOrder(ctx, o))

	got, err := s.GetOrder(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.Customer, got.Customer)
	assert.Equal(t, o.Category, got.Category)
	assert.Equal(t, o.Priority, got.Priority)
	assert.Equal(t, o.EntryDate, got.EntryDate)
	assert.Equal(t, o.DueDate, got.DueDate)
	assert.True(t, got.AuthorizationDate.IsZero())
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.ConcludedAt)

	concluded := at(12, 15, 30)
	o.Stage = production.StageConcluido
	o.ConcludedAt = &concluded
	require.NoError(t, s.SaveOrder(ctx, o))
	got, err = s.GetOrder(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.ConcludedAt)
	assert.True(t, concluded.Equal(*got.ConcludedAt))

	missing, err := s.GetOrder(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListOrdersFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := sampleOrder("a")
	b := sampleOrder("b")
	b.Stage = production.StageConcluido
	b.CreatedAt = at(11, 8, 0)
	c := sampleOrder("c")
	c.Category = production.CategoryRebobinar
	c.Stage = production.StageCorte
	c.CreatedAt = at(12, 8, 0)
	for _, o := range []production.WorkOrder{a, b, c} {
		require.NoError(t, s.SaveOrder(ctx, o))
	}

	all, err := s.ListOrders(ctx, production.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	open, err := s.ListOrders(ctx, production.OrderFilter{OpenOnly: true, Category: production.CategoryBalanceamento})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].ID)

	byStage, err := s.ListOrders(ctx, production.OrderFilter{Stages: []production.Stage{production.StageCorte, production.StageConcluido}})
	require.NoError(t, err)
	assert.Len(t, byStage, 2)
}

func TestStore_DeleteOrderCascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOrder(ctx, sampleOrder("a")))
	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StageLavagem, EnteredAt: at(10, 8, 0)}))

	require.NoError(t, s.DeleteOrder(ctx, "a"))
	recs, err := s.StageRecords(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// =============================================================================
// STAGE LEDGER
// =============================================================================

func TestStore_UpsertKeepsEntryAndCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOrder(ctx, sampleOrder("a")))

	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{
		OrderID: "a", Stage: production.StageLavagem, EnteredAt: at(10, 8, 0),
	}))
	ok, err := s.CommitStageDuration(ctx, "a", production.StageLavagem, 300)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{
		OrderID: "a", Stage: production.StageLavagem, EnteredAt: at(11, 9, 0), Worker: "Ana",
		Duration: production.Committed(1),
	}))

	rec, err := s.StageRecord(ctx, "a", production.StageLavagem)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, at(10, 8, 0).Equal(rec.EnteredAt))
	assert.Equal(t, "Ana", rec.Worker)
	m, committed := rec.Duration.Minutes()
	assert.True(t, committed)
	assert.Equal(t, 300, m)

	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StageLavagem}))
	rec, _ = s.StageRecord(ctx, "a", production.StageLavagem)
	assert.Equal(t, "Ana", rec.Worker, "empty worker keeps existing")
}

func TestStore_CommitIsConditional(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOrder(ctx, sampleOrder("a")))
	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StageLavagem, EnteredAt: at(10, 8, 0)}))

	ok, err := s.CommitStageDuration(ctx, "a", production.StageLavagem, 120)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CommitStageDuration(ctx, "a", production.StageLavagem, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CommitStageDuration(ctx, "a", production.StagePintura, 10)
	require.NoError(t, err)
	assert.False(t, ok, "missing record")

	rec, _ := s.StageRecord(ctx, "a", production.StageLavagem)
	m, _ := rec.Duration.Minutes()
	assert.Equal(t, 120, m)
}

func TestStore_RecordsOrderedByEntry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOrder(ctx, sampleOrder("a")))

	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StagePintura, EnteredAt: at(12, 8, 0)}))
	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StageLavagem, EnteredAt: at(10, 8, 0)}))
	require.NoError(t, s.UpsertStageRecord(ctx, production.StageRecord{OrderID: "a", Stage: production.StageBalanceamento, EnteredAt: at(11, 8, 0)}))

	recs, err := s.StageRecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, production.StageLavagem, recs[0].Stage)
	assert.Equal(t, production.StageBalanceamento, recs[1].Stage)
	assert.Equal(t, production.StagePintura, recs[2].Stage)

	all, err := s.AllStageRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// The ledger over SQLite: concurrent transitions of the same order through
// independent ledgers commit exactly one value.
func TestStore_LedgerConcurrentCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cal := worktime.DefaultCalendar()
	cal.Location = time.UTC

	newLedger := func() *production.Ledger {
		l := production.NewLedger(s, production.StaticCalendar(cal))
		logger, _ := test.NewNullLogger()
		l.Logger = logger
		l.Now = func() time.Time { return at(10, 8, 0) }
		return l
	}
	first := newLedger()
	o, err := first.Open(ctx, production.WorkOrder{Category: production.CategoryBalanceamento})
	require.NoError(t, err)

	ledgers := []*production.Ledger{first, newLedger(), newLedger()}
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leave := at(10, 9, 0).Add(time.Duration(i) * 10 * time.Minute)
			assert.NoError(t, ledgers[i%3].CommitOnTransition(ctx, o.ID, production.StageLavagem, production.StageBalanceamento, leave, cal, ""))
		}(i)
	}
	wg.Wait()

	rec, err := s.StageRecord(ctx, o.ID, production.StageLavagem)
	require.NoError(t, err)
	m, ok := rec.Duration.Minutes()
	require.True(t, ok)
	assert.GreaterOrEqual(t, m, 60)
	assert.LessOrEqual(t, m, 60+110)

	total, err := first.TotalOnCompletion(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, m, total)
}

// =============================================================================
// CALENDAR CONFIG AND HOLIDAYS
// =============================================================================

func TestStore_CalendarConfig(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, found, err := s.LoadCalendarConfig(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	p := worktime.NewProvider(s, time.UTC, time.Minute)
	want := worktime.ShiftConfig{MorningStart: "08:00", MorningEnd: "12:00", AfternoonStart: "13:00", AfternoonEnd: "18:00"}
	require.NoError(t, p.Save(ctx, want))

	raw, found, err := s.LoadCalendarConfig(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"morningStart":"08:00","morningEnd":"12:00","afternoonStart":"13:00","afternoonEnd":"18:00"}`, string(raw))
	assert.Equal(t, want, p.Shifts(ctx))
}

func TestStore_Holidays(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	applied, err := s.SeedHolidays(ctx, worktime.DefaultHolidays())
	require.NoError(t, err)
	assert.True(t, applied)

	hs, err := s.Holidays(ctx)
	require.NoError(t, err)
	assert.Len(t, hs, len(worktime.DefaultHolidays()))

	xmas := worktime.NewDate(2025, time.December, 25)
	require.NoError(t, s.DeleteHoliday(ctx, xmas))

	// Seeding again does not bring it back.
	applied, err = s.SeedHolidays(ctx, worktime.DefaultHolidays())
	require.NoError(t, err)
	assert.False(t, applied)
	hs, _ = s.Holidays(ctx)
	assert.False(t, worktime.HolidaySetOf(hs).Contains(xmas))

	require.NoError(t, s.SaveHoliday(ctx, worktime.Holiday{Date: worktime.NewDate(2025, time.August, 15), Name: "Padroeira local"}))
	require.NoError(t, s.SaveHoliday(ctx, worktime.Holiday{Date: worktime.NewDate(2025, time.August, 15), Name: "Assunção"}))
	hs, _ = s.Holidays(ctx)
	var name string
	for _, h := range hs {
		if h.Date == worktime.NewDate(2025, time.August, 15) {
			name = h.Name
		}
	}
	assert.Equal(t, "Assunção", name)
}
