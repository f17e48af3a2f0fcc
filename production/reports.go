package production

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// DeadlineReport compares concluded orders against their due dates.
type DeadlineReport struct {
	Concluded int
	OnTime    int
	Late      int
	LateRate  decimal.Decimal // percentage, 1 decimal place
	Details   []LateOrder
}

// LateOrder explains one order concluded after its due date.
type LateOrder struct {
	OrderID      string
	Number       string
	Customer     string
	DueDate      worktime.Date
	ConcludedOn  worktime.Date
	DaysLate     int
	SlowestStage Stage // stage with the largest committed duration
	SlowestMin   int
	DelayReason  string
	DelaySector  string
}

// StageTime aggregates committed durations of one stage.
type StageTime struct {
	Stage        Stage
	TotalMinutes int
	Count        int
	AvgMinutes   decimal.Decimal
	TotalHours   decimal.Decimal
}

// WorkerTime aggregates committed durations of one worker.
type WorkerTime struct {
	Worker       string
	TotalMinutes int
	Orders       int
	TotalHours   decimal.Decimal
}

// Summary is the production overview.
type Summary struct {
	Total               int
	Open                int
	ByStage             map[Stage]int
	ByCategory          map[Category]int
	InProductionMinutes int
	Rework              []WorkOrder
	OnHold              []WorkOrder
}

// =============================================================================
// REPORTER
// =============================================================================

// Reporter computes reports from the ledger's store.
type Reporter struct {
	Ledger *Ledger
}

// NewReporter creates a reporter over a ledger.
func NewReporter(l *Ledger) *Reporter { return &Reporter{Ledger: l} }

func (r *Reporter) records(ctx context.Context, orders []WorkOrder) (map[string][]StageRecord, error) {
	out := make(map[string][]StageRecord, len(orders))
	if all, ok := r.Ledger.Store.(AllStageRecords); ok {
		recs, err := all.AllStageRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stage records: %w", err)
		}
		for _, rec := range recs {
			out[rec.OrderID] = append(out[rec.OrderID], rec)
		}
		return out, nil
	}
	for _, o := range orders {
		recs, err := r.Ledger.Store.StageRecords(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("load stage records: %w", err)
		}
		out[o.ID] = recs
	}
	return out, nil
}

// Deadlines builds the on-time vs late report over concluded orders.
// Orders without a due date count as on time.
func (r *Reporter) Deadlines(ctx context.Context) (DeadlineReport, error) {
	orders, err := r.Ledger.Store.ListOrders(ctx, OrderFilter{Stages: []Stage{StageConcluido}})
	if err != nil {
		return DeadlineReport{}, fmt.Errorf("list orders: %w", err)
	}
	records, err := r.records(ctx, orders)
	if err != nil {
		return DeadlineReport{}, err
	}
	loc := r.Ledger.Calendar(ctx).Location
	if loc == nil {
		loc = time.Local
	}
	return BuildDeadlineReport(orders, records, loc), nil
}

// BuildDeadlineReport is the pure part of Deadlines.
func BuildDeadlineReport(orders []WorkOrder, records map[string][]StageRecord, loc *time.Location) DeadlineReport {
	var rep DeadlineReport
	for _, o := range orders {
		if !o.Concluded() {
			continue
		}
		rep.Concluded++

		finished := o.UpdatedAt
		if o.ConcludedAt != nil {
			finished = *o.ConcludedAt
		}
		concludedOn := worktime.DateOf(finished, loc)

		if !o.HasDueDate() || !concludedOn.After(o.DueDate) {
			rep.OnTime++
			continue
		}

		rep.Late++
		slowest, slowestMin := slowestStage(records[o.ID])
		rep.Details = append(rep.Details, LateOrder{
			OrderID:      o.ID,
			Number:       o.Number,
			Customer:     o.Customer,
			DueDate:      o.DueDate,
			ConcludedOn:  concludedOn,
			DaysLate:     worktime.DaysBetween(o.DueDate, concludedOn),
			SlowestStage: slowest,
			SlowestMin:   slowestMin,
			DelayReason:  o.DelayReason,
			DelaySector:  o.DelaySector,
		})
	}

	if rep.Concluded > 0 {
		rep.LateRate = decimal.NewFromInt(int64(rep.Late)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(rep.Concluded))).
			Round(1)
	}
	sort.SliceStable(rep.Details, func(i, j int) bool { return rep.Details[i].DaysLate > rep.Details[j].DaysLate })
	return rep
}

func slowestStage(recs []StageRecord) (Stage, int) {
	var stage Stage
	best := -1
	for _, rec := range recs {
		m, ok := rec.Duration.Minutes()
		if ok && m > best {
			stage, best = rec.Stage, m
		}
	}
	if best < 0 {
		return "", 0
	}
	return stage, best
}

// StageTimes aggregates committed durations per stage.
func (r *Reporter) StageTimes(ctx context.Context) ([]StageTime, error) {
	recs, err := r.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	return BuildStageTimes(recs), nil
}

// BuildStageTimes is the pure part of StageTimes. Stages are listed in
// AllStages order; stages with no committed record are omitted.
func BuildStageTimes(recs []StageRecord) []StageTime {
	acc := make(map[Stage]*StageTime)
	for _, rec := range recs {
		m, ok := rec.Duration.Minutes()
		if !ok {
			continue
		}
		st := acc[rec.Stage]
		if st == nil {
			st = &StageTime{Stage: rec.Stage}
			acc[rec.Stage] = st
		}
		st.TotalMinutes += m
		st.Count++
	}

	var out []StageTime
	for _, s := range AllStages {
		st, ok := acc[s]
		if !ok {
			continue
		}
		total := decimal.NewFromInt(int64(st.TotalMinutes))
		st.AvgMinutes = total.Div(decimal.NewFromInt(int64(st.Count))).Round(2)
		st.TotalHours = minutesToHours(st.TotalMinutes)
		out = append(out, *st)
	}
	return out
}

// WorkerTimes aggregates committed durations per worker.
func (r *Reporter) WorkerTimes(ctx context.Context) ([]WorkerTime, error) {
	recs, err := r.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	return BuildWorkerTimes(recs), nil
}

// BuildWorkerTimes is the pure part of WorkerTimes, sorted by total time
// descending. Records with no worker are skipped.
func BuildWorkerTimes(recs []StageRecord) []WorkerTime {
	acc := make(map[string]*WorkerTime)
	orders := make(map[string]map[string]bool)
	for _, rec := range recs {
		m, ok := rec.Duration.Minutes()
		if !ok || rec.Worker == "" {
			continue
		}
		wt := acc[rec.Worker]
		if wt == nil {
			wt = &WorkerTime{Worker: rec.Worker}
			acc[rec.Worker] = wt
			orders[rec.Worker] = make(map[string]bool)
		}
		wt.TotalMinutes += m
		orders[rec.Worker][rec.OrderID] = true
	}

	out := make([]WorkerTime, 0, len(acc))
	for name, wt := range acc {
		wt.Orders = len(orders[name])
		wt.TotalHours = minutesToHours(wt.TotalMinutes)
		out = append(out, *wt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMinutes != out[j].TotalMinutes {
			return out[i].TotalMinutes > out[j].TotalMinutes
		}
		return out[i].Worker < out[j].Worker
	})
	return out
}

// Summary counts orders and sums the business time accrued by open ones.
func (r *Reporter) Summary(ctx context.Context) (Summary, error) {
	orders, err := r.Ledger.Store.ListOrders(ctx, OrderFilter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list orders: %w", err)
	}

	cal := r.Ledger.Calendar(ctx)
	now := r.Ledger.now()
	s := Summary{
		Total:      len(orders),
		ByStage:    make(map[Stage]int),
		ByCategory: make(map[Category]int),
	}
	for _, o := range orders {
		s.ByStage[o.Stage]++
		s.ByCategory[o.Category]++
		if o.Rework != "" {
			s.Rework = append(s.Rework, o)
		}
		if o.Stage.OnHold() {
			s.OnHold = append(s.OnHold, o)
		}
		if o.Concluded() {
			continue
		}
		s.Open++
		elapsed, err := r.Ledger.PartialElapsed(ctx, o, cal, now)
		if err != nil {
			return Summary{}, err
		}
		s.InProductionMinutes += elapsed
	}
	return s, nil
}

func (r *Reporter) allRecords(ctx context.Context) ([]StageRecord, error) {
	if all, ok := r.Ledger.Store.(AllStageRecords); ok {
		recs, err := all.AllStageRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stage records: %w", err)
		}
		return recs, nil
	}
	orders, err := r.Ledger.Store.ListOrders(ctx, OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	byOrder, err := r.records(ctx, orders)
	if err != nil {
		return nil, err
	}
	var out []StageRecord
	for _, o := range orders {
		out = append(out, byOrder[o.ID]...)
	}
	return out, nil
}

func minutesToHours(m int) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(60)).Round(2)
}
