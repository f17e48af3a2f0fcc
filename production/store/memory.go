// Package store provides in-memory production.Store and
// worktime.ConfigSource implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	orders   map[string]production.WorkOrder
	records  map[key]production.StageRecord
	calendar []byte
	holidays map[worktime.Date]string
}

type key struct {
	OrderID string
	Stage   production.Stage
}

func NewMemory() *Memory {
	return &Memory{
		orders:   make(map[string]production.WorkOrder),
		records:  make(map[key]production.StageRecord),
		holidays: make(map[worktime.Date]string),
	}
}

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) SaveOrder(_ context.Context, o production.WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*production.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListOrders(_ context.Context, f production.OrderFilter) ([]production.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []production.WorkOrder
	for _, o := range m.orders {
		if f.Matches(o) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	for k := range m.records {
		if k.OrderID == id {
			delete(m.records, k)
		}
	}
	return nil
}

// Reset clears orders and stage records. Calendar data is kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make(map[string]production.WorkOrder)
	m.records = make(map[key]production.StageRecord)
	return nil
}

// =============================================================================
// STAGE RECORDS
// =============================================================================

// UpsertStageRecord inserts a pending record, or merges a non-empty worker
// into an existing one.
func (m *Memory) UpsertStageRecord(_ context.Context, rec production.StageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{OrderID: rec.OrderID, Stage: rec.Stage}
	existing, ok := m.records[k]
	if !ok {
		rec.Duration = production.Pending()
		m.records[k] = rec
		return nil
	}
	if rec.Worker != "" {
		existing.Worker = rec.Worker
		m.records[k] = existing
	}
	return nil
}

// CommitStageDuration writes the duration only if the record is pending.
func (m *Memory) CommitStageDuration(_ context.Context, orderID string, stage production.Stage, minutes int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{OrderID: orderID, Stage: stage}
	rec, ok := m.records[k]
	if !ok || rec.Duration.IsCommitted() {
		return false, nil
	}
	rec.Duration = production.Committed(minutes)
	m.records[k] = rec
	return true, nil
}

func (m *Memory) StageRecord(_ context.Context, orderID string, stage production.Stage) (*production.StageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key{OrderID: orderID, Stage: stage}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) StageRecords(_ context.Context, orderID string) ([]production.StageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []production.StageRecord
	for k, rec := range m.records {
		if k.OrderID == orderID {
			result = append(result, rec)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) AllStageRecords(_ context.Context) ([]production.StageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]production.StageRecord, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, rec)
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(recs []production.StageRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].OrderID != recs[j].OrderID {
			return recs[i].OrderID < recs[j].OrderID
		}
		if !recs[i].EnteredAt.Equal(recs[j].EnteredAt) {
			return recs[i].EnteredAt.Before(recs[j].EnteredAt)
		}
		return recs[i].Stage < recs[j].Stage
	})
}

// =============================================================================
// CALENDAR CONFIG - worktime.ConfigSource
// =============================================================================

func (m *Memory) LoadCalendarConfig(_ context.Context) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.calendar == nil {
		return nil, false, nil
	}
	return append([]byte(nil), m.calendar...), true, nil
}

func (m *Memory) SaveCalendarConfig(_ context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendar = append([]byte(nil), raw...)
	return nil
}

func (m *Memory) Holidays(_ context.Context) ([]worktime.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]worktime.Holiday, 0, len(m.holidays))
	for d, name := range m.holidays {
		result = append(result, worktime.Holiday{Date: d, Name: name})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) SaveHoliday(_ context.Context, h worktime.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.Date] = h.Name
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, d worktime.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, d)
	return nil
}
