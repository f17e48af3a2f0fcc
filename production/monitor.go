/*
monitor.go - Periodic deadline scan with deduplicated notifications

PURPOSE:
  Lists open orders with a due date, classifies them, and pushes one
  notification per new (order, tier) pair. The dedup set lives for the
  process lifetime and is shared by every scan.

DESIGN:
  - Start() runs a scan immediately, then on a ticker (default 5 minutes)
  - Trigger() asks for an extra scan after data changes; requests coalesce
  - Stop() ends the loop and waits for an in-flight scan
  - A notifier failure is logged and the pair is retried on the next scan

SEE ALSO:
  - deadline.go: Classify, AlertFor
  - api/notifier.go: logrus Notifier
*/
package production

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/workorder-engine/worktime"
)

// DefaultScanInterval is the monitor period when none is configured.
const DefaultScanInterval = 5 * time.Minute

// Notifier delivers a user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, title, message string) error
}

// OrderLister is the read side of Store the monitor needs.
type OrderLister interface {
	ListOrders(ctx context.Context, filter OrderFilter) ([]WorkOrder, error)
}

// Deadline is one line of the deadline listing.
type Deadline struct {
	Order          WorkOrder
	Classification Classification
}

// Monitor scans due dates and notifies once per (order, tier).
type Monitor struct {
	Orders   OrderLister
	Notifier Notifier
	Location *time.Location // defines "today"
	Interval time.Duration
	Logger   logrus.FieldLogger
	Now      func() time.Time

	mu       sync.Mutex
	notified map[string]bool

	runMu   sync.Mutex
	trigger chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewMonitor creates a monitor with the default interval.
func NewMonitor(orders OrderLister, notifier Notifier, loc *time.Location) *Monitor {
	if loc == nil {
		loc = time.Local
	}
	return &Monitor{
		Orders:   orders,
		Notifier: notifier,
		Location: loc,
		Interval: DefaultScanInterval,
		Logger:   logrus.StandardLogger().WithField("component", "monitor"),
		Now:      time.Now,
		notified: make(map[string]bool),
	}
}

func (m *Monitor) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Monitor) log() logrus.FieldLogger {
	if m.Logger == nil {
		return logrus.StandardLogger()
	}
	return m.Logger
}

// =============================================================================
// SCAN
// =============================================================================

// Scan classifies every open order with a due date and notifies new
// alerting pairs. It returns the listing of evaluated orders whose tier is
// not none, most urgent first.
func (m *Monitor) Scan(ctx context.Context) ([]Deadline, error) {
	listing, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range listing {
		alert, ok := AlertFor(d.Order, d.Classification)
		if !ok || !m.claim(alert) {
			continue
		}
		if m.Notifier == nil {
			continue
		}
		if err := m.Notifier.Notify(ctx, alert.Severity, alert.Title, alert.Message); err != nil {
			m.log().WithError(err).WithField("order", alert.OrderID).Warn("notification failed")
			m.release(alert)
		}
	}
	return listing, nil
}

// List classifies without notifying.
func (m *Monitor) List(ctx context.Context) ([]Deadline, error) {
	orders, err := m.Orders.ListOrders(ctx, OrderFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}

	loc := m.Location
	if loc == nil {
		loc = time.Local
	}
	today := worktime.DateOf(m.now(), loc)

	var listing []Deadline
	for _, o := range orders {
		c := Classify(o, today)
		if !c.Evaluated || c.Tier == TierNone {
			continue
		}
		listing = append(listing, Deadline{Order: o, Classification: c})
	}
	sort.SliceStable(listing, func(i, j int) bool {
		return listing[i].Classification.DaysRemaining < listing[j].Classification.DaysRemaining
	})
	return listing, nil
}

func dedupKey(a Alert) string { return a.OrderID + "|" + string(a.Tier) }

// claim marks the pair as notified and reports whether it was new.
func (m *Monitor) claim(a Alert) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified == nil {
		m.notified = make(map[string]bool)
	}
	k := dedupKey(a)
	if m.notified[k] {
		return false
	}
	m.notified[k] = true
	return true
}

func (m *Monitor) release(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notified, dedupKey(a))
}

// =============================================================================
// LOOP
// =============================================================================

// Start begins periodic scanning. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return
	}

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	m.stop = make(chan struct{})
	m.trigger = make(chan struct{}, 1)
	m.running = true
	m.wg.Add(1)
	go m.run(interval, m.stop, m.trigger)

	m.log().WithField("interval", interval).Info("deadline monitor started")
}

// Stop ends the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}
	close(m.stop)
	m.wg.Wait()
	m.running = false
	m.log().Info("deadline monitor stopped")
}

// Trigger requests a scan as soon as possible. It never blocks; a request
// made while one is pending is merged into it.
func (m *Monitor) Trigger() {
	m.runMu.Lock()
	ch := m.trigger
	m.runMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(interval time.Duration, stop <-chan struct{}, trigger <-chan struct{}) {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.scanLogged(ctx)
	for {
		select {
		case <-ticker.C:
			m.scanLogged(ctx)
		case <-trigger:
			m.scanLogged(ctx)
		case <-stop:
			return
		}
	}
}

func (m *Monitor) scanLogged(ctx context.Context) {
	listing, err := m.Scan(ctx)
	if err != nil {
		m.log().WithError(err).Warn("deadline scan failed")
		return
	}
	m.log().WithField("flagged", len(listing)).Debug("deadline scan done")
}
