package production

import (
	"fmt"

	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// DEADLINE TIERS
// =============================================================================

// Tier buckets an order by how close its due date is.
type Tier string

const (
	TierNone          Tier = "none"          // no due date, concluded, or far away
	TierInformational Tier = "informational" // 4..5 days left
	TierApproaching   Tier = "approaching"   // 2..3 days left
	TierUrgent        Tier = "urgent"        // due today or tomorrow
	TierOverdue       Tier = "overdue"       // past due
)

// Alerts reports whether the tier raises a notification.
func (t Tier) Alerts() bool {
	return t == TierApproaching || t == TierUrgent || t == TierOverdue
}

// Classification is the deadline state of one order on one day.
type Classification struct {
	Tier          Tier
	DaysRemaining int
	Evaluated     bool // false when the order has no due date or is concluded
}

// Classify buckets an order against today's civil date. Only calendar days
// count here; weekends and holidays are not skipped.
func Classify(o WorkOrder, today worktime.Date) Classification {
	if o.Concluded() || !o.HasDueDate() {
		return Classification{Tier: TierNone}
	}

	days := worktime.DaysBetween(today, o.DueDate)
	c := Classification{DaysRemaining: days, Evaluated: true}
	switch {
	case days < 0:
		c.Tier = TierOverdue
	case days <= 1:
		c.Tier = TierUrgent
	case days <= 3:
		c.Tier = TierApproaching
	case days <= 5:
		c.Tier = TierInformational
	default:
		c.Tier = TierNone
	}
	return c
}

// =============================================================================
// ALERTS
// =============================================================================

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is a notification about one order's deadline.
type Alert struct {
	OrderID  string
	Tier     Tier
	Severity Severity
	Title    string
	Message  string
}

// AlertFor builds the notification for an alerting classification.
// It reports false for tiers that don't alert.
func AlertFor(o WorkOrder, c Classification) (Alert, bool) {
	if !c.Tier.Alerts() {
		return Alert{}, false
	}

	a := Alert{
		OrderID: o.ID,
		Tier:    c.Tier,
		Message: fmt.Sprintf("Customer: %s, due %s, stage %s", o.Customer, o.DueDate, o.Stage.Label()),
	}
	switch {
	case c.DaysRemaining < 0:
		a.Severity = SeverityError
		a.Title = fmt.Sprintf("OVERDUE: work order %s (%d days late)", o.Number, -c.DaysRemaining)
	case c.DaysRemaining == 0:
		a.Severity = SeverityWarning
		a.Title = fmt.Sprintf("DUE TODAY: work order %s", o.Number)
	case c.DaysRemaining == 1:
		a.Severity = SeverityWarning
		a.Title = fmt.Sprintf("DUE TOMORROW: work order %s", o.Number)
	default:
		a.Severity = SeverityInfo
		a.Title = fmt.Sprintf("ATTENTION: work order %s due in %d days", o.Number, c.DaysRemaining)
	}
	return a, true
}
