/*
provider.go - Working-calendar provider

PURPOSE:
  Supplies the active Calendar to the ledger and the API. Reading the calendar
  is on the hot path of advancing a work order, so it must never fail and
  never block on a slow store more than once per cache window.

FAIL-SOFT READ:
  Calendar() never returns an error. A missing, unreadable, unparseable or
  out-of-order stored configuration is replaced with DefaultCalendar() and a
  warning is logged. A failed holiday load yields an empty holiday set.

CACHING:
  The assembled Calendar is cached (go-cache) for a short TTL. Save, Reset
  and Invalidate drop the cached value so the next read sees the change.

SEE ALSO:
  - store/sqlite/sqlite.go: ConfigSource implementation
  - production/ledger.go: consumer of Calendar()
*/
package worktime

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ConfigSource is the persistence collaborator for calendar data.
type ConfigSource interface {
	// LoadCalendarConfig returns the raw stored shift config.
	// found is false when nothing has been stored yet.
	LoadCalendarConfig(ctx context.Context) (raw []byte, found bool, err error)

	// SaveCalendarConfig replaces the stored shift config.
	SaveCalendarConfig(ctx context.Context, raw []byte) error

	// Holidays returns every configured holiday.
	Holidays(ctx context.Context) ([]Holiday, error)
}

// DefaultCacheTTL bounds how stale a cached calendar may be.
const DefaultCacheTTL = 30 * time.Second

const calendarCacheKey = "calendar"

// Provider loads, validates and caches the working calendar.
type Provider struct {
	Source   ConfigSource
	Location *time.Location
	Logger   logrus.FieldLogger

	cache *cache.Cache
}

// NewProvider creates a provider reading from source. Instants are interpreted
// on loc's wall clock (nil means time.Local). ttl <= 0 selects DefaultCacheTTL.
func NewProvider(source ConfigSource, loc *time.Location, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Provider{
		Source:   source,
		Location: loc,
		Logger:   logrus.StandardLogger().WithField("component", "calendar"),
		cache:    cache.New(ttl, 2*ttl),
	}
}

// Calendar returns the active calendar. It never fails.
func (p *Provider) Calendar(ctx context.Context) Calendar {
	if v, ok := p.cache.Get(calendarCacheKey); ok {
		return v.(Calendar)
	}
	cal := p.load(ctx)
	p.cache.SetDefault(calendarCacheKey, cal)
	return cal
}

// Shifts returns the active shift windows in their stored form.
func (p *Provider) Shifts(ctx context.Context) ShiftConfig {
	return p.Calendar(ctx).Shifts()
}

// Save validates and persists a new shift configuration.
// Unlike the read path, invalid input is rejected with ErrInvalidShiftConfig.
func (p *Provider) Save(ctx context.Context, cfg ShiftConfig) error {
	if _, err := cfg.Calendar(); err != nil {
		return err
	}
	raw, err := cfg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode shift config: %w", err)
	}
	if err := p.Source.SaveCalendarConfig(ctx, raw); err != nil {
		return fmt.Errorf("failed to save shift config: %w", err)
	}
	p.Invalidate()
	return nil
}

// Reset stores the default shift configuration.
func (p *Provider) Reset(ctx context.Context) error {
	return p.Save(ctx, DefaultShiftConfig())
}

// Invalidate drops the cached calendar, e.g. after a holiday change.
func (p *Provider) Invalidate() {
	p.cache.Delete(calendarCacheKey)
}

func (p *Provider) load(ctx context.Context) Calendar {
	cal := p.loadShifts(ctx)
	cal.Location = p.Location

	holidays, err := p.Source.Holidays(ctx)
	if err != nil {
		p.Logger.WithError(err).Warn("holidays unavailable, counting every weekday")
		return cal
	}
	cal.Holidays = HolidaySetOf(holidays)
	return cal
}

func (p *Provider) loadShifts(ctx context.Context) Calendar {
	raw, found, err := p.Source.LoadCalendarConfig(ctx)
	if err != nil {
		p.Logger.WithError(err).Warn("shift config unavailable, using default")
		return DefaultCalendar()
	}
	if !found {
		return DefaultCalendar()
	}
	cfg, err := ParseShiftConfig(raw)
	if err != nil {
		p.Logger.WithError(err).Warn("stored shift config is malformed, using default")
		return DefaultCalendar()
	}
	cal, err := cfg.Calendar()
	if err != nil {
		p.Logger.WithError(err).WithField("config", string(raw)).Warn("stored shift config is invalid, using default")
		return DefaultCalendar()
	}
	return cal
}
