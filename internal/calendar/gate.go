// Package calendar decides whether gated scan cadences may run today.
package calendar

import "time"

// DayRange is an inclusive day-of-month window, e.g. {1, 7} for the first
// week of each month.
type DayRange struct {
	From int `json:"from" yaml:"from" mapstructure:"from"`
	To   int `json:"to" yaml:"to" mapstructure:"to"`
}

// Gate answers calendar-eligibility questions for gated scan types. It is a
// pure function of the injected clock plus a static holiday table.
type Gate struct {
	restDays map[time.Weekday]bool
	holidays map[string]bool // yyyy-mm-dd as configured
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithNow injects a fixed clock for testing.
func WithNow(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithLocation sets the timezone the gate evaluates days in.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		g.loc = loc
	}
}

// New creates a Gate. restDays are the weekly non-working days; holidays are
// specific ineligible dates.
func New(restDays []time.Weekday, holidays []time.Time, opts ...Option) *Gate {
	g := &Gate{
		restDays: make(map[time.Weekday]bool, len(restDays)),
		holidays: make(map[string]bool, len(holidays)),
		loc:      time.Local,
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	for _, d := range restDays {
		g.restDays[d] = true
	}
	for _, h := range holidays {
		// Holidays are bare dates; formatting the value as given keeps a
		// UTC-midnight parse on the configured calendar day.
		g.holidays[h.Format("2006-01-02")] = true
	}
	return g
}

// IsEligibleDay reports whether today is a working day: not a weekly rest
// day and not in the holiday table.
func (g *Gate) IsEligibleDay() bool {
	today := g.now().In(g.loc)
	if g.restDays[today.Weekday()] {
		return false
	}
	return !g.holidays[today.Format("2006-01-02")]
}

// IsPeriodWindow reports whether today's day-of-month falls inside any of
// the given inclusive ranges. An empty range list means no window applies
// and the answer is true.
func (g *Gate) IsPeriodWindow(ranges []DayRange) bool {
	if len(ranges) == 0 {
		return true
	}
	day := g.now().In(g.loc).Day()
	for _, r := range ranges {
		if day >= r.From && day <= r.To {
			return true
		}
	}
	return false
}

// HolidayCount returns the number of loaded holiday dates.
func (g *Gate) HolidayCount() int {
	return len(g.holidays)
}
