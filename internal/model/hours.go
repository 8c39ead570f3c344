package model

import (
	"fmt"
	"time"
)

// DayHours is the open/close window for a single weekday.
type DayHours struct {
	Open  TimeOfDay `json:"open"`
	Close TimeOfDay `json:"close"`
}

// OperatingHours is a barbershop's weekly schedule plus explicit
// closed calendar dates. A weekday absent from Weekly is closed.
type OperatingHours struct {
	Weekly      map[time.Weekday]DayHours `json:"weekly"`
	ClosedDates []string                  `json:"closed_dates,omitempty"` // YYYY-MM-DD
}

// HoursFor returns the configured window for a weekday.
func (h *OperatingHours) HoursFor(day time.Weekday) (DayHours, bool) {
	window, ok := h.Weekly[day]
	return window, ok
}

// IsClosedDate reports whether the date is in the explicit closed set.
func (h *OperatingHours) IsClosedDate(date time.Time) bool {
	key := date.Format(DateLayout)
	for _, d := range h.ClosedDates {
		if d == key {
			return true
		}
	}
	return false
}

// Validate checks that every configured window has open before close.
func (h *OperatingHours) Validate() error {
	for day, window := range h.Weekly {
		if !window.Open.Before(window.Close) {
			return fmt.Errorf("weekday %d: open %s must be before close %s", day, window.Open, window.Close)
		}
	}
	for _, d := range h.ClosedDates {
		if _, err := ParseDate(d); err != nil {
			return fmt.Errorf("closed date %q: %w", d, err)
		}
	}
	return nil
}
