// Package schedule resolves operating hours and generates slot grids.
package schedule

import (
	"errors"
	"time"

	"trimly/internal/model"
)

// ErrClosedDay marks a date on which the barbershop is not open.
var ErrClosedDay = errors.New("closed day")

// Resolver answers open/closed questions for one barbershop's
// operating-hours configuration. Pure function of configuration + date.
type Resolver struct {
	hours model.OperatingHours
}

// NewResolver creates a resolver over the given configuration.
func NewResolver(hours model.OperatingHours) *Resolver {
	return &Resolver{hours: hours}
}

// IsOpen reports whether the barbershop is open on the date.
func (r *Resolver) IsOpen(date time.Time) bool {
	if r.hours.IsClosedDate(date) {
		return false
	}
	_, ok := r.hours.HoursFor(date.Weekday())
	return ok
}

// BoundsFor returns the open/close window for the date, or ErrClosedDay.
func (r *Resolver) BoundsFor(date time.Time) (model.DayHours, error) {
	if r.hours.IsClosedDate(date) {
		return model.DayHours{}, ErrClosedDay
	}
	window, ok := r.hours.HoursFor(date.Weekday())
	if !ok {
		return model.DayHours{}, ErrClosedDay
	}
	return window, nil
}
