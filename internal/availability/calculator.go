// Package availability computes bookable start times for a date.
package availability

import (
	"time"

	"trimly/internal/blocks"
	"trimly/internal/model"
	"trimly/internal/schedule"
)

// Input carries everything a single availability query needs. The
// caller fetches appointments and blocks; the calculator performs no
// I/O and is a pure function of its input.
type Input struct {
	Date            time.Time
	Hours           model.OperatingHours
	DurationMinutes int
	Selector        model.ResourceSelector
	// Resources are the candidate resource ids; consulted only for the
	// Any selector.
	Resources []int64
	// Appointments for the date, keyed by resource id.
	Appointments map[int64][]model.Appointment
	// Blocks in creation order.
	Blocks []model.Block
}

// Calculator answers availability queries at a fixed slot granularity.
type Calculator struct {
	granularity int
}

// NewCalculator creates a calculator with the given granularity in minutes.
func NewCalculator(granularityMinutes int) *Calculator {
	if granularityMinutes <= 0 {
		granularityMinutes = schedule.DefaultGranularityMinutes
	}
	return &Calculator{granularity: granularityMinutes}
}

// Granularity returns the slot granularity in minutes.
func (c *Calculator) Granularity() int { return c.granularity }

// AvailableSlots returns the ordered bookable start times for the date.
// A slot is bookable when the service fits before closing and at least
// one selected resource has neither an overlapping appointment nor a
// blackout at any granularity tick within the service window. Returns
// schedule.ErrClosedDay when the barbershop is closed on the date.
func (c *Calculator) AvailableSlots(in Input) ([]model.TimeOfDay, error) {
	window, err := schedule.NewResolver(in.Hours).BoundsFor(in.Date)
	if err != nil {
		return nil, err
	}

	duration := in.DurationMinutes
	if duration <= 0 {
		duration = c.granularity
	}

	candidates := in.Resources
	if id, ok := in.Selector.ResourceID(); ok {
		candidates = []int64{id}
	}

	var available []model.TimeOfDay
	for _, slot := range schedule.Grid(window.Open, window.Close, c.granularity) {
		if window.Close.Before(slot.Add(duration)) {
			// Service would run past closing; excluded, not clamped.
			continue
		}
		for _, resourceID := range candidates {
			if c.resourceFree(in, resourceID, slot, duration) {
				available = append(available, slot)
				break
			}
		}
	}
	return available, nil
}

// ResourceFreeAt reports whether one resource is free for the full
// service window starting at slot. Used by callers that must resolve
// an Any selection to a concrete resource.
func (c *Calculator) ResourceFreeAt(in Input, resourceID int64, slot model.TimeOfDay) bool {
	duration := in.DurationMinutes
	if duration <= 0 {
		duration = c.granularity
	}
	return c.resourceFree(in, resourceID, slot, duration)
}

func (c *Calculator) resourceFree(in Input, resourceID int64, slot model.TimeOfDay, duration int) bool {
	end := slot.Add(duration)
	for _, a := range in.Appointments[resourceID] {
		if a.IsCancelled() {
			continue
		}
		if a.OverlapsRange(slot, end) {
			return false
		}
	}
	// Blackouts are checked tick by tick so a duration that does not
	// divide the granularity still hits every covered tick.
	for t := slot; t.Before(end); t = t.Add(c.granularity) {
		if blocks.Match(in.Blocks, resourceID, in.Date, t) != nil {
			return false
		}
	}
	return true
}
