package model

import (
	"errors"
	"fmt"
	"time"
)

// RecurrenceType distinguishes one-off from weekly-recurring blocks.
type RecurrenceType string

const (
	RecurrenceNone   RecurrenceType = "none"
	RecurrenceWeekly RecurrenceType = "weekly"
)

// ErrInvalidBlock marks a block that violates the recurrence invariant.
var ErrInvalidBlock = errors.New("invalid block")

// Block is a staff-defined blackout window. A nil ResourceID applies the
// block to every resource of the barbershop. One-off blocks carry
// BlockDate; weekly blocks carry Weekdays plus an optional date range.
// Go has no sum types, so the shape invariant is enforced by Validate
// and the OneOffBlock/WeeklyBlock constructors.
type Block struct {
	ID           int64          `json:"id"`
	BarbershopID int64          `json:"barbershop_id"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Title        string         `json:"title"`
	FullDay      bool           `json:"full_day"`
	Start        TimeOfDay      `json:"start_time"`
	End          TimeOfDay      `json:"end_time"`
	Recurrence   RecurrenceType `json:"recurrence_type"`
	BlockDate    *time.Time     `json:"block_date,omitempty"`
	Weekdays     []time.Weekday `json:"days_of_week,omitempty"`
	RangeStart   *time.Time     `json:"range_start,omitempty"`
	RangeEnd     *time.Time     `json:"range_end,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// OneOffBlock builds a single-date block.
func OneOffBlock(barbershopID int64, resourceID *int64, title string, date time.Time, start, end TimeOfDay) *Block {
	d := DateOnly(date)
	return &Block{
		BarbershopID: barbershopID,
		ResourceID:   resourceID,
		Title:        title,
		Start:        start,
		End:          end,
		Recurrence:   RecurrenceNone,
		BlockDate:    &d,
	}
}

// WeeklyBlock builds a weekly-recurring block on the given weekdays,
// optionally bounded by a date range.
func WeeklyBlock(barbershopID int64, resourceID *int64, title string, days []time.Weekday, start, end TimeOfDay, rangeStart, rangeEnd *time.Time) *Block {
	return &Block{
		BarbershopID: barbershopID,
		ResourceID:   resourceID,
		Title:        title,
		Start:        start,
		End:          end,
		Recurrence:   RecurrenceWeekly,
		Weekdays:     days,
		RangeStart:   rangeStart,
		RangeEnd:     rangeEnd,
	}
}

// Validate enforces the recurrence/field invariant. Invalid blocks are
// rejected at creation and never persisted.
func (b *Block) Validate() error {
	switch b.Recurrence {
	case RecurrenceNone:
		if b.BlockDate == nil {
			return fmt.Errorf("%w: one-off block requires block_date", ErrInvalidBlock)
		}
		if len(b.Weekdays) > 0 {
			return fmt.Errorf("%w: one-off block must not set days_of_week", ErrInvalidBlock)
		}
	case RecurrenceWeekly:
		if len(b.Weekdays) == 0 {
			return fmt.Errorf("%w: weekly block requires days_of_week", ErrInvalidBlock)
		}
		if b.BlockDate != nil {
			return fmt.Errorf("%w: weekly block must not set block_date", ErrInvalidBlock)
		}
		for _, day := range b.Weekdays {
			if day < time.Sunday || day > time.Saturday {
				return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidBlock, day)
			}
		}
		if b.RangeStart != nil && b.RangeEnd != nil && b.RangeEnd.Before(*b.RangeStart) {
			return fmt.Errorf("%w: range_end before range_start", ErrInvalidBlock)
		}
	default:
		return fmt.Errorf("%w: unknown recurrence_type %q", ErrInvalidBlock, b.Recurrence)
	}

	if !b.FullDay && !b.Start.Before(b.End) {
		return fmt.Errorf("%w: start_time %s must be before end_time %s", ErrInvalidBlock, b.Start, b.End)
	}
	return nil
}

// AppliesTo reports whether the block is scoped to the given resource.
func (b *Block) AppliesTo(resourceID int64) bool {
	return b.ResourceID == nil || *b.ResourceID == resourceID
}

// ActiveOn reports whether the block's date rule matches the date,
// ignoring the time-of-day window.
func (b *Block) ActiveOn(date time.Time) bool {
	switch b.Recurrence {
	case RecurrenceNone:
		return b.BlockDate != nil && SameDate(*b.BlockDate, date)
	case RecurrenceWeekly:
		if b.RangeStart != nil && DateOnly(date).Before(DateOnly(*b.RangeStart)) {
			return false
		}
		if b.RangeEnd != nil && DateOnly(*b.RangeEnd).Before(DateOnly(date)) {
			return false
		}
		for _, day := range b.Weekdays {
			if date.Weekday() == day {
				return true
			}
		}
	}
	return false
}

// Covers reports whether the block blacks out the given date and time
// for the given resource. Full-day blocks cover the whole operating
// window; timed blocks use the half-open window [Start, End).
func (b *Block) Covers(resourceID int64, date time.Time, t TimeOfDay) bool {
	if !b.AppliesTo(resourceID) || !b.ActiveOn(date) {
		return false
	}
	if b.FullDay {
		return true
	}
	return !t.Before(b.Start) && t.Before(b.End)
}
