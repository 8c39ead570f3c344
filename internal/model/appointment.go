package model

import "time"

// Appointment statuses as reported by the platform API.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment is a booked visit, read-only to the engine. Appointments
// are owned by the platform API; the engine only reads per-date snapshots.
type Appointment struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	Date       time.Time `json:"date"`
	Start      TimeOfDay `json:"start_time"`
	End        TimeOfDay `json:"end_time"`
	Status     string    `json:"status"`
}

// IsCancelled reports whether the appointment no longer occupies its slot.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}

// OverlapsWith reports whether two appointments overlap in time.
// Intervals are half-open: touching endpoints do not overlap.
func (a *Appointment) OverlapsWith(other *Appointment) bool {
	return a.Start.Before(other.End) && other.Start.Before(a.End)
}

// OverlapsRange reports whether the appointment overlaps [start, end).
func (a *Appointment) OverlapsRange(start, end TimeOfDay) bool {
	return a.Start.Before(end) && start.Before(a.End)
}

// Duration returns the appointment length.
func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.End-a.Start) * time.Minute
}
