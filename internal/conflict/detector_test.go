package conflict

import (
	"testing"

	"trimly/internal/model"
)

func appt(id int64, startH, startM, endH, endM int) model.Appointment {
	return model.Appointment{
		ID:         id,
		ResourceID: 1,
		Start:      model.NewTimeOfDay(startH, startM),
		End:        model.NewTimeOfDay(endH, endM),
		Status:     model.StatusConfirmed,
	}
}

func TestFindConflictsSinglePair(t *testing.T) {
	appointments := []model.Appointment{
		appt(1, 9, 0, 9, 30),
		appt(2, 9, 15, 9, 45),
		appt(3, 11, 0, 11, 30),
	}

	groups := FindConflicts(1, appointments)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	if len(g.Appointments) != 2 {
		t.Fatalf("got %d members, want 2", len(g.Appointments))
	}
	if g.Appointments[0].ID != 1 || g.Appointments[1].ID != 2 {
		t.Errorf("members not ordered by start time: %d, %d", g.Appointments[0].ID, g.Appointments[1].ID)
	}
	if g.Start != model.NewTimeOfDay(9, 0) || g.End != model.NewTimeOfDay(9, 45) {
		t.Errorf("group range %s-%s, want 09:00-09:45", g.Start, g.End)
	}
	for _, member := range g.Appointments {
		if member.ID == 3 {
			t.Error("11:00 appointment must not appear in any group")
		}
	}
}

func TestFindConflictsTouchingBoundaries(t *testing.T) {
	appointments := []model.Appointment{
		appt(1, 10, 0, 10, 30),
		appt(2, 10, 30, 11, 0),
	}
	if groups := FindConflicts(1, appointments); len(groups) != 0 {
		t.Errorf("back-to-back appointments must not conflict, got %d groups", len(groups))
	}
}

func TestFindConflictsTransitiveClosure(t *testing.T) {
	// A overlaps B, B overlaps C, A does not overlap C: one group of three.
	appointments := []model.Appointment{
		appt(1, 9, 0, 9, 40),
		appt(2, 9, 30, 10, 10),
		appt(3, 10, 0, 10, 40),
	}

	groups := FindConflicts(1, appointments)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Appointments) != 3 {
		t.Fatalf("got %d members, want 3", len(groups[0].Appointments))
	}
	if groups[0].Start != model.NewTimeOfDay(9, 0) || groups[0].End != model.NewTimeOfDay(10, 40) {
		t.Errorf("group range %s-%s, want 09:00-10:40", groups[0].Start, groups[0].End)
	}
}

func TestFindConflictsMultipleGroups(t *testing.T) {
	appointments := []model.Appointment{
		appt(1, 9, 0, 9, 30),
		appt(2, 9, 15, 9, 45),
		appt(3, 14, 0, 15, 0),
		appt(4, 14, 30, 15, 30),
	}

	groups := FindConflicts(1, appointments)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !groups[0].Start.Before(groups[1].Start) {
		t.Error("groups not ordered by start time")
	}
}

func TestFindConflictsIgnoresCancelled(t *testing.T) {
	cancelled := appt(2, 9, 15, 9, 45)
	cancelled.Status = model.StatusCancelled

	appointments := []model.Appointment{appt(1, 9, 0, 9, 30), cancelled}
	if groups := FindConflicts(1, appointments); len(groups) != 0 {
		t.Errorf("cancelled appointments must not create conflicts, got %d groups", len(groups))
	}
}

func TestFindConflictsOverlapPredicate(t *testing.T) {
	tests := []struct {
		name         string
		a, b         model.Appointment
		wantOverlaps bool
	}{
		{"identical", appt(1, 10, 0, 11, 0), appt(2, 10, 0, 11, 0), true},
		{"contained", appt(1, 10, 0, 11, 0), appt(2, 10, 15, 10, 45), true},
		{"partial", appt(1, 10, 0, 11, 0), appt(2, 10, 30, 11, 30), true},
		{"touching end", appt(1, 10, 0, 11, 0), appt(2, 11, 0, 12, 0), false},
		{"disjoint", appt(1, 10, 0, 11, 0), appt(2, 12, 0, 13, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.OverlapsWith(&tt.b)
			if got != tt.wantOverlaps {
				t.Errorf("overlaps = %v, want %v", got, tt.wantOverlaps)
			}
			if back := tt.b.OverlapsWith(&tt.a); back != got {
				t.Errorf("overlap predicate not symmetric")
			}
		})
	}
}

func TestCountConflicts(t *testing.T) {
	byResource := map[int64][]model.Appointment{
		1: {appt(1, 9, 0, 9, 30), appt(2, 9, 15, 9, 45)},
		2: {appt(3, 10, 0, 10, 30)},
		3: {appt(4, 9, 0, 10, 0), appt(5, 9, 30, 10, 30), appt(6, 14, 0, 15, 0), appt(7, 14, 15, 14, 45)},
	}

	if got := CountConflicts(byResource); got != 3 {
		t.Errorf("CountConflicts = %d, want 3", got)
	}
}
