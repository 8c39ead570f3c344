// Package conflict detects double-booked appointments on a resource.
package conflict

import (
	"sort"

	"trimly/internal/model"
)

// Group is a set of two or more appointments on one resource whose time
// ranges overlap on one date. Derived, never persisted.
type Group struct {
	ResourceID   int64               `json:"resource_id"`
	Start        model.TimeOfDay     `json:"start_time"`
	End          model.TimeOfDay     `json:"end_time"`
	Appointments []model.Appointment `json:"appointments"`
}

// FindConflicts groups overlapping appointments for a single resource
// and date. Overlap uses half-open semantics: back-to-back appointments
// do not conflict. Grouping is transitive: when A overlaps B and B
// overlaps C, all three land in one group even if A and C do not touch.
// O(n²) over one resource's bookings for one day, which stays small.
func FindConflicts(resourceID int64, appointments []model.Appointment) []Group {
	active := make([]model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.IsCancelled() {
			continue
		}
		active = append(active, a)
	}

	processed := make([]bool, len(active))
	var groups []Group

	for i := range active {
		if processed[i] {
			continue
		}
		processed[i] = true
		members := []int{i}

		// Expand until no unprocessed appointment overlaps any member.
		for grew := true; grew; {
			grew = false
			for j := range active {
				if processed[j] {
					continue
				}
				for _, m := range members {
					if active[m].OverlapsWith(&active[j]) {
						processed[j] = true
						members = append(members, j)
						grew = true
						break
					}
				}
			}
		}

		if len(members) < 2 {
			continue
		}

		group := Group{ResourceID: resourceID, Start: active[members[0]].Start, End: active[members[0]].End}
		for _, m := range members {
			a := active[m]
			if a.Start.Before(group.Start) {
				group.Start = a.Start
			}
			if group.End.Before(a.End) {
				group.End = a.End
			}
			group.Appointments = append(group.Appointments, a)
		}
		sort.Slice(group.Appointments, func(x, y int) bool {
			return group.Appointments[x].Start.Before(group.Appointments[y].Start)
		})
		groups = append(groups, group)
	}

	sort.Slice(groups, func(x, y int) bool { return groups[x].Start.Before(groups[y].Start) })
	return groups
}

// CountConflicts totals conflict groups across resources. Used as a
// badge count on the staff schedule view, not as a correctness gate.
func CountConflicts(byResource map[int64][]model.Appointment) int {
	total := 0
	for resourceID, appointments := range byResource {
		total += len(FindConflicts(resourceID, appointments))
	}
	return total
}
