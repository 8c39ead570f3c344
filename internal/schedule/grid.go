package schedule

import "trimly/internal/model"

// DefaultGranularityMinutes is used when a caller passes a non-positive
// granularity.
const DefaultGranularityMinutes = 30

// Grid produces the ordered candidate start times between open and
// close at the given granularity. Every slot is a strict multiple of
// the granularity past open, and a slot is only included when a full
// granularity step fits before close. The grid is recomputed per call;
// there is no hidden iterator state. open == close yields an empty grid.
func Grid(open, close model.TimeOfDay, granularityMinutes int) []model.TimeOfDay {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}

	var slots []model.TimeOfDay
	for cursor := open; !close.Before(cursor.Add(granularityMinutes)); cursor = cursor.Add(granularityMinutes) {
		slots = append(slots, cursor)
	}
	return slots
}
