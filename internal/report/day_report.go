package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"trimly/internal/blocks"
	"trimly/internal/conflict"
	"trimly/internal/model"
	"trimly/internal/schedule"
)

// DayReport collects one date's schedule data for export.
type DayReport struct {
	Date         time.Time
	Hours        model.OperatingHours
	Granularity  int
	Resources    []model.Resource
	Appointments map[int64][]model.Appointment
	Conflicts    []conflict.Group
	Blocks       []model.Block
}

// WriteXLSX renders the report as an XLSX workbook: a slot-by-resource
// grid plus one sheet each for appointments, conflicts and blackout
// blocks.
func (r *DayReport) WriteXLSX(out io.Writer) error {
	return r.write(NewExcelizeWriter(), out)
}

func (r *DayReport) write(w ExcelWriter, out io.Writer) error {
	names := make(map[int64]string, len(r.Resources))
	for _, res := range r.Resources {
		names[res.ID] = res.DisplayName
	}

	if err := r.writeGrid(w); err != nil {
		return err
	}

	if err := w.AddSheet("Appointments"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Resource", "Start", "End", "Status", "Appointment ID"}); err != nil {
		return err
	}
	for _, res := range r.Resources {
		appointments := append([]model.Appointment(nil), r.Appointments[res.ID]...)
		sort.Slice(appointments, func(i, j int) bool {
			return appointments[i].Start.Before(appointments[j].Start)
		})
		for _, a := range appointments {
			row := []interface{}{res.DisplayName, a.Start.String(), a.End.String(), a.Status, a.ID}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}

	if err := w.AddSheet("Conflicts"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Resource", "Window", "Appointments"}); err != nil {
		return err
	}
	for _, g := range r.Conflicts {
		ids := make([]string, len(g.Appointments))
		for i, a := range g.Appointments {
			ids[i] = fmt.Sprintf("#%d %s-%s", a.ID, a.Start, a.End)
		}
		row := []interface{}{
			resourceName(names, g.ResourceID),
			fmt.Sprintf("%s-%s", g.Start, g.End),
			strings.Join(ids, ", "),
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}

	if err := w.AddSheet("Blocks"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Title", "Scope", "Window", "Recurrence"}); err != nil {
		return err
	}
	for _, b := range r.Blocks {
		scope := "all resources"
		if b.ResourceID != nil {
			scope = resourceName(names, *b.ResourceID)
		}
		window := fmt.Sprintf("%s-%s", b.Start, b.End)
		if b.FullDay {
			window = "full day"
		}
		row := []interface{}{b.Title, scope, window, string(b.Recurrence)}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}

	return w.Save(out)
}

// writeGrid renders the slot-by-resource grid. On a closed date the
// sheet keeps only its header.
func (r *DayReport) writeGrid(w ExcelWriter) error {
	if err := w.AddSheet("Grid"); err != nil {
		return err
	}
	header := []string{"Time"}
	for _, res := range r.Resources {
		header = append(header, res.DisplayName)
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}

	window, err := schedule.NewResolver(r.Hours).BoundsFor(r.Date)
	if err != nil {
		return nil
	}
	granularity := r.Granularity
	if granularity <= 0 {
		granularity = schedule.DefaultGranularityMinutes
	}

	for _, slot := range schedule.Grid(window.Open, window.Close, granularity) {
		row := []interface{}{slot.String()}
		for _, res := range r.Resources {
			row = append(row, r.slotStatus(res.ID, slot, granularity))
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *DayReport) slotStatus(resourceID int64, slot model.TimeOfDay, granularity int) string {
	end := slot.Add(granularity)
	for _, a := range r.Appointments[resourceID] {
		if a.IsCancelled() {
			continue
		}
		if a.OverlapsRange(slot, end) {
			return "booked"
		}
	}
	if blocks.Match(r.Blocks, resourceID, r.Date, slot) != nil {
		return "blocked"
	}
	return "free"
}

// Filename returns the suggested attachment name for the report.
func (r *DayReport) Filename() string {
	return fmt.Sprintf("schedule_%s.xlsx", r.Date.Format(model.DateLayout))
}

func resourceName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("resource %d", id)
}
