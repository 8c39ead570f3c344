package api

import (
	"fmt"
	"net/http"
	"strconv"

	"trimly/internal/conflict"
	"trimly/internal/metrics"
	"trimly/internal/model"
	"trimly/internal/report"
)

// handleScheduleExport streams one date's schedule as an XLSX workbook.
// GET /api/schedule/export?shop=1&date=YYYY-MM-DD
func (s *HTTPServer) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	shopID, err := strconv.ParseInt(q.Get("shop"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "shop is required")
		return
	}
	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	ctx := r.Context()
	hours, err := s.platform.FetchOperatingHours(ctx, shopID)
	if err != nil {
		s.upstreamError(w, err, "fetch operating hours")
		return
	}
	resources, err := s.platform.FetchResources(ctx, shopID)
	if err != nil {
		s.upstreamError(w, err, "fetch resources")
		return
	}
	appointments, err := s.platform.FetchAppointments(ctx, shopID, model.AnyResource(), date)
	if err != nil {
		s.upstreamError(w, err, "fetch appointments")
		return
	}
	blockList, err := s.blocks.ListForDate(ctx, shopID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list blocks")
		return
	}

	byResource := make(map[int64][]model.Appointment)
	for _, a := range appointments {
		byResource[a.ResourceID] = append(byResource[a.ResourceID], a)
	}
	var groups []conflict.Group
	for _, res := range resources {
		groups = append(groups, conflict.FindConflicts(res.ID, byResource[res.ID])...)
	}

	rep := &report.DayReport{
		Date:         date,
		Hours:        *hours,
		Granularity:  s.calc.Granularity(),
		Resources:    resources,
		Appointments: byResource,
		Conflicts:    groups,
		Blocks:       blockList,
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename()))
	if err := rep.WriteXLSX(w); err != nil {
		s.log.Error().Err(err).Int64("shop", shopID).Msg("failed to write schedule export")
	}
}
