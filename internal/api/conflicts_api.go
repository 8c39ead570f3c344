package api

import (
	"net/http"
	"strconv"

	"trimly/internal/conflict"
	"trimly/internal/metrics"
	"trimly/internal/model"
)

// ConflictsResponse lists double-booking groups for one date.
type ConflictsResponse struct {
	Date   string           `json:"date"`
	Count  int              `json:"count"`
	Groups []conflict.Group `json:"groups"`
}

// handleConflicts reports overlapping appointments per resource.
// GET /api/conflicts?shop=1&date=YYYY-MM-DD
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflicts")
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

	byResource := make(map[int64][]model.Appointment)
	for _, a := range appointments {
		byResource[a.ResourceID] = append(byResource[a.ResourceID], a)
	}

	groups := []conflict.Group{}
	for _, res := range resources {
		groups = append(groups, conflict.FindConflicts(res.ID, byResource[res.ID])...)
	}
	metrics.AddConflictGroups(len(groups))

	writeJSON(w, http.StatusOK, ConflictsResponse{
		Date:   date.Format(model.DateLayout),
		Count:  len(groups),
		Groups: groups,
	})
}
