package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"trimly/internal/metrics"
	"trimly/internal/model"
	"trimly/internal/schedule"
)

// AvailabilityResponse lists bookable start times for one date.
type AvailabilityResponse struct {
	Date      string            `json:"date"`
	ServiceID int64             `json:"service_id"`
	Resource  string            `json:"resource"`
	Closed    bool              `json:"closed"`
	Slots     []model.TimeOfDay `json:"slots"`
}

// handleAvailability returns open slots for a service on a date.
// GET /api/availability?shop=1&service=2&resource=any&date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
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
	serviceID, err := strconv.ParseInt(q.Get("service"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	date, err := model.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	selectorParam := q.Get("resource")
	if selectorParam == "" {
		selectorParam = "any"
	}
	selector, err := model.ParseResourceSelector(selectorParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, `invalid resource; expected a numeric id or "any"`)
		return
	}

	ctx := r.Context()
	services, err := s.platform.FetchServices(ctx, shopID)
	if err != nil {
		s.upstreamError(w, err, "fetch services")
		return
	}
	var service *model.Service
	for i := range services {
		if services[i].ID == serviceID {
			service = &services[i]
			break
		}
	}
	if service == nil {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	in, err := s.availabilityInput(ctx, shopID, selector, service.DurationMinutes, date)
	if err != nil {
		s.upstreamError(w, err, "fetch schedule data")
		return
	}

	resp := AvailabilityResponse{
		Date:      date.Format(model.DateLayout),
		ServiceID: serviceID,
		Resource:  selector.String(),
		Slots:     []model.TimeOfDay{},
	}

	slots, err := s.calc.AvailableSlots(in)
	switch {
	case errors.Is(err, schedule.ErrClosedDay):
		resp.Closed = true
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to compute availability")
		return
	default:
		resp.Slots = s.dropPastSlots(date, slots)
	}

	writeJSON(w, http.StatusOK, resp)
}

// dropPastSlots hides start times already in the past when the query
// targets the current date.
func (s *HTTPServer) dropPastSlots(date time.Time, slots []model.TimeOfDay) []model.TimeOfDay {
	now := s.now()
	if !model.SameDate(date, now) {
		if slots == nil {
			return []model.TimeOfDay{}
		}
		return slots
	}
	kept := []model.TimeOfDay{}
	for _, slot := range slots {
		if slot.On(date).After(now) {
			kept = append(kept, slot)
		}
	}
	return kept
}
