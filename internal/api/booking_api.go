package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"trimly/internal/booking"
	"trimly/internal/metrics"
	"trimly/internal/model"
)

// StartBookingRequest opens a new booking session.
type StartBookingRequest struct {
	BarbershopID int64 `json:"barbershop_id"`
	ClientID     int64 `json:"client_id"`
}

// SelectServiceRequest picks the service for a session.
type SelectServiceRequest struct {
	ServiceID int64 `json:"service_id"`
}

// SelectResourceRequest picks the barber, or "any".
type SelectResourceRequest struct {
	Resource string `json:"resource"`
}

// SelectDateTimeRequest picks the date and start time.
type SelectDateTimeRequest struct {
	Date string `json:"date"` // Format: YYYY-MM-DD
	Time string `json:"time"` // Format: HH:MM
}

// SessionResponse is the client view of a booking session.
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	State       string `json:"state"`
	ServiceID   int64  `json:"service_id,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Resource    string `json:"resource,omitempty"`
	ResourceID  int64  `json:"resource_id,omitempty"`
	Date        string `json:"date,omitempty"`
	Slot        string `json:"slot,omitempty"`
	Price       int64  `json:"price,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

func sessionView(session *booking.Session) SessionResponse {
	state, draft, lastErr := session.Snapshot()
	resp := SessionResponse{
		SessionID: session.ID,
		State:     string(state),
		LastError: lastErr,
	}
	if draft.HasService {
		resp.ServiceID = draft.ServiceID
		resp.ServiceName = draft.ServiceName
		resp.Price = draft.Price
	}
	if draft.HasResource {
		resp.Resource = draft.Selector.String()
		if id, ok := draft.Selector.ResourceID(); ok {
			resp.ResourceID = id
		}
	}
	if draft.HasDateTime {
		resp.Date = draft.Date.Format(model.DateLayout)
		resp.Slot = draft.Slot.String()
	}
	if state == booking.StateConfirmed {
		resp.ResourceID = draft.ResourceID
	}
	return resp
}

// handleBookingStart opens a booking session.
// POST /api/booking
func (s *HTTPServer) handleBookingStart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BarbershopID <= 0 || req.ClientID <= 0 {
		writeError(w, http.StatusBadRequest, "barbershop_id and client_id are required")
		return
	}

	session := s.flow.Start(req.BarbershopID, req.ClientID)
	writeJSON(w, http.StatusCreated, sessionView(session))
}

// handleBookingSession reads or advances a booking session.
// GET  /api/booking/{sid}
// POST /api/booking/{sid}/service|resource|datetime|back|confirm
func (s *HTTPServer) handleBookingSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking")

	const prefix = "/api/booking/"
	if !hasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[len(prefix):], "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		session, err := s.flow.Get(parts[0])
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(session))
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.bookingStep(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) bookingStep(w http.ResponseWriter, r *http.Request, sessionID, step string) {
	ctx := r.Context()
	var err error

	switch step {
	case "service":
		var req SelectServiceRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = s.flow.SelectService(ctx, sessionID, req.ServiceID)
	case "resource":
		var req SelectResourceRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		var selector model.ResourceSelector
		if selector, err = model.ParseResourceSelector(req.Resource); err != nil {
			writeError(w, http.StatusBadRequest, `invalid resource; expected a numeric id or "any"`)
			return
		}
		err = s.flow.SelectResource(ctx, sessionID, selector)
	case "datetime":
		var req SelectDateTimeRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		var date time.Time
		if date, err = model.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		var slot model.TimeOfDay
		if slot, err = model.ParseTimeOfDay(req.Time); err != nil {
			writeError(w, http.StatusBadRequest, "invalid time format; expected HH:MM")
			return
		}
		err = s.flow.SelectDateTime(ctx, sessionID, date, slot)
	case "back":
		err = s.flow.Back(sessionID)
	case "confirm":
		s.confirmBooking(w, r, sessionID)
		return
	default:
		writeError(w, http.StatusNotFound, "unknown booking step")
		return
	}

	if err != nil {
		s.writeFlowError(w, err)
		return
	}

	session, err := s.flow.Get(sessionID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (s *HTTPServer) confirmBooking(w http.ResponseWriter, r *http.Request, sessionID string) {
	result, err := s.flow.Confirm(r.Context(), sessionID)
	if err != nil {
		metrics.IncBookingConfirmed("failed")
		s.writeFlowError(w, err)
		return
	}
	metrics.IncBookingConfirmed("success")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *HTTPServer) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrStepOutOfOrder):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrUnknownService),
		errors.Is(err, booking.ErrUnknownResource),
		errors.Is(err, booking.ErrOutsideBookingWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("booking flow request failed")
		writeError(w, http.StatusBadGateway, "platform api unavailable")
	}
}
