package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trimly/internal/blocks"
	"trimly/internal/events"
	"trimly/internal/metrics"
	"trimly/internal/model"
)

// BlockRequest is the request body for creating a blackout block.
type BlockRequest struct {
	BarbershopID   int64  `json:"barbershop_id"`
	ResourceID     *int64 `json:"resource_id,omitempty"`
	Title          string `json:"title"`
	FullDay        bool   `json:"full_day"`
	StartTime      string `json:"start_time,omitempty"` // Format: HH:MM
	EndTime        string `json:"end_time,omitempty"`   // Format: HH:MM
	RecurrenceType string `json:"recurrence_type"`      // "none" or "weekly"
	BlockDate      string `json:"block_date,omitempty"` // Format: YYYY-MM-DD
	DaysOfWeek     []int  `json:"days_of_week,omitempty"`
	RangeStart     string `json:"range_start,omitempty"`
	RangeEnd       string `json:"range_end,omitempty"`
}

func (req *BlockRequest) toBlock() (*model.Block, error) {
	b := &model.Block{
		BarbershopID: req.BarbershopID,
		ResourceID:   req.ResourceID,
		Title:        req.Title,
		FullDay:      req.FullDay,
		Recurrence:   model.RecurrenceType(req.RecurrenceType),
	}

	var err error
	if req.StartTime != "" {
		if b.Start, err = model.ParseTimeOfDay(req.StartTime); err != nil {
			return nil, err
		}
	}
	if req.EndTime != "" {
		if b.End, err = model.ParseTimeOfDay(req.EndTime); err != nil {
			return nil, err
		}
	}
	if b.BlockDate, err = optionalDate(req.BlockDate); err != nil {
		return nil, err
	}
	if b.RangeStart, err = optionalDate(req.RangeStart); err != nil {
		return nil, err
	}
	if b.RangeEnd, err = optionalDate(req.RangeEnd); err != nil {
		return nil, err
	}
	for _, d := range req.DaysOfWeek {
		b.Weekdays = append(b.Weekdays, time.Weekday(d))
	}
	return b, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// handleBlocks lists or creates blackout blocks.
// GET  /api/blocks?shop=1&date=YYYY-MM-DD
// POST /api/blocks
func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("blocks")
	switch r.Method {
	case http.MethodGet:
		s.listBlocks(w, r)
	case http.MethodPost:
		s.createBlock(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shopID, err := strconv.ParseInt(q.Get("shop"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "shop is required")
		return
	}

	var list []model.Block
	if dateStr := q.Get("date"); dateStr != "" {
		date, err := model.ParseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		list, err = s.blocks.ListForDate(r.Context(), shopID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list blocks")
			return
		}
	} else {
		list, err = s.blocks.ListForShop(r.Context(), shopID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list blocks")
			return
		}
	}
	if list == nil {
		list = []model.Block{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": list})
}

func (s *HTTPServer) createBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	block, err := req.toBlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.blocks.Create(r.Context(), block)
	if err != nil {
		if errors.Is(err, model.ErrInvalidBlock) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Int64("shop", req.BarbershopID).Msg("failed to create block")
		writeError(w, http.StatusInternalServerError, "failed to create block")
		return
	}

	metrics.IncBlockMutation("created")
	s.bus.Publish(events.Event{
		Type: events.BlockCreated,
		Payload: events.BlockEvent{
			BarbershopID: block.BarbershopID,
			Actor:        r.Header.Get("X-Actor"),
			Block:        *block,
		},
	})
	s.log.Info().Int64("block", id).Int64("shop", block.BarbershopID).Msg("block created")

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "block": block})
}

// handleBlockByID deletes a blackout block.
// DELETE /api/blocks/{id}
func (s *HTTPServer) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("blocks")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/blocks/"
	if !hasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, prefix), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	// Snapshot before deleting so the audit trail keeps the full record.
	block, err := s.blocks.Get(r.Context(), id)
	if errors.Is(err, blocks.ErrBlockNotFound) {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load block")
		return
	}

	if err := s.blocks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, blocks.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "block not found")
			return
		}
		s.log.Error().Err(err).Int64("block", id).Msg("failed to delete block")
		writeError(w, http.StatusInternalServerError, "failed to delete block")
		return
	}

	metrics.IncBlockMutation("deleted")
	s.bus.Publish(events.Event{
		Type: events.BlockDeleted,
		Payload: events.BlockEvent{
			BarbershopID: block.BarbershopID,
			Actor:        r.Header.Get("X-Actor"),
			Block:        *block,
		},
	})
	s.log.Info().Int64("block", id).Int64("shop", block.BarbershopID).Msg("block deleted")

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
