// Package audit keeps a trail of staff block edits.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trimly/internal/database"
	"trimly/internal/events"
)

// Actions recorded in the audit trail.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// Entry is one audit record.
type Entry struct {
	ID           int64     `json:"id"`
	BarbershopID int64     `json:"barbershop_id"`
	BlockID      int64     `json:"block_id"`
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	Title        string    `json:"title"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recorder persists audit entries in SQLite.
type Recorder struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRecorder creates a recorder over the given database.
func NewRecorder(db *database.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record inserts an audit entry.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO block_audit (barbershop_id, block_id, action, actor, title, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.BarbershopID, e.BlockID, e.Action, e.Actor, e.Title, e.Details,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListForShop returns the most recent entries for a barbershop.
func (r *Recorder) ListForShop(ctx context.Context, barbershopID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, barbershop_id, block_id, action, actor, title, details, created_at
		FROM block_audit WHERE barbershop_id = ? ORDER BY id DESC LIMIT ?`,
		barbershopID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BarbershopID, &e.BlockID, &e.Action, &e.Actor, &e.Title, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Attach subscribes the recorder to block mutation events. Audit
// failures are logged, never propagated back to the mutation path.
func (r *Recorder) Attach(bus *events.Bus) {
	bus.Subscribe(events.BlockCreated, r.handle(ActionCreated))
	bus.Subscribe(events.BlockDeleted, r.handle(ActionDeleted))
}

func (r *Recorder) handle(action string) events.Handler {
	return func(event events.Event) error {
		payload, ok := event.Payload.(events.BlockEvent)
		if !ok {
			return nil
		}

		details, _ := json.Marshal(payload.Block)
		err := r.Record(context.Background(), Entry{
			BarbershopID: payload.BarbershopID,
			BlockID:      payload.Block.ID,
			Action:       action,
			Actor:        payload.Actor,
			Title:        payload.Block.Title,
			Details:      string(details),
		})
		if err != nil {
			r.log.Error().Err(err).
				Int64("block", payload.Block.ID).
				Str("action", action).
				Msg("audit record failed")
		}
		return err
	}
}
