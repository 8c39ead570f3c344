// Package blocks owns blackout records and answers whether a resource
// is blacked out at a given date and time.
package blocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trimly/internal/database"
	"trimly/internal/model"
)

// ErrBlockNotFound is returned when a block id does not exist.
var ErrBlockNotFound = errors.New("block not found")

// Store persists blocks in SQLite. Listing always returns blocks in
// creation order so first-match resolution stays deterministic.
type Store struct {
	db *database.DB
}

// NewStore creates a block store over the given database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create validates and persists a block, returning its id.
func (s *Store) Create(ctx context.Context, b *model.Block) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (barbershop_id, resource_id, title, full_day, start_time, end_time,
		                    recurrence_type, block_date, days_of_week, range_start, range_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BarbershopID, b.ResourceID, b.Title, b.FullDay, b.Start.String(), b.End.String(),
		string(b.Recurrence), dateOrNil(b.BlockDate), weekdaysToCSV(b.Weekdays),
		dateOrNil(b.RangeStart), dateOrNil(b.RangeEnd),
	)
	if err != nil {
		return 0, fmt.Errorf("insert block: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("block id: %w", err)
	}
	b.ID = id
	return id, nil
}

// Get returns a block by id.
func (s *Store) Get(ctx context.Context, id int64) (*model.Block, error) {
	row := s.db.QueryRowContext(ctx, selectBlocks+` WHERE id = ?`, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", id, err)
	}
	return b, nil
}

// Delete removes a block by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete block %d: %w", id, err)
	}
	if affected == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// ListForShop returns all blocks of a barbershop in creation order.
func (s *Store) ListForShop(ctx context.Context, barbershopID int64) ([]model.Block, error) {
	rows, err := s.db.QueryContext(ctx, selectBlocks+` WHERE barbershop_id = ? ORDER BY id`, barbershopID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var result []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// ListForDate returns the shop's blocks whose date rule matches the
// date, still in creation order.
func (s *Store) ListForDate(ctx context.Context, barbershopID int64, date time.Time) ([]model.Block, error) {
	all, err := s.ListForShop(ctx, barbershopID)
	if err != nil {
		return nil, err
	}
	var active []model.Block
	for _, b := range all {
		if b.ActiveOn(date) {
			active = append(active, b)
		}
	}
	return active, nil
}

// IsBlocked returns the first block covering the resource at the given
// date and time, or nil when none matches.
func (s *Store) IsBlocked(ctx context.Context, barbershopID, resourceID int64, date time.Time, t model.TimeOfDay) (*model.Block, error) {
	all, err := s.ListForShop(ctx, barbershopID)
	if err != nil {
		return nil, err
	}
	return Match(all, resourceID, date, t), nil
}

// Match returns the first block in the slice covering the resource at
// the date and time. Callers needing every overlapping block should
// filter the slice themselves; display only needs one.
func Match(all []model.Block, resourceID int64, date time.Time, t model.TimeOfDay) *model.Block {
	for i := range all {
		if all[i].Covers(resourceID, date, t) {
			return &all[i]
		}
	}
	return nil
}

const selectBlocks = `
	SELECT id, barbershop_id, resource_id, title, full_day, start_time, end_time,
	       recurrence_type, block_date, days_of_week, range_start, range_end, created_at
	FROM blocks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*model.Block, error) {
	var b model.Block
	var resourceID sql.NullInt64
	var startStr, endStr, recurrence string
	var blockDate, daysCSV, rangeStart, rangeEnd sql.NullString

	err := row.Scan(&b.ID, &b.BarbershopID, &resourceID, &b.Title, &b.FullDay,
		&startStr, &endStr, &recurrence, &blockDate, &daysCSV, &rangeStart, &rangeEnd, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	if resourceID.Valid {
		b.ResourceID = &resourceID.Int64
	}
	if b.Start, err = model.ParseTimeOfDay(startStr); err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	if b.End, err = model.ParseTimeOfDay(endStr); err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	b.Recurrence = model.RecurrenceType(recurrence)

	if b.BlockDate, err = parseNullDate(blockDate); err != nil {
		return nil, fmt.Errorf("block_date: %w", err)
	}
	if b.RangeStart, err = parseNullDate(rangeStart); err != nil {
		return nil, fmt.Errorf("range_start: %w", err)
	}
	if b.RangeEnd, err = parseNullDate(rangeEnd); err != nil {
		return nil, fmt.Errorf("range_end: %w", err)
	}
	if daysCSV.Valid && daysCSV.String != "" {
		if b.Weekdays, err = weekdaysFromCSV(daysCSV.String); err != nil {
			return nil, fmt.Errorf("days_of_week: %w", err)
		}
	}
	return &b, nil
}

func dateOrNil(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Format(model.DateLayout)
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func weekdaysToCSV(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func weekdaysFromCSV(csv string) ([]time.Weekday, error) {
	parts := strings.Split(csv, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", p)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
