package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

var (
	// ErrRoomCodeExists indicates a duplicate room code.
	ErrRoomCodeExists = errors.New("room code already exists")
	// ErrSessionNameExists indicates a duplicate session name.
	ErrSessionNameExists = errors.New("session name already exists")

	ErrSessionNotFound = errors.New("exam session not found")
	ErrRoomNotFound    = errors.New("exam room not found")
)

// SessionRepo manages exam sessions (time windows within a day).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// List returns sessions ordered by start time.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, starts_at, ends_at, is_active FROM exam_sessions ORDER BY starts_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Session{}
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.StartsAt, &s.EndsAt, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a session; StartsAt and EndsAt are "HH:MM" or "HH:MM:SS".
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO exam_sessions (name, starts_at, ends_at, is_active) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(s.Name), s.StartsAt, s.EndsAt, s.IsActive)
	if isDuplicate(err) {
		return ErrSessionNameExists
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// Get loads one session.
func (r *SessionRepo) Get(ctx context.Context, id uint64) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, starts_at, ends_at, is_active FROM exam_sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.StartsAt, &s.EndsAt, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	return s, err
}

// Update rewrites every column of s.
func (r *SessionRepo) Update(ctx context.Context, s model.Session) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE exam_sessions SET name = ?, starts_at = ?, ends_at = ?, is_active = ? WHERE id = ?`,
		strings.TrimSpace(s.Name), s.StartsAt, s.EndsAt, s.IsActive, s.ID)
	if isDuplicate(err) {
		return ErrSessionNameExists
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session no slot uses.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.DB, `DELETE FROM exam_sessions WHERE id = ?`, id, ErrSessionNotFound)
}

// RoomRepo manages exam rooms.
type RoomRepo struct{ DB *sql.DB }

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{DB: db} }

// List returns rooms ordered by code.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, code, name, capacity, is_active FROM exam_rooms ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Code, &rm.Name, &rm.Capacity, &rm.IsActive); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// Create inserts a room; codes are stored upper-case and unique.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	rm.Code = strings.ToUpper(strings.TrimSpace(rm.Code))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO exam_rooms (code, name, capacity, is_active) VALUES (?, ?, ?, ?)`,
		rm.Code, strings.TrimSpace(rm.Name), rm.Capacity, rm.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return ErrRoomCodeExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	return nil
}

// Get loads one room.
func (r *RoomRepo) Get(ctx context.Context, id uint64) (model.Room, error) {
	var rm model.Room
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, code, name, capacity, is_active FROM exam_rooms WHERE id = ?`, id).
		Scan(&rm.ID, &rm.Code, &rm.Name, &rm.Capacity, &rm.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return rm, err
}

// Update rewrites every column of rm.  Slots keep their own capacity.
func (r *RoomRepo) Update(ctx context.Context, rm *model.Room) error {
	rm.Code = strings.ToUpper(strings.TrimSpace(rm.Code))
	rm.Name = strings.TrimSpace(rm.Name)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE exam_rooms SET code = ?, name = ?, capacity = ?, is_active = ? WHERE id = ?`,
		rm.Code, rm.Name, rm.Capacity, rm.IsActive, rm.ID)
	if isDuplicate(err) {
		return ErrRoomCodeExists
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Delete removes a room no slot uses.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.DB, `DELETE FROM exam_rooms WHERE id = ?`, id, ErrRoomNotFound)
}
