package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schema string

// Migrate creates missing tables.  Every statement is idempotent, so it
// is safe to run on each start when DB_AUTO_MIGRATE is enabled.  The
// schema is sent one statement per round trip, so the pool does not need
// multi-statement mode.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// statements splits a script on ';'.  The schema holds no string
// literals or routines containing semicolons.
func statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Reference rows inserted by Seed when missing.
var (
	seedSessions = []struct{ name, start, end string }{
		{"Sesi Pagi", "08:00:00", "11:00:00"},
		{"Sesi Siang", "13:00:00", "16:00:00"},
	}
	seedRooms = []struct {
		code, name string
		capacity   int
	}{
		{"R101", "Ruang 101", 30},
		{"R102", "Ruang 102", 30},
		{"R103", "Ruang 103", 25},
		{"AULA", "Aula Pascasarjana", 100},
		{"LAB1", "Laboratorium Komputer 1", 40},
	}
)

// Seed inserts the default exam sessions and rooms.  Existing rows are
// left untouched.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, s := range seedSessions {
		if _, err := db.ExecContext(ctx,
			`INSERT IGNORE INTO exam_sessions (name, starts_at, ends_at) VALUES (?, ?, ?)`,
			s.name, s.start, s.end); err != nil {
			return fmt.Errorf("seed session %q: %w", s.name, err)
		}
	}
	for _, r := range seedRooms {
		if _, err := db.ExecContext(ctx,
			`INSERT IGNORE INTO exam_rooms (code, name, capacity) VALUES (?, ?, ?)`,
			r.code, r.name, r.capacity); err != nil {
			return fmt.Errorf("seed room %q: %w", r.code, err)
		}
	}
	return nil
}
