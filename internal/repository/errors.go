// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. Errors
// that the reservation engine must understand (slot not found, capacity
// exceeded, concurrency conflict) are the reservation package's own
// sentinels and are returned unchanged from here.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an exam slot that still has applicants. Handlers should
// translate this into an HTTP 422 response.
var ErrConflict = errors.New("conflict")

// ErrSlotExists is returned when another slot already uses the same
// (date, session, room) triple.
var ErrSlotExists = errors.New("exam slot with the same date, session and room already exists")

// ErrCapacityBelowOccupied is returned when an update would set the
// capacity under the number of seats already taken.
var ErrCapacityBelowOccupied = errors.New("capacity lower than occupied seats")

// ErrInvalidCapacity is returned for a slot capacity below one.
var ErrInvalidCapacity = errors.New("capacity must be at least 1")

// ErrReferenceNotFound is returned when a referenced period, session or
// room does not exist.
var ErrReferenceNotFound = errors.New("referenced record not found")

// ErrInUse is returned when a period, session or room cannot be deleted
// because slots or applicants still reference it.
var ErrInUse = errors.New("record is still referenced by exam slots or applicants")

// ErrNoSlotAssigned is returned for exam-card lookups of applicants who
// have not picked a schedule yet.
var ErrNoSlotAssigned = errors.New("applicant has not chosen an exam schedule")

// MySQL server error numbers this package reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == mysqlDuplicateEntry }

func isReferenced(err error) bool { return mysqlCode(err) == mysqlRowIsReferenced }

// deleteByID removes one row and reports ErrInUse when a foreign key
// still points at it, or missing when nothing was deleted.
func deleteByID(ctx context.Context, db *sql.DB, query string, id uint64, missing error) error {
	res, err := db.ExecContext(ctx, query, id)
	if isReferenced(err) {
		return ErrInUse
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

// asConflict maps lock contention to reservation.ErrConflict so the
// engine retries the unit of work.
func asConflict(err error) error {
	switch mysqlCode(err) {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return errors.Join(reservation.ErrConflict, err)
	}
	return err
}
