// Package sqlxrepos implements the stores against Postgres. Conflict
// invariants are re-validated at commit time by the schema itself: the
// timetable's exclusion constraints and the exam transactions reject any
// racing write the request-time validation could not see.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core/schedule"
)

const entryColumns = "id, teacher_id, class_id, subject_id, hall_id, day, start_min, end_min, version, created_at, updated_at"

type timetableRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *sqlx.DB) *timetableRepository {
	return &timetableRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (schedule.Entry, error) {
	var e schedule.Entry
	var day int
	err := row.Scan(
		&e.ID, &e.TeacherID, &e.ClassID, &e.SubjectID, &e.HallID,
		&day, &e.Interval.Start, &e.Interval.End,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return schedule.Entry{}, err
	}
	e.Interval.Day = time.Weekday(day)
	return e, nil
}

func (repo *timetableRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]schedule.Entry, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying timetable entries")
	}
	defer func() { _ = rows.Close() }()

	entries := make([]schedule.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning timetable entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (repo *timetableRepository) QueryAllEntries(ctx context.Context) ([]schedule.Entry, error) {
	return repo.queryEntries(ctx, "SELECT "+entryColumns+" FROM timetable_entry")
}

func (repo *timetableRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (schedule.Entry, error) {
	row := repo.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM timetable_entry WHERE id = $1", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Entry{}, errors.Wrap(err, "getting timetable entry")
	}
	return entry, nil
}

func (repo *timetableRepository) FilterEntries(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Entry, error) {
	query := "SELECT " + entryColumns + " FROM timetable_entry WHERE true"
	args := make([]interface{}, 0, 3)
	if filter.TeacherID != uuid.Nil {
		args = append(args, filter.TeacherID)
		query += fmt.Sprintf(" AND teacher_id = $%d", len(args))
	}
	if filter.ClassID != uuid.Nil {
		args = append(args, filter.ClassID)
		query += fmt.Sprintf(" AND class_id = $%d", len(args))
	}
	if filter.HallID != uuid.Nil {
		args = append(args, filter.HallID)
		query += fmt.Sprintf(" AND hall_id = $%d", len(args))
	}
	query += " ORDER BY day, start_min"
	return repo.queryEntries(ctx, query, args...)
}

// CreateEntry commits inside a serializable transaction: the exclusion
// constraints reject racing timetable writes, and an in-tx scan rejects halls
// booked by planned exams (the constraints cannot span exam_session).
func (repo *timetableRepository) CreateEntry(ctx context.Context, entry schedule.Entry) (schedule.Entry, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return schedule.Entry{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = checkHallUnbooked(ctx, tx, entry); err != nil {
		return schedule.Entry{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO timetable_entry (id, teacher_id, class_id, subject_id, hall_id, day, start_min, end_min, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)`,
		entry.ID, entry.TeacherID, entry.ClassID, entry.SubjectID, entry.HallID,
		int(entry.Interval.Day), entry.Interval.Start, entry.Interval.End, entry.CreatedAt,
	)
	if err != nil {
		return schedule.Entry{}, mapTimetableError(err, "creating timetable entry")
	}
	if err = tx.Commit(); err != nil {
		return schedule.Entry{}, mapTimetableError(err, "committing timetable entry")
	}
	entry.Version = 1
	return entry, nil
}

func (repo *timetableRepository) UpdateEntry(ctx context.Context, entry schedule.Entry) (schedule.Entry, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return schedule.Entry{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = checkHallUnbooked(ctx, tx, entry); err != nil {
		return schedule.Entry{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE timetable_entry
		SET teacher_id = $1, class_id = $2, subject_id = $3, hall_id = $4,
		    day = $5, start_min = $6, end_min = $7,
		    version = version + 1, updated_at = $8
		WHERE id = $9 AND version = $10`,
		entry.TeacherID, entry.ClassID, entry.SubjectID, entry.HallID,
		int(entry.Interval.Day), entry.Interval.Start, entry.Interval.End,
		entry.UpdatedAt, entry.ID, entry.Version,
	)
	if err != nil {
		return schedule.Entry{}, mapTimetableError(err, "updating timetable entry")
	}
	if err = checkStamped(ctx, tx, res, entry.ID); err != nil {
		return schedule.Entry{}, err
	}
	if err = tx.Commit(); err != nil {
		return schedule.Entry{}, mapTimetableError(err, "committing timetable entry")
	}
	entry.Version++
	return entry, nil
}

// checkHallUnbooked re-validates, inside the commit transaction, that no
// planned exam holds the entry's hall on its weekday in an overlapping window.
// EXTRACT(DOW ...) counts Sunday as 0, matching time.Weekday.
func checkHallUnbooked(ctx context.Context, tx *sqlx.Tx, entry schedule.Entry) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT s.id
		FROM exam_session s
		JOIN exam_hall_allocation a ON a.session_id = s.id
		WHERE s.status = 'planned'
		  AND a.hall_id = $1
		  AND EXTRACT(DOW FROM s.exam_date)::int = $2
		  AND s.start_min < $3 AND $4 < s.end_min`,
		entry.HallID, int(entry.Interval.Day), int(entry.Interval.End), int(entry.Interval.Start),
	)
	if err != nil {
		return errors.Wrap(err, "checking hall bookings")
	}
	defer func() { _ = rows.Close() }()

	var conflicts []schedule.Conflict
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return errors.Wrap(err, "scanning booking session")
		}
		conflicts = append(conflicts, schedule.Conflict{Kind: schedule.ConflictHall, WithEntryID: id})
	}
	if err = rows.Err(); err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &schedule.ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (repo *timetableRepository) DeleteEntry(ctx context.Context, id uuid.UUID, version int) error {
	res, err := repo.db.ExecContext(ctx,
		"DELETE FROM timetable_entry WHERE id = $1 AND version = $2", id, version)
	if err != nil {
		return errors.Wrap(err, "deleting timetable entry")
	}
	return checkStamped(ctx, repo.db, res, id)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// checkStamped distinguishes a missing record from a stale version stamp
// after a versioned write matched no rows.
func checkStamped(ctx context.Context, q rowQuerier, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM timetable_entry WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking timetable entry")
	}
	if exists {
		return schedule.ErrConcurrentModification
	}
	return schedule.ErrNotFound
}

// Postgres error codes surfaced by commit-time re-validation.
const (
	pqExclusionViolation  = "23P01"
	pqSerializationFailed = "40001"
)

// mapTimetableError turns an exclusion-constraint violation into the conflict
// the request-time check would have reported had it seen the racing write.
// The constraint cannot name the winning entry, so WithEntryID stays zero.
func mapTimetableError(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case pqExclusionViolation:
			kind := schedule.ConflictHall
			switch pqErr.Constraint {
			case "timetable_teacher_no_overlap":
				kind = schedule.ConflictTeacher
			case "timetable_class_no_overlap":
				kind = schedule.ConflictClass
			}
			return &schedule.ConflictError{Conflicts: []schedule.Conflict{{Kind: kind}}}
		case pqSerializationFailed:
			return schedule.ErrConcurrentModification
		}
	}
	return errors.Wrap(err, msg)
}
