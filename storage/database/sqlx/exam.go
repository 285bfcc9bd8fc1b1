package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
)

const sessionColumns = "id, subject_id, class_id, exam_date, start_min, end_min, status, over_allocated, version, created_at, updated_at"

type examRepository struct {
	db *sqlx.DB
}

// interface compliance checks
var (
	_ exam.Repository            = (*examRepository)(nil)
	_ schedule.HallBookingSource = (*examRepository)(nil)
)

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

// QueryHallBookings exposes planned-session hall holds to the timetable side,
// one booking per allocated hall.
func (repo *examRepository) QueryHallBookings(ctx context.Context) ([]schedule.HallBooking, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT s.id, a.hall_id, s.exam_date, s.start_min, s.end_min
		FROM exam_session s
		JOIN exam_hall_allocation a ON a.session_id = s.id
		WHERE s.status = 'planned'`)
	if err != nil {
		return nil, errors.Wrap(err, "querying hall bookings")
	}
	defer func() { _ = rows.Close() }()

	bookings := make([]schedule.HallBooking, 0)
	for rows.Next() {
		var b schedule.HallBooking
		if err = rows.Scan(&b.BookingID, &b.HallID, &b.Date, &b.Start, &b.End); err != nil {
			return nil, errors.Wrap(err, "scanning hall booking")
		}
		b.Date = b.Date.UTC()
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanSession(row rowScanner) (exam.Session, error) {
	var s exam.Session
	err := row.Scan(
		&s.ID, &s.SubjectID, &s.ClassID, &s.Date, &s.Start, &s.End,
		&s.Status, &s.OverAllocated, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return exam.Session{}, err
	}
	s.Date = s.Date.UTC()
	return s, nil
}

func (repo *examRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]exam.Session, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying exam sessions")
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]exam.Session, 0)
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning exam session")
		}
		byID[session.ID] = len(sessions)
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID.String())
	}
	allocRows, err := repo.db.QueryContext(ctx, `
		SELECT session_id, hall_id, seat_count
		FROM exam_hall_allocation
		WHERE session_id = ANY ($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying hall allocations")
	}
	defer func() { _ = allocRows.Close() }()
	for allocRows.Next() {
		var sessionID uuid.UUID
		var alloc exam.HallAllocation
		if err = allocRows.Scan(&sessionID, &alloc.HallID, &alloc.SeatCount); err != nil {
			return nil, errors.Wrap(err, "scanning hall allocation")
		}
		if i, ok := byID[sessionID]; ok {
			sessions[i].Allocations = append(sessions[i].Allocations, alloc)
		}
	}
	return sessions, allocRows.Err()
}

func (repo *examRepository) QuerySessions(ctx context.Context) ([]exam.Session, error) {
	return repo.querySessions(ctx, "SELECT "+sessionColumns+" FROM exam_session ORDER BY exam_date, start_min")
}

func (repo *examRepository) QueryPlannedSessions(ctx context.Context) ([]exam.Session, error) {
	return repo.querySessions(ctx, "SELECT "+sessionColumns+" FROM exam_session WHERE status = 'planned'")
}

func (repo *examRepository) GetSessionByID(ctx context.Context, id uuid.UUID) (exam.Session, error) {
	sessions, err := repo.querySessions(ctx, "SELECT "+sessionColumns+" FROM exam_session WHERE id = $1", id)
	if err != nil {
		return exam.Session{}, err
	}
	if len(sessions) == 0 {
		return exam.Session{}, exam.ErrNotFound
	}
	return sessions[0], nil
}

// CreateSession commits the session and all its allocations in one
// serializable transaction, re-checking hall availability inside it:
// partial hall assignment is never persisted, and of two racing plans
// exactly one commits.
func (repo *examRepository) CreateSession(ctx context.Context, session exam.Session) (exam.Session, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return exam.Session{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if session.Status == exam.StatusPlanned {
		if err = repo.checkHallsFree(ctx, tx, session); err != nil {
			return exam.Session{}, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exam_session (id, subject_id, class_id, exam_date, start_min, end_min, status, over_allocated, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)`,
		session.ID, session.SubjectID, session.ClassID, session.Date,
		session.Start, session.End, session.Status, session.OverAllocated, session.CreatedAt,
	)
	if err != nil {
		return exam.Session{}, mapExamError(err, "creating exam session")
	}
	if err = insertAllocations(ctx, tx, session); err != nil {
		return exam.Session{}, err
	}
	if err = tx.Commit(); err != nil {
		return exam.Session{}, mapExamError(err, "committing exam session")
	}
	session.Version = 1
	return session, nil
}

func (repo *examRepository) UpdateSession(ctx context.Context, session exam.Session) (exam.Session, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return exam.Session{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if session.Status == exam.StatusPlanned {
		if err = repo.checkHallsFree(ctx, tx, session); err != nil {
			return exam.Session{}, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE exam_session
		SET status = $1, over_allocated = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		session.Status, session.OverAllocated, session.UpdatedAt, session.ID, session.Version,
	)
	if err != nil {
		return exam.Session{}, mapExamError(err, "updating exam session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return exam.Session{}, errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		var exists bool
		err = tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM exam_session WHERE id = $1)", session.ID).Scan(&exists)
		if err != nil {
			return exam.Session{}, errors.Wrap(err, "checking exam session")
		}
		if exists {
			return exam.Session{}, exam.ErrConcurrentModification
		}
		return exam.Session{}, exam.ErrNotFound
	}

	// replace allocations wholesale: the session is the unit of commit
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM exam_hall_allocation WHERE session_id = $1", session.ID); err != nil {
		return exam.Session{}, errors.Wrap(err, "clearing hall allocations")
	}
	if err = insertAllocations(ctx, tx, session); err != nil {
		return exam.Session{}, err
	}
	if err = tx.Commit(); err != nil {
		return exam.Session{}, mapExamError(err, "committing exam session")
	}
	session.Version++
	return session, nil
}

// checkHallsFree re-validates, inside the commit transaction, that no planned
// exam and no timetabled class session occupies the requested halls in the
// session's window.
func (repo *examRepository) checkHallsFree(ctx context.Context, tx *sqlx.Tx, session exam.Session) error {
	hallIDs := make([]string, 0, len(session.Allocations))
	for _, alloc := range session.Allocations {
		hallIDs = append(hallIDs, alloc.HallID.String())
	}

	var conflicts []schedule.Conflict

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT s.id
		FROM exam_session s
		JOIN exam_hall_allocation a ON a.session_id = s.id
		WHERE s.status = 'planned'
		  AND s.id <> $1
		  AND s.exam_date = $2
		  AND a.hall_id = ANY ($3::uuid[])
		  AND s.start_min < $4 AND $5 < s.end_min`,
		session.ID, session.Date, pq.Array(hallIDs), int(session.End), int(session.Start),
	)
	if err != nil {
		return errors.Wrap(err, "checking exam hall availability")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return errors.Wrap(err, "scanning conflicting session")
		}
		conflicts = append(conflicts, schedule.Conflict{Kind: schedule.ConflictHall, WithEntryID: id})
	}
	if err = rows.Err(); err != nil {
		return err
	}

	entryRows, err := tx.QueryContext(ctx, `
		SELECT id
		FROM timetable_entry
		WHERE hall_id = ANY ($1::uuid[])
		  AND day = $2
		  AND start_min < $3 AND $4 < end_min`,
		pq.Array(hallIDs), int(session.Date.Weekday()), int(session.End), int(session.Start),
	)
	if err != nil {
		return errors.Wrap(err, "checking timetable hall availability")
	}
	defer func() { _ = entryRows.Close() }()
	for entryRows.Next() {
		var id uuid.UUID
		if err = entryRows.Scan(&id); err != nil {
			return errors.Wrap(err, "scanning conflicting entry")
		}
		conflicts = append(conflicts, schedule.Conflict{Kind: schedule.ConflictHall, WithEntryID: id})
	}
	if err = entryRows.Err(); err != nil {
		return err
	}

	if len(conflicts) > 0 {
		return &schedule.ConflictError{Conflicts: conflicts}
	}
	return nil
}

func insertAllocations(ctx context.Context, tx *sqlx.Tx, session exam.Session) error {
	for _, alloc := range session.Allocations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exam_hall_allocation (session_id, hall_id, seat_count)
			VALUES ($1, $2, $3)`,
			session.ID, alloc.HallID, alloc.SeatCount,
		)
		if err != nil {
			return errors.Wrap(err, "inserting hall allocation")
		}
	}
	return nil
}

func mapExamError(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqSerializationFailed {
		return exam.ErrConcurrentModification
	}
	return errors.Wrap(err, msg)
}
