package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
)

type examRepository struct {
	db *DB
}

// interface compliance checks
var (
	_ exam.Repository            = (*examRepository)(nil)
	_ schedule.HallBookingSource = (*examRepository)(nil)
)

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

// QueryHallBookings exposes planned-session hall holds to the timetable side.
func (repo *examRepository) QueryHallBookings(ctx context.Context) ([]schedule.HallBooking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.hallBookings(), nil
}

func (repo *examRepository) QuerySessions(ctx context.Context) ([]exam.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.querySessions(), nil
}

func (repo *examRepository) QueryPlannedSessions(ctx context.Context) ([]exam.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]exam.Session, 0, len(repo.db.sessions))
	for _, s := range repo.db.sessions {
		if s.Status == exam.StatusPlanned {
			sessions = append(sessions, copySession(*s))
		}
	}
	return sessions, nil
}

func (repo *examRepository) GetSessionByID(ctx context.Context, id uuid.UUID) (exam.Session, error) {
	if err := ctx.Err(); err != nil {
		return exam.Session{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if session, ok := repo.db.sessions[id]; ok {
		return copySession(*session), nil
	}
	return exam.Session{}, exam.ErrNotFound
}

// CreateSession commits the session and all its allocations in one critical
// section, re-validating hall availability against both stores: of two
// concurrent plans racing for the same hall and window, exactly one commits.
func (repo *examRepository) CreateSession(ctx context.Context, session exam.Session) (exam.Session, error) {
	if err := ctx.Err(); err != nil {
		return exam.Session{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if session.Status == exam.StatusPlanned {
		if conflicts := repo.hallConflicts(session); len(conflicts) > 0 {
			return exam.Session{}, &schedule.ConflictError{Conflicts: conflicts}
		}
	}
	session.Version = 1
	stored := copySession(session)
	repo.db.sessions[session.ID] = &stored
	return session, nil
}

func (repo *examRepository) UpdateSession(ctx context.Context, session exam.Session) (exam.Session, error) {
	if err := ctx.Err(); err != nil {
		return exam.Session{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.sessions[session.ID]
	if !ok {
		return exam.Session{}, exam.ErrNotFound
	}
	if orig.Version != session.Version {
		return exam.Session{}, exam.ErrConcurrentModification
	}
	if session.Status == exam.StatusPlanned {
		if conflicts := repo.hallConflicts(session); len(conflicts) > 0 {
			return exam.Session{}, &schedule.ConflictError{Conflicts: conflicts}
		}
	}
	session.Version++
	stored := copySession(session)
	repo.db.sessions[session.ID] = &stored
	return session, nil
}

// hallConflicts re-checks every hall of the session against planned sessions
// on the same date and timetable entries on that weekday. Callers hold the
// write lock.
func (repo *examRepository) hallConflicts(session exam.Session) []schedule.Conflict {
	iv := session.Interval()
	ix := schedule.NewIndex(repo.db.queryEntries())

	var conflicts []schedule.Conflict
	for _, alloc := range session.Allocations {
		conflicts = append(conflicts, ix.HallConflicts(alloc.HallID, iv)...)
		for _, other := range repo.db.sessions {
			if other.ID == session.ID || other.Status != exam.StatusPlanned {
				continue
			}
			if !other.Date.Equal(session.Date) || !iv.Overlaps(other.Interval()) {
				continue
			}
			for _, otherAlloc := range other.Allocations {
				if otherAlloc.HallID == alloc.HallID {
					conflicts = append(conflicts, schedule.Conflict{
						Kind:        schedule.ConflictHall,
						WithEntryID: other.ID,
					})
				}
			}
		}
	}
	return conflicts
}
