package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/schedule"
)

type timetableRepository struct {
	db *DB
}

var _ schedule.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) QueryAllEntries(ctx context.Context) ([]schedule.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.queryEntries(), nil
}

func (repo *timetableRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (schedule.Entry, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Entry{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if entry, ok := repo.db.entries[id]; ok {
		return *entry, nil
	}
	return schedule.Entry{}, schedule.ErrNotFound
}

func (repo *timetableRepository) FilterEntries(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]schedule.Entry, 0)
	for _, e := range repo.db.entries {
		if filter.Match(*e) {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// CreateEntry re-validates conflicts under the write lock: of two concurrent
// transactions racing for the same resource, exactly one commits.
func (repo *timetableRepository) CreateEntry(ctx context.Context, entry schedule.Entry) (schedule.Entry, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Entry{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if conflicts := repo.entryConflicts(entry); len(conflicts) > 0 {
		return schedule.Entry{}, &schedule.ConflictError{Conflicts: conflicts}
	}
	entry.Version = 1
	repo.db.entries[entry.ID] = &entry
	return entry, nil
}

func (repo *timetableRepository) UpdateEntry(ctx context.Context, entry schedule.Entry) (schedule.Entry, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Entry{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.entries[entry.ID]
	if !ok {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	if orig.Version != entry.Version {
		return schedule.Entry{}, schedule.ErrConcurrentModification
	}
	// FindConflicts skips the stored prior version via the shared id
	if conflicts := repo.entryConflicts(entry); len(conflicts) > 0 {
		return schedule.Entry{}, &schedule.ConflictError{Conflicts: conflicts}
	}
	entry.Version++
	repo.db.entries[entry.ID] = &entry
	return entry, nil
}

// entryConflicts checks both stores: other timetable entries and halls booked
// by planned exams. Callers hold the write lock.
func (repo *timetableRepository) entryConflicts(entry schedule.Entry) []schedule.Conflict {
	conflicts := schedule.FindConflicts(entry, repo.db.queryEntries())
	return append(conflicts, schedule.HallBookingConflicts(entry, repo.db.hallBookings())...)
}

func (repo *timetableRepository) DeleteEntry(ctx context.Context, id uuid.UUID, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.entries[id]
	if !ok {
		return schedule.ErrNotFound
	}
	if orig.Version != version {
		return schedule.ErrConcurrentModification
	}
	delete(repo.db.entries, id)
	return nil
}
