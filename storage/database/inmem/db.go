// Package inmemdb is the reference store implementation: a mutex-guarded
// in-memory database with the same commit semantics as the SQL store.
// It backs unit and API tests and local development without Postgres.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/directory"
	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
)

type DB struct {
	// one lock for all tables: exam commits re-validate against the
	// timetable, so both live under the same critical section
	mutex sync.RWMutex

	entries  map[uuid.UUID]*schedule.Entry
	sessions map[uuid.UUID]*exam.Session

	halls    map[uuid.UUID]directory.Hall
	teachers map[uuid.UUID]directory.Teacher
	classes  map[uuid.UUID]directory.Class
	subjects map[uuid.UUID]directory.Subject
}

func Open() *DB {
	return &DB{
		entries:  make(map[uuid.UUID]*schedule.Entry),
		sessions: make(map[uuid.UUID]*exam.Session),
		halls:    make(map[uuid.UUID]directory.Hall),
		teachers: make(map[uuid.UUID]directory.Teacher),
		classes:  make(map[uuid.UUID]directory.Class),
		subjects: make(map[uuid.UUID]directory.Subject),
	}
}

func (db *DB) queryEntries() []schedule.Entry {
	entries := make([]schedule.Entry, 0, len(db.entries))
	for _, e := range db.entries {
		entries = append(entries, *e)
	}
	return entries
}

func (db *DB) querySessions() []exam.Session {
	sessions := make([]exam.Session, 0, len(db.sessions))
	for _, s := range db.sessions {
		sessions = append(sessions, copySession(*s))
	}
	return sessions
}

// hallBookings flattens planned sessions into one booking per allocated hall.
func (db *DB) hallBookings() []schedule.HallBooking {
	var bookings []schedule.HallBooking
	for _, s := range db.sessions {
		if s.Status != exam.StatusPlanned {
			continue
		}
		for _, alloc := range s.Allocations {
			bookings = append(bookings, schedule.HallBooking{
				BookingID: s.ID,
				HallID:    alloc.HallID,
				Date:      s.Date,
				Start:     s.Start,
				End:       s.End,
			})
		}
	}
	return bookings
}

// copySession detaches the allocations slice from the stored record.
func copySession(s exam.Session) exam.Session {
	allocations := make([]exam.HallAllocation, len(s.Allocations))
	copy(allocations, s.Allocations)
	s.Allocations = allocations
	return s
}
