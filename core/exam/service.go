package exam

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/directory"
	"github.com/tsanzi/ratiba/core/schedule"
)

var (
	// errors
	ErrNotFound               = errors.New("exam session not found")
	ErrConcurrentModification = errors.New("exam session was modified concurrently")
)

type (
	// Repository is the authoritative exam store. Session commits are
	// all-or-nothing: a session and its hall allocations are never partially
	// persisted. Writes carry the version stamp read at snapshot time and
	// fail with ErrConcurrentModification when it has gone stale; commits
	// that would double-book a hall fail with *schedule.ConflictError.
	Repository interface {
		QuerySessions(ctx context.Context) ([]Session, error)
		QueryPlannedSessions(ctx context.Context) ([]Session, error)
		GetSessionByID(ctx context.Context, id uuid.UUID) (Session, error)
		CreateSession(ctx context.Context, session Session) (Session, error)
		UpdateSession(ctx context.Context, session Session) (Session, error)
	}

	// TimetableSource yields the timetable snapshot halls are checked against;
	// schedule.Repository satisfies it.
	TimetableSource interface {
		QueryAllEntries(ctx context.Context) ([]schedule.Entry, error)
	}

	// Service distributes a class roster across exam halls under capacity
	// caps and guards halls against double-booking by other exams or
	// timetabled class sessions.
	Service struct {
		repo      Repository
		timetable TimetableSource
		dir       directory.Directory
		validate  *validator.Validate
		sink      core.EventSink
		bounds    schedule.DayBounds
	}
)

func NewService(
	repo Repository,
	timetable TimetableSource,
	dir directory.Directory,
	validate *validator.Validate,
	sink core.EventSink,
	bounds schedule.DayBounds,
) *Service {
	return &Service{
		repo:      repo,
		timetable: timetable,
		dir:       dir,
		validate:  validate,
		sink:      sink,
		bounds:    bounds,
	}
}

// Plan validates and commits a new exam session. Halls over-covering the
// roster are persisted exactly as requested with OverAllocated set; trimming
// is left to the caller's judgment.
func (svc *Service) Plan(ctx context.Context, data PlanRequest) (Session, error) {
	if err := svc.validate.Struct(data); err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	session := Session{
		ID:          uuid.New(),
		SubjectID:   data.SubjectID,
		ClassID:     data.ClassID,
		Date:        data.Date.UTC().Truncate(24 * time.Hour),
		Start:       data.Start,
		End:         data.End,
		Status:      StatusPlanned,
		Allocations: data.Allocations,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := session.Interval().Validate(svc.bounds); err != nil {
		return Session{}, err
	}
	if err := svc.checkDirectory(ctx, session.SubjectID, session.ClassID); err != nil {
		return Session{}, err
	}
	if err := svc.checkAllocations(ctx, session); err != nil {
		return Session{}, err
	}

	roster, err := svc.dir.ClassRosterSize(ctx, session.ClassID)
	if err != nil {
		if errors.Cause(err) == directory.ErrNotFound {
			return Session{}, core.NewValidationError(errors.New("unknown class"),
				core.FieldError{Field: "class_id", Error: "unknown class"})
		}
		return Session{}, errors.Wrap(err, "looking up class roster")
	}
	if total := session.SeatTotal(); total < roster {
		return Session{}, &InsufficientCapacityError{Short: roster - total}
	} else if total > roster {
		session.OverAllocated = true
	}

	if err = svc.checkAvailability(ctx, session, session.Allocations); err != nil {
		return Session{}, err
	}

	session, err = svc.repo.CreateSession(ctx, session)
	if err != nil {
		return Session{}, err
	}
	svc.sink.Emit(core.Event{Name: core.EventExamPlanned, At: now, Payload: session})
	return session, nil
}

// ReassignHall swaps one hall allocation for another, re-running capacity and
// availability checks for the target hall only.
func (svc *Service) ReassignHall(ctx context.Context, sessionID, fromHallID, toHallID uuid.UUID) (Session, error) {
	session, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Status != StatusPlanned {
		return Session{}, core.NewValidationError(errors.Errorf("cannot reassign a %s session", session.Status))
	}

	idx := session.allocationIndex(fromHallID)
	if idx < 0 {
		return Session{}, core.NewValidationError(errors.New("hall not allocated to this session"),
			core.FieldError{Field: "from_hall_id", Error: "hall not allocated to this session"})
	}
	if session.allocationIndex(toHallID) >= 0 {
		return Session{}, core.NewValidationError(errors.New("hall already allocated to this session"),
			core.FieldError{Field: "to_hall_id", Error: "hall already allocated to this session"})
	}

	swapped := HallAllocation{HallID: toHallID, SeatCount: session.Allocations[idx].SeatCount}
	hall, err := svc.dir.HallByID(ctx, toHallID)
	if err != nil {
		if errors.Cause(err) == directory.ErrNotFound {
			return Session{}, core.NewValidationError(errors.New("unknown hall"),
				core.FieldError{Field: "to_hall_id", Error: "unknown hall"})
		}
		return Session{}, errors.Wrap(err, "looking up hall")
	}
	if swapped.SeatCount > hall.Capacity {
		return Session{}, &CapacityExceededError{HallID: hall.ID, Capacity: hall.Capacity, SeatCount: swapped.SeatCount}
	}

	allocations := make([]HallAllocation, len(session.Allocations))
	copy(allocations, session.Allocations)
	allocations[idx] = swapped
	session.Allocations = allocations

	if err = svc.checkAvailability(ctx, session, []HallAllocation{swapped}); err != nil {
		return Session{}, err
	}

	session.UpdatedAt = time.Now().UTC()
	session, err = svc.repo.UpdateSession(ctx, session)
	if err != nil {
		return Session{}, err
	}
	svc.sink.Emit(core.Event{Name: core.EventExamHallReassigned, At: session.UpdatedAt, Payload: session})
	return session, nil
}

// Cancel frees all hall allocations; the session is retained for audit.
func (svc *Service) Cancel(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	return svc.transition(ctx, sessionID, StatusCancelled, core.EventExamCancelled)
}

// Complete marks a planned session as held.
func (svc *Service) Complete(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	return svc.transition(ctx, sessionID, StatusCompleted, core.EventExamCompleted)
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx)
}

func (svc *Service) transition(ctx context.Context, sessionID uuid.UUID, to Status, event string) (Session, error) {
	session, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Status.Final() {
		return Session{}, core.NewValidationError(errors.Errorf("exam session already %s", session.Status))
	}
	session.Status = to
	session.UpdatedAt = time.Now().UTC()
	session, err = svc.repo.UpdateSession(ctx, session)
	if err != nil {
		return Session{}, err
	}
	svc.sink.Emit(core.Event{Name: event, At: session.UpdatedAt, Payload: session})
	return session, nil
}

func (svc *Service) checkDirectory(ctx context.Context, subjectID, classID uuid.UUID) error {
	var flds []core.FieldError
	if _, err := svc.dir.SubjectByID(ctx, subjectID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up subject")
		}
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "unknown subject"})
	}
	if _, err := svc.dir.ClassByID(ctx, classID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up class")
		}
		flds = append(flds, core.FieldError{Field: "class_id", Error: "unknown class"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("unknown resources"), flds...)
	}
	return nil
}

// checkAllocations rejects duplicate halls and per-hall capacity violations.
func (svc *Service) checkAllocations(ctx context.Context, session Session) error {
	seen := make(map[uuid.UUID]bool, len(session.Allocations))
	for _, alloc := range session.Allocations {
		if seen[alloc.HallID] {
			return core.NewValidationError(errors.Errorf("hall %s allocated twice", alloc.HallID),
				core.FieldError{Field: "allocations", Error: "at most one allocation per hall"})
		}
		seen[alloc.HallID] = true

		hall, err := svc.dir.HallByID(ctx, alloc.HallID)
		if err != nil {
			if errors.Cause(err) == directory.ErrNotFound {
				return core.NewValidationError(errors.Errorf("unknown hall %s", alloc.HallID),
					core.FieldError{Field: "allocations", Error: "unknown hall"})
			}
			return errors.Wrap(err, "looking up hall")
		}
		if alloc.SeatCount > hall.Capacity {
			return &CapacityExceededError{HallID: hall.ID, Capacity: hall.Capacity, SeatCount: alloc.SeatCount}
		}
	}
	return nil
}

// checkAvailability scans planned exam sessions and timetable entries for the
// requested halls on the session's date; a hall cannot simultaneously run a
// class session and an exam.
func (svc *Service) checkAvailability(ctx context.Context, session Session, allocations []HallAllocation) error {
	sessions, err := svc.repo.QueryPlannedSessions(ctx)
	if err != nil {
		return errors.Wrap(err, "reading exam snapshot")
	}
	entries, err := svc.timetable.QueryAllEntries(ctx)
	if err != nil {
		return errors.Wrap(err, "reading timetable snapshot")
	}
	ix := schedule.NewIndex(entries)
	iv := session.Interval()

	var conflicts []schedule.Conflict
	for _, alloc := range allocations {
		conflicts = append(conflicts, ix.HallConflicts(alloc.HallID, iv)...)
		for _, other := range sessions {
			if other.ID == session.ID || !other.Date.Equal(session.Date) {
				continue
			}
			if !iv.Overlaps(other.Interval()) {
				continue
			}
			if other.allocationIndex(alloc.HallID) >= 0 {
				conflicts = append(conflicts, schedule.Conflict{
					Kind:        schedule.ConflictHall,
					WithEntryID: other.ID,
				})
			}
		}
	}
	if len(conflicts) > 0 {
		return &schedule.ConflictError{Conflicts: conflicts}
	}
	return nil
}
