package schedule

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/directory"
)

var (
	// errors
	ErrNotFound               = errors.New("timetable entry not found")
	ErrConcurrentModification = errors.New("timetable entry was modified concurrently")
)

type (
	// Repository is the authoritative timetable store. Every record carries a
	// version stamp; writes re-validate at commit time so that concurrent
	// transactions against the same resources cannot both succeed:
	// a stale stamp fails with ErrConcurrentModification, a commit that would
	// introduce an overlap fails with *ConflictError.
	Repository interface {
		QueryAllEntries(ctx context.Context) ([]Entry, error)
		GetEntryByID(ctx context.Context, id uuid.UUID) (Entry, error)
		FilterEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		UpdateEntry(ctx context.Context, entry Entry) (Entry, error)
		DeleteEntry(ctx context.Context, id uuid.UUID, version int) error
	}

	// HallBookingSource yields the hall bookings timetable writes are checked
	// against; the exam store satisfies it. Halls are shared between both
	// stores, so a planned exam blocks the overlapping timetable slot just as
	// a timetabled session blocks the exam.
	HallBookingSource interface {
		QueryHallBookings(ctx context.Context) ([]HallBooking, error)
	}

	// Service orchestrates create/update/delete of timetable entries:
	// validation over a store snapshot first, then a versioned commit.
	// It holds no state of its own between calls.
	Service struct {
		repo     Repository
		exams    HallBookingSource
		dir      directory.Directory
		validate *validator.Validate
		sink     core.EventSink
		bounds   DayBounds
	}
)

func NewService(
	repo Repository,
	exams HallBookingSource,
	dir directory.Directory,
	validate *validator.Validate,
	sink core.EventSink,
	bounds DayBounds,
) *Service {
	return &Service{
		repo:     repo,
		exams:    exams,
		dir:      dir,
		validate: validate,
		sink:     sink,
		bounds:   bounds,
	}
}

// Bounds returns the configured school-day bounds.
func (svc *Service) Bounds() DayBounds { return svc.bounds }

func (svc *Service) Create(ctx context.Context, data NewEntry) (Entry, error) {
	if err := svc.validate.Struct(data); err != nil {
		return Entry{}, err
	}
	iv := data.interval()
	if err := iv.Validate(svc.bounds); err != nil {
		return Entry{}, err
	}
	if err := svc.checkDirectory(ctx, data.TeacherID, data.ClassID, data.SubjectID, data.HallID); err != nil {
		return Entry{}, err
	}

	now := time.Now().UTC()
	entry := Entry{
		ID:        uuid.New(),
		TeacherID: data.TeacherID,
		ClassID:   data.ClassID,
		SubjectID: data.SubjectID,
		HallID:    data.HallID,
		Interval:  iv,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := svc.checkConflicts(ctx, entry); err != nil {
		return Entry{}, err
	}

	entry, err := svc.repo.CreateEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	svc.sink.Emit(core.Event{Name: core.EventEntryCreated, At: now, Payload: entry})
	return entry, nil
}

func (svc *Service) Update(ctx context.Context, id uuid.UUID, patch UpdateEntry) (Entry, error) {
	if err := svc.validate.Struct(patch); err != nil {
		return Entry{}, err
	}

	current, err := svc.repo.GetEntryByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	entry := patch.apply(current)
	if err = entry.Interval.Validate(svc.bounds); err != nil {
		return Entry{}, err
	}
	if err = svc.checkDirectory(ctx, entry.TeacherID, entry.ClassID, entry.SubjectID, entry.HallID); err != nil {
		return Entry{}, err
	}

	// entry keeps its id: FindConflicts skips the prior version of itself
	if err = svc.checkConflicts(ctx, entry); err != nil {
		return Entry{}, err
	}

	entry.UpdatedAt = time.Now().UTC()
	entry, err = svc.repo.UpdateEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	svc.sink.Emit(core.Event{Name: core.EventEntryUpdated, At: entry.UpdatedAt, Payload: entry})
	return entry, nil
}

// Delete removes an entry; removal cannot create a conflict so none is checked.
func (svc *Service) Delete(ctx context.Context, id uuid.UUID) error {
	entry, err := svc.repo.GetEntryByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteEntry(ctx, id, entry.Version); err != nil {
		return err
	}
	svc.sink.Emit(core.Event{Name: core.EventEntryDeleted, At: time.Now().UTC(), Payload: entry})
	return nil
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Entry, error) {
	return svc.repo.GetEntryByID(ctx, id)
}

// Filter is a lock-free snapshot read used by calendar views.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return svc.repo.FilterEntries(ctx, filter)
}

// checkConflicts validates the candidate against the timetable snapshot and
// against planned exam hall bookings. Both checks rerun at commit time in the
// store, so a racing write the snapshot could not see still fails.
func (svc *Service) checkConflicts(ctx context.Context, entry Entry) error {
	snapshot, err := svc.repo.QueryAllEntries(ctx)
	if err != nil {
		return errors.Wrap(err, "reading timetable snapshot")
	}
	conflicts := FindConflicts(entry, snapshot)

	bookings, err := svc.exams.QueryHallBookings(ctx)
	if err != nil {
		return errors.Wrap(err, "reading hall bookings")
	}
	conflicts = append(conflicts, HallBookingConflicts(entry, bookings)...)

	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (svc *Service) checkDirectory(ctx context.Context, teacherID, classID, subjectID, hallID uuid.UUID) error {
	var flds []core.FieldError
	if _, err := svc.dir.TeacherByID(ctx, teacherID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up teacher")
		}
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "unknown teacher"})
	}
	if _, err := svc.dir.ClassByID(ctx, classID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up class")
		}
		flds = append(flds, core.FieldError{Field: "class_id", Error: "unknown class"})
	}
	if _, err := svc.dir.SubjectByID(ctx, subjectID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up subject")
		}
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "unknown subject"})
	}
	if _, err := svc.dir.HallByID(ctx, hallID); err != nil {
		if errors.Cause(err) != directory.ErrNotFound {
			return errors.Wrap(err, "looking up hall")
		}
		flds = append(flds, core.FieldError{Field: "hall_id", Error: "unknown hall"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("unknown resources"), flds...)
	}
	return nil
}
