package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
	testutil "github.com/tsanzi/ratiba/tests"
)

type recordSink struct {
	mutex  sync.Mutex
	events []core.Event
}

func (s *recordSink) Emit(events ...core.Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, events...)
}

func (s *recordSink) names() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

func wantConflict(t *testing.T, err error, kind schedule.ConflictKind, withID uuid.UUID) {
	t.Helper()
	cErr, ok := err.(*schedule.ConflictError)
	if !ok {
		t.Fatalf("err = %v; want *schedule.ConflictError", err)
	}
	for _, c := range cErr.Conflicts {
		if c.Kind == kind && c.WithEntryID == withID {
			return
		}
	}
	t.Fatalf("conflicts = %v; want {%s %s}", cErr.Conflicts, kind, withID)
}

func Test_timetable_createAndQuery(t *testing.T) {
	sink := &recordSink{}
	env := testutil.NewEnvWithSink(t, sink)
	ctx := context.Background()

	teacher1, teacher2 := env.Teachers[0], env.Teachers[1]
	class1, class2 := env.Classes[0], env.Classes[1]
	subject := env.Subjects[0]
	hall1, hall2 := env.Halls[0], env.Halls[1]

	entry := env.CreateEntry(t, teacher1.ID, class1.ID, subject.ID, hall1.ID, time.Monday, "09:00", "10:00")
	if entry.ID == uuid.Nil {
		t.Fatal("Create() did not assign an id")
	}
	if entry.Version != 1 {
		t.Errorf("Version = %d; want 1", entry.Version)
	}

	got, err := env.TimetableSvc.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Interval != entry.Interval {
		t.Errorf("GetByID() interval = %v; want %v", got.Interval, entry.Interval)
	}

	other := env.CreateEntry(t, teacher2.ID, class2.ID, subject.ID, hall2.ID, time.Monday, "09:00", "10:00")

	byTeacher, err := env.TimetableSvc.Filter(ctx, schedule.QueryFilter{TeacherID: teacher1.ID})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if len(byTeacher) != 1 || byTeacher[0].ID != entry.ID {
		t.Errorf("Filter(teacher) = %v; want [%s]", byTeacher, entry.ID)
	}

	byHall, err := env.TimetableSvc.Filter(ctx, schedule.QueryFilter{HallID: hall2.ID})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if len(byHall) != 1 || byHall[0].ID != other.ID {
		t.Errorf("Filter(hall) = %v; want [%s]", byHall, other.ID)
	}

	names := sink.names()
	if len(names) != 2 || names[0] != core.EventEntryCreated || names[1] != core.EventEntryCreated {
		t.Errorf("events = %v", names)
	}
}

func Test_timetable_createRejectsConflicts(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher1, teacher2 := env.Teachers[0], env.Teachers[1]
	class1, class2 := env.Classes[0], env.Classes[1]
	math, physics := env.Subjects[0], env.Subjects[1]
	hall1, hall2 := env.Halls[0], env.Halls[1]

	committed := env.CreateEntry(t, teacher1.ID, class1.ID, math.ID, hall1.ID, time.Monday, "09:00", "10:00")

	newEntry := func(teacher, class, subject, hall uuid.UUID, start, end string) schedule.NewEntry {
		return schedule.NewEntry{
			TeacherID: teacher,
			ClassID:   class,
			SubjectID: subject,
			HallID:    hall,
			Day:       time.Monday,
			Start:     testutil.Tod(t, start),
			End:       testutil.Tod(t, end),
		}
	}

	t.Run("same teacher, overlapping slot", func(t *testing.T) {
		_, err := env.TimetableSvc.Create(ctx, newEntry(teacher1.ID, class2.ID, physics.ID, hall2.ID, "09:30", "10:30"))
		wantConflict(t, err, schedule.ConflictTeacher, committed.ID)
	})

	t.Run("same hall, overlapping slot", func(t *testing.T) {
		_, err := env.TimetableSvc.Create(ctx, newEntry(teacher2.ID, class2.ID, physics.ID, hall1.ID, "09:30", "10:30"))
		wantConflict(t, err, schedule.ConflictHall, committed.ID)
	})

	t.Run("same class, overlapping slot", func(t *testing.T) {
		_, err := env.TimetableSvc.Create(ctx, newEntry(teacher2.ID, class1.ID, physics.ID, hall2.ID, "09:30", "10:30"))
		wantConflict(t, err, schedule.ConflictClass, committed.ID)
	})

	t.Run("back-to-back is allowed", func(t *testing.T) {
		if _, err := env.TimetableSvc.Create(ctx, newEntry(teacher1.ID, class1.ID, physics.ID, hall1.ID, "10:00", "11:00")); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	})
}

func Test_timetable_createRejectsUnknownResources(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := env.TimetableSvc.Create(context.Background(), schedule.NewEntry{
		TeacherID: uuid.New(),
		ClassID:   env.Classes[0].ID,
		SubjectID: env.Subjects[0].ID,
		HallID:    uuid.New(),
		Day:       time.Monday,
		Start:     testutil.Tod(t, "09:00"),
		End:       testutil.Tod(t, "10:00"),
	})
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("Create() = %v; want *core.ValidationError", err)
	}
	flds := make(map[string]bool, len(vErr.Fields))
	for _, fld := range vErr.Fields {
		flds[fld.Field] = true
	}
	if !flds["teacher_id"] || !flds["hall_id"] || flds["class_id"] || flds["subject_id"] {
		t.Errorf("field errors = %v; want teacher_id and hall_id", vErr.Fields)
	}
}

func Test_timetable_update(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := env.Teachers[0]
	class := env.Classes[0]
	subject := env.Subjects[0]
	hall := env.Halls[0]

	entry := env.CreateEntry(t, teacher.ID, class.ID, subject.ID, hall.ID, time.Monday, "09:00", "10:00")

	t.Run("shifting an entry does not conflict with itself", func(t *testing.T) {
		start, end := testutil.Tod(t, "09:01"), testutil.Tod(t, "10:01")
		got, err := env.TimetableSvc.Update(ctx, entry.ID, schedule.UpdateEntry{Start: &start, End: &end})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if got.Interval.Start != start || got.Interval.End != end {
			t.Errorf("Update() interval = %v", got.Interval)
		}
		if got.Version != entry.Version+1 {
			t.Errorf("Version = %d; want %d", got.Version, entry.Version+1)
		}
		entry = got
	})

	t.Run("moving onto another entry conflicts", func(t *testing.T) {
		other := env.CreateEntry(t, env.Teachers[1].ID, env.Classes[1].ID, subject.ID, hall.ID, time.Monday, "11:00", "12:00")

		start, end := testutil.Tod(t, "11:30"), testutil.Tod(t, "12:30")
		_, err := env.TimetableSvc.Update(ctx, entry.ID, schedule.UpdateEntry{Start: &start, End: &end})
		wantConflict(t, err, schedule.ConflictHall, other.ID)
	})

	t.Run("unknown entry", func(t *testing.T) {
		day := time.Friday
		_, err := env.TimetableSvc.Update(ctx, uuid.New(), schedule.UpdateEntry{Day: &day})
		if err != schedule.ErrNotFound {
			t.Errorf("Update() = %v; want ErrNotFound", err)
		}
	})
}

func Test_timetable_delete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	entry := env.CreateEntry(t,
		env.Teachers[0].ID, env.Classes[0].ID, env.Subjects[0].ID, env.Halls[0].ID, time.Monday, "09:00", "10:00")

	if err := env.TimetableSvc.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := env.TimetableSvc.GetByID(ctx, entry.ID); err != schedule.ErrNotFound {
		t.Errorf("GetByID() after delete = %v; want ErrNotFound", err)
	}
	if err := env.TimetableSvc.Delete(ctx, entry.ID); err != schedule.ErrNotFound {
		t.Errorf("Delete() twice = %v; want ErrNotFound", err)
	}

	// the freed slot is placeable again
	env.CreateEntry(t,
		env.Teachers[0].ID, env.Classes[0].ID, env.Subjects[0].ID, env.Halls[0].ID, time.Monday, "09:00", "10:00")
}

// Halls are a shared resource: a hall held by a planned exam rejects
// overlapping timetable entries on that weekday, mirroring the check the exam
// planner runs against the timetable.
func Test_timetable_examHallBooked(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	teacher := env.Teachers[0]
	class := env.Classes[0] // roster 28
	subject := env.Subjects[0]
	mainHall := env.Halls[2]

	// Monday the 7th: the exam holds Main Hall 09:00-11:00
	session := env.PlanExam(t, subject.ID, class.ID, testutil.Date(2026, time.September, 7), "09:00", "11:00",
		exam.HallAllocation{HallID: mainHall.ID, SeatCount: 28})

	newEntry := func(hall uuid.UUID, day time.Weekday, start, end string) schedule.NewEntry {
		return schedule.NewEntry{
			TeacherID: teacher.ID,
			ClassID:   class.ID,
			SubjectID: subject.ID,
			HallID:    hall,
			Day:       day,
			Start:     testutil.Tod(t, start),
			End:       testutil.Tod(t, end),
		}
	}

	t.Run("overlapping slot in the booked hall", func(t *testing.T) {
		_, err := env.TimetableSvc.Create(ctx, newEntry(mainHall.ID, time.Monday, "09:30", "10:30"))
		wantConflict(t, err, schedule.ConflictHall, session.ID)
	})

	t.Run("moving an entry into the booked hall", func(t *testing.T) {
		entry := env.CreateEntry(t, teacher.ID, class.ID, subject.ID, env.Halls[0].ID, time.Monday, "09:00", "10:00")

		_, err := env.TimetableSvc.Update(ctx, entry.ID, schedule.UpdateEntry{HallID: &mainHall.ID})
		wantConflict(t, err, schedule.ConflictHall, session.ID)

		if err := env.TimetableSvc.Delete(ctx, entry.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("back-to-back with the exam is allowed", func(t *testing.T) {
		entry := env.CreateEntry(t, teacher.ID, class.ID, subject.ID, mainHall.ID, time.Monday, "11:00", "12:00")
		if err := env.TimetableSvc.Delete(ctx, entry.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("other weekday is free", func(t *testing.T) {
		entry := env.CreateEntry(t, teacher.ID, class.ID, subject.ID, mainHall.ID, time.Tuesday, "09:30", "10:30")
		if err := env.TimetableSvc.Delete(ctx, entry.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("cancelling the exam releases the hall", func(t *testing.T) {
		if _, err := env.ExamSvc.Cancel(ctx, session.ID); err != nil {
			t.Fatalf("Cancel() failed: %v", err)
		}
		env.CreateEntry(t, teacher.ID, class.ID, subject.ID, mainHall.ID, time.Monday, "09:30", "10:30")
	})
}

// Two writers racing for the same hall slot: exactly one commit wins, the
// loser gets a conflict even though both passed snapshot validation.
func Test_timetable_concurrentCreate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	newEntry := func(teacher, class uuid.UUID) schedule.NewEntry {
		return schedule.NewEntry{
			TeacherID: teacher,
			ClassID:   class,
			SubjectID: env.Subjects[0].ID,
			HallID:    env.Halls[0].ID,
			Day:       time.Monday,
			Start:     testutil.Tod(t, "09:00"),
			End:       testutil.Tod(t, "10:00"),
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	ready := make(chan struct{})
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			_, errs[i] = env.TimetableSvc.Create(ctx, newEntry(env.Teachers[i].ID, env.Classes[i].ID))
		}()
	}
	close(ready)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch err.(type) {
		case nil:
			won++
		case *schedule.ConflictError:
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("winners = %d, losers = %d; want exactly one of each (errs: %v)", won, lost, errs)
	}

	entries, err := env.TimetableSvc.Filter(ctx, schedule.QueryFilter{HallID: env.Halls[0].ID})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("committed entries = %d; want 1", len(entries))
	}
}
