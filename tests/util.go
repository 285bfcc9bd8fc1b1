package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/directory"
	"github.com/tsanzi/ratiba/core/exam"
	"github.com/tsanzi/ratiba/core/schedule"
	inmemdb "github.com/tsanzi/ratiba/storage/database/inmem"
)

// DirectorySeeder is the in-memory directory plus its seeding helpers.
type DirectorySeeder interface {
	directory.Directory
	AddHall(directory.Hall) directory.Hall
	AddTeacher(directory.Teacher) directory.Teacher
	AddClass(directory.Class) directory.Class
	AddSubject(directory.Subject) directory.Subject
}

// Env wires the scheduling services over a fresh in-memory store with a small
// seeded directory.
type Env struct {
	DB           *inmemdb.DB
	Dir          DirectorySeeder
	TimetableSvc *schedule.Service
	ExamSvc      *exam.Service
	Validate     *validator.Validate
	Translator   ut.Translator

	Teachers []directory.Teacher
	Classes  []directory.Class
	Halls    []directory.Hall
	Subjects []directory.Subject
}

func NewEnv(t *testing.T) *Env {
	return NewEnvWithSink(t, core.NopSink{})
}

func NewEnvWithSink(t *testing.T, sink core.EventSink) *Env {
	t.Helper()

	db := inmemdb.Open()
	dir := inmemdb.NewDirectory(db)
	validate, translator := core.NewValidator()

	env := &Env{
		DB:         db,
		Dir:        dir,
		Validate:   validate,
		Translator: translator,
	}

	env.Teachers = []directory.Teacher{
		dir.AddTeacher(directory.Teacher{Name: "Amina Hassan", Email: "amina@school.test"}),
		dir.AddTeacher(directory.Teacher{Name: "John Okello", Email: "john@school.test"}),
		dir.AddTeacher(directory.Teacher{Name: "Grace Mwangi", Email: "grace@school.test"}),
	}
	env.Classes = []directory.Class{
		dir.AddClass(directory.Class{Name: "Form 1A", RosterSize: 28}),
		dir.AddClass(directory.Class{Name: "Form 1B", RosterSize: 30}),
		dir.AddClass(directory.Class{Name: "Form 4", RosterSize: 62}),
	}
	env.Halls = []directory.Hall{
		dir.AddHall(directory.Hall{Label: "Room 101", Capacity: 30, Kind: directory.HallClassroom}),
		dir.AddHall(directory.Hall{Label: "Room 102", Capacity: 35, Kind: directory.HallClassroom}),
		dir.AddHall(directory.Hall{Label: "Main Hall", Capacity: 30, Kind: directory.HallExam}),
		dir.AddHall(directory.Hall{Label: "Annex Hall", Capacity: 30, Kind: directory.HallExam}),
		dir.AddHall(directory.Hall{Label: "Small Hall", Capacity: 5, Kind: directory.HallExam}),
	}
	env.Subjects = []directory.Subject{
		dir.AddSubject(directory.Subject{Name: "Mathematics"}),
		dir.AddSubject(directory.Subject{Name: "Physics"}),
		dir.AddSubject(directory.Subject{Name: "History"}),
	}

	timetableRepo := inmemdb.NewTimetableRepository(db)
	examRepo := inmemdb.NewExamRepository(db)
	env.TimetableSvc = schedule.NewService(timetableRepo, examRepo, dir, validate, sink, schedule.DefaultDayBounds)
	env.ExamSvc = exam.NewService(examRepo, timetableRepo, dir, validate, sink, schedule.DefaultDayBounds)
	return env
}

// CreateEntry commits a timetable entry through the service, failing the test
// on any error.
func (env *Env) CreateEntry(t *testing.T, teacher, class, subject, hall uuid.UUID, day time.Weekday, start, end string) schedule.Entry {
	t.Helper()

	entry, err := env.TimetableSvc.Create(context.Background(), schedule.NewEntry{
		TeacherID: teacher,
		ClassID:   class,
		SubjectID: subject,
		HallID:    hall,
		Day:       day,
		Start:     Tod(t, start),
		End:       Tod(t, end),
	})
	if err != nil {
		t.Fatalf("CreateEntry() failed: %v", err)
	}
	return entry
}

// PlanExam commits an exam session through the service, failing the test on
// any error.
func (env *Env) PlanExam(t *testing.T, subject, class uuid.UUID, date time.Time, start, end string, allocations ...exam.HallAllocation) exam.Session {
	t.Helper()

	session, err := env.ExamSvc.Plan(context.Background(), exam.PlanRequest{
		SubjectID:   subject,
		ClassID:     class,
		Date:        date,
		Start:       Tod(t, start),
		End:         Tod(t, end),
		Allocations: allocations,
	})
	if err != nil {
		t.Fatalf("PlanExam() failed: %v", err)
	}
	return session
}

// Tod parses "HH:MM", failing the test on malformed input.
func Tod(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()

	tod, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("Tod(%q) failed: %v", s, err)
	}
	return tod
}

// Date returns the UTC midnight of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
