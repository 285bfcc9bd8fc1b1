// Package directory exposes the read-only view of the school's resources
// (teachers, classes, subjects, halls). The records themselves are owned by
// the admin console's CRUD layer; the scheduling engine only ever reads them,
// and never caches them beyond one validation snapshot.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found in directory")

type HallKind string

const (
	HallClassroom HallKind = "classroom"
	HallExam      HallKind = "exam_hall"
	HallLab       HallKind = "lab"
)

type (
	Hall struct {
		ID       uuid.UUID `json:"id"`
		Label    string    `json:"label"`
		Capacity int       `json:"capacity"`
		Kind     HallKind  `json:"kind"`
	}

	Teacher struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Email string    `json:"email"`
	}

	Class struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		RosterSize int       `json:"roster_size"`
	}

	Subject struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}

	// Directory is the external resource registry the engine validates against.
	Directory interface {
		HallByID(ctx context.Context, id uuid.UUID) (Hall, error)
		TeacherByID(ctx context.Context, id uuid.UUID) (Teacher, error)
		ClassByID(ctx context.Context, id uuid.UUID) (Class, error)
		SubjectByID(ctx context.Context, id uuid.UUID) (Subject, error)
		// ClassRosterSize returns the number of students enrolled in the class.
		ClassRosterSize(ctx context.Context, classID uuid.UUID) (int, error)
	}
)
