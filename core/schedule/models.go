package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one weekly recurring teaching slot. Entries are created, updated
// and deleted only through the Service; an update replaces the whole entry
// atomically, never a partial mutation.
type Entry struct {
	ID        uuid.UUID    `json:"id"`
	TeacherID uuid.UUID    `json:"teacher_id"`
	ClassID   uuid.UUID    `json:"class_id"`
	SubjectID uuid.UUID    `json:"subject_id"`
	HallID    uuid.UUID    `json:"hall_id"`
	Interval  TimeInterval `json:"interval"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"` // UTC
	UpdatedAt time.Time    `json:"updated_at"` // UTC
}

type ConflictKind string

const (
	ConflictTeacher ConflictKind = "teacher"
	ConflictHall    ConflictKind = "hall"
	ConflictClass   ConflictKind = "class"
)

// Conflict is one detected overlap between the candidate and a committed
// scheduled item sharing a resource.
type Conflict struct {
	Kind        ConflictKind `json:"kind"`
	WithEntryID uuid.UUID    `json:"with_entry_id"`
}

// ConflictError carries every violation found so the caller can render an
// actionable message; the engine never auto-resolves any of them.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	kinds := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		kinds = append(kinds, string(c.Kind))
	}
	return fmt.Sprintf("scheduling conflict (%s)", strings.Join(kinds, ", "))
}

// NewEntry is the payload for creating a timetable entry.
type NewEntry struct {
	TeacherID uuid.UUID    `json:"teacher_id" validate:"required"`
	ClassID   uuid.UUID    `json:"class_id" validate:"required"`
	SubjectID uuid.UUID    `json:"subject_id" validate:"required"`
	HallID    uuid.UUID    `json:"hall_id" validate:"required"`
	Day       time.Weekday `json:"day" validate:"min=0,max=6"`
	Start     TimeOfDay    `json:"start"`
	End       TimeOfDay    `json:"end"`
}

func (ne NewEntry) interval() TimeInterval {
	return TimeInterval{Day: ne.Day, Start: ne.Start, End: ne.End}
}

// UpdateEntry is a patch: nil fields keep their current value.
type UpdateEntry struct {
	TeacherID *uuid.UUID    `json:"teacher_id"`
	ClassID   *uuid.UUID    `json:"class_id"`
	SubjectID *uuid.UUID    `json:"subject_id"`
	HallID    *uuid.UUID    `json:"hall_id"`
	Day       *time.Weekday `json:"day" validate:"omitempty,min=0,max=6"`
	Start     *TimeOfDay    `json:"start"`
	End       *TimeOfDay    `json:"end"`
}

func (ue UpdateEntry) apply(entry Entry) Entry {
	if ue.TeacherID != nil {
		entry.TeacherID = *ue.TeacherID
	}
	if ue.ClassID != nil {
		entry.ClassID = *ue.ClassID
	}
	if ue.SubjectID != nil {
		entry.SubjectID = *ue.SubjectID
	}
	if ue.HallID != nil {
		entry.HallID = *ue.HallID
	}
	if ue.Day != nil {
		entry.Interval.Day = *ue.Day
	}
	if ue.Start != nil {
		entry.Interval.Start = *ue.Start
	}
	if ue.End != nil {
		entry.Interval.End = *ue.End
	}
	return entry
}

// QueryFilter applies AND operation on set (non-nil) fields.
type QueryFilter struct {
	TeacherID uuid.UUID
	ClassID   uuid.UUID
	HallID    uuid.UUID
}

// Match reports whether the entry satisfies every set filter field.
func (f QueryFilter) Match(entry Entry) bool {
	if f.TeacherID != uuid.Nil && entry.TeacherID != f.TeacherID {
		return false
	}
	if f.ClassID != uuid.Nil && entry.ClassID != f.ClassID {
		return false
	}
	if f.HallID != uuid.Nil && entry.HallID != f.HallID {
		return false
	}
	return true
}
