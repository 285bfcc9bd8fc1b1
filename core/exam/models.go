package exam

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/schedule"
)

// Status tracks the session state machine: draft -> planned -> (cancelled | completed).
// Only planned sessions participate in hall-availability conflict checks;
// cancelled ones are kept for audit history.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPlanned   Status = "planned"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Final() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// HallAllocation is the seat count assigned to one hall within a session.
// A session holds at most one allocation per hall.
type HallAllocation struct {
	HallID    uuid.UUID `json:"hall_id" validate:"required"`
	SeatCount int       `json:"seat_count" validate:"required,min=1"`
}

// Session is one scheduled examination for a class/subject, spanning one or
// more halls on a single calendar date.
type Session struct {
	ID            uuid.UUID          `json:"id"`
	SubjectID     uuid.UUID          `json:"subject_id"`
	ClassID       uuid.UUID          `json:"class_id"`
	Date          time.Time          `json:"date"` // calendar date, UTC midnight
	Start         schedule.TimeOfDay `json:"start"`
	End           schedule.TimeOfDay `json:"end"`
	Status        Status             `json:"status"`
	OverAllocated bool               `json:"over_allocated"`
	Allocations   []HallAllocation   `json:"allocations"`
	Version       int                `json:"version"`
	CreatedAt     time.Time          `json:"created_at"` // UTC
	UpdatedAt     time.Time          `json:"updated_at"` // UTC
}

// Interval maps the session onto the weekly grid of its date, so hall
// availability can be checked against timetable entries with the one checker.
func (s Session) Interval() schedule.TimeInterval {
	return schedule.TimeInterval{Day: s.Date.Weekday(), Start: s.Start, End: s.End}
}

// SeatTotal is the number of seats allocated across all halls.
func (s Session) SeatTotal() int {
	var total int
	for _, a := range s.Allocations {
		total += a.SeatCount
	}
	return total
}

func (s Session) allocationIndex(hallID uuid.UUID) int {
	for i, a := range s.Allocations {
		if a.HallID == hallID {
			return i
		}
	}
	return -1
}

// InsufficientCapacityError reports how many students the requested halls
// fall short of seating.
type InsufficientCapacityError struct {
	Short int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("hall allocations fall %d seats short of the class roster", e.Short)
}

// CapacityExceededError reports an allocation bigger than its hall.
type CapacityExceededError struct {
	HallID    uuid.UUID
	Capacity  int
	SeatCount int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("hall %s seats %d, %d requested", e.HallID, e.Capacity, e.SeatCount)
}

// PlanRequest is the payload for planning an exam session.
type PlanRequest struct {
	SubjectID   uuid.UUID          `json:"subject_id" validate:"required"`
	ClassID     uuid.UUID          `json:"class_id" validate:"required"`
	Date        time.Time          `json:"date" validate:"required"`
	Start       schedule.TimeOfDay `json:"start"`
	End         schedule.TimeOfDay `json:"end"`
	Allocations []HallAllocation   `json:"allocations" validate:"required,min=1,dive"`
}
