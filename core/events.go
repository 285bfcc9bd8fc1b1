package core

import "time"

// Event names emitted by the scheduling services.
const (
	EventEntryCreated = "timetable.entry.created"
	EventEntryUpdated = "timetable.entry.updated"
	EventEntryDeleted = "timetable.entry.deleted"

	EventExamPlanned        = "exam.session.planned"
	EventExamHallReassigned = "exam.session.hall_reassigned"
	EventExamCancelled      = "exam.session.cancelled"
	EventExamCompleted      = "exam.session.completed"
)

// Event is a domain event emitted after a successful commit. Events are
// fire-and-forget: sinks must never influence the outcome of the operation
// that produced them.
type Event struct {
	Name    string
	At      time.Time
	Payload interface{}
}

// EventSink is any service that consumes domain events.
type EventSink interface {
	// Emit delivers events asynchronously; it must not block the caller.
	Emit(events ...Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(...Event) {}
