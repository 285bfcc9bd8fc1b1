// Package eventsvc fans domain events out to the operational services.
// Every event is logged; events that affect a teacher's week additionally
// trigger a notification email.
package eventsvc

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/tsanzi/ratiba/core"
	"github.com/tsanzi/ratiba/core/directory"
	"github.com/tsanzi/ratiba/core/schedule"
)

const lookupTimeout = 5 * time.Second

type Dispatcher struct {
	logger core.Logger
	email  core.EmailService
	dir    directory.Directory
}

var _ core.EventSink = (*Dispatcher)(nil)

func NewDispatcher(logger core.Logger, email core.EmailService, dir directory.Directory) *Dispatcher {
	return &Dispatcher{logger: logger, email: email, dir: dir}
}

// Emit hands events off to a goroutine; failures are logged and swallowed so
// that a broken sink never surfaces in the operation that produced the event.
func (d *Dispatcher) Emit(events ...core.Event) {
	go func() {
		for _, event := range events {
			d.dispatch(event)
		}
	}()
}

func (d *Dispatcher) dispatch(event core.Event) {
	d.logger.Info(fmt.Sprintf("event: %s", event.Name), "at", event.At)

	entry, ok := event.Payload.(schedule.Entry)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	teacher, err := d.dir.TeacherByID(ctx, entry.TeacherID)
	if err != nil {
		d.logger.Error(fmt.Sprintf("event %s: looking up teacher %s: %v", event.Name, entry.TeacherID, err), err)
		return
	}
	if teacher.Email == "" {
		return
	}

	subject, body := describe(event.Name, entry)
	d.email.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject: subject,
		Body:    body,
	})
}

func describe(name string, entry schedule.Entry) (subject, body string) {
	slot := fmt.Sprintf("%s %s - %s", entry.Interval.Day, entry.Interval.Start, entry.Interval.End)
	switch name {
	case core.EventEntryCreated:
		return "New timetable entry", fmt.Sprintf("A lesson was added to your timetable: %s.", slot)
	case core.EventEntryUpdated:
		return "Timetable entry updated", fmt.Sprintf("One of your lessons was moved to %s.", slot)
	case core.EventEntryDeleted:
		return "Timetable entry removed", fmt.Sprintf("Your lesson on %s was removed from the timetable.", slot)
	}
	return "Timetable changed", fmt.Sprintf("Your timetable changed: %s.", slot)
}
