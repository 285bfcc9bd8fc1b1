package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tsanzi/ratiba/core/schedule"
	testutil "github.com/tsanzi/ratiba/tests"
)

func entryBody(t *testing.T, env *testutil.Env, teacher, class, subject, hall uuid.UUID, day time.Weekday, start, end string) []byte {
	t.Helper()
	return marchallObj(t, schedule.NewEntry{
		TeacherID: teacher,
		ClassID:   class,
		SubjectID: subject,
		HallID:    hall,
		Day:       day,
		Start:     testutil.Tod(t, start),
		End:       testutil.Tod(t, end),
	})
}

func Test_timetableApi_create(t *testing.T) {
	env, app := setup(t)

	teacher := env.Teachers[0]
	class := env.Classes[0]
	subject := env.Subjects[0]
	hall := env.Halls[0]

	t.Run("created", func(t *testing.T) {
		body := entryBody(t, env, teacher.ID, class.ID, subject.ID, hall.ID, time.Monday, "09:00", "10:00")
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", body)
		checkCode(t, rec, http.StatusCreated)

		got := decodeBody(t, rec)
		if got["id"] == "" {
			t.Error("response has no id")
		}
		if iv, _ := got["interval"].(map[string]interface{}); iv["start"] != "09:00" || iv["end"] != "10:00" {
			t.Errorf("interval = %v", got["interval"])
		}
		if got["version"] != float64(1) {
			t.Errorf("version = %v; want 1", got["version"])
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", []byte(`{"day": 1}`))
		checkCode(t, rec, http.StatusBadRequest)

		got := decodeBody(t, rec)
		for _, fld := range []string{"teacher_id", "class_id", "subject_id", "hall_id"} {
			if _, ok := got[fld]; !ok {
				t.Errorf("missing field error %q in %v", fld, got)
			}
		}
	})

	t.Run("malformed time", func(t *testing.T) {
		body := []byte(fmt.Sprintf(
			`{"teacher_id":%q,"class_id":%q,"subject_id":%q,"hall_id":%q,"day":1,"start":"9am","end":"10:00"}`,
			teacher.ID, class.ID, subject.ID, hall.ID))
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", body)
		checkCode(t, rec, http.StatusBadRequest)
	})

	t.Run("unknown resources", func(t *testing.T) {
		body := entryBody(t, env, uuid.New(), class.ID, subject.ID, hall.ID, time.Tuesday, "09:00", "10:00")
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", body)
		checkCodeAndData(t, rec, http.StatusBadRequest, []byte(`{"teacher_id": "unknown teacher"}`))
	})

	t.Run("conflict", func(t *testing.T) {
		// same hall as the committed entry, overlapping slot
		body := entryBody(t, env,
			env.Teachers[1].ID, env.Classes[1].ID, subject.ID, hall.ID, time.Monday, "09:30", "10:30")
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", body)
		checkCode(t, rec, http.StatusConflict)

		got := decodeBody(t, rec)
		conflicts, ok := got["conflicts"].([]interface{})
		if !ok || len(conflicts) != 1 {
			t.Fatalf("conflicts = %v; want one", got["conflicts"])
		}
		if c, _ := conflicts[0].(map[string]interface{}); c["kind"] != "hall" {
			t.Errorf("conflict kind = %v; want hall", conflicts[0])
		}
	})

	t.Run("back-to-back allowed", func(t *testing.T) {
		body := entryBody(t, env, teacher.ID, class.ID, subject.ID, hall.ID, time.Monday, "10:00", "11:00")
		rec := do(t, app, http.MethodPost, "/v1/timetable/entries", body)
		checkCode(t, rec, http.StatusCreated)
	})
}

func Test_timetableApi_queryRetrieve(t *testing.T) {
	env, app := setup(t)

	entry1 := env.CreateEntry(t,
		env.Teachers[0].ID, env.Classes[0].ID, env.Subjects[0].ID, env.Halls[0].ID, time.Monday, "09:00", "10:00")
	entry2 := env.CreateEntry(t,
		env.Teachers[1].ID, env.Classes[1].ID, env.Subjects[1].ID, env.Halls[1].ID, time.Tuesday, "11:00", "12:00")

	t.Run("all", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries")
		checkCode(t, rec, http.StatusOK)
		if body := rec.Body.String(); len(body) < 4 { // "[]" means entries were dropped
			t.Errorf("body = %s", body)
		}
	})

	t.Run("filter by teacher", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries?teacher_id="+entry1.TeacherID.String())
		checkCodeAndData(t, rec, http.StatusOK, marchallObj(t, []schedule.Entry{entry1}))
	})

	t.Run("filter by hall", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries?hall_id="+entry2.HallID.String())
		checkCodeAndData(t, rec, http.StatusOK, marchallObj(t, []schedule.Entry{entry2}))
	})

	t.Run("filter matches nothing", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries?teacher_id="+uuid.New().String())
		checkCodeAndData(t, rec, http.StatusOK, []byte(`[]`))
	})

	t.Run("bad filter", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries?teacher_id=lol")
		checkCodeAndData(t, rec, http.StatusBadRequest, []byte(`{"teacher_id": "invalid uuid"}`))
	})

	t.Run("retrieve", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries/"+entry1.ID.String())
		checkCodeAndData(t, rec, http.StatusOK, marchallObj(t, entry1))
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries/"+uuid.New().String())
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("retrieve bad id", func(t *testing.T) {
		rec := do(t, app, http.MethodGet, "/v1/timetable/entries/lol")
		checkCode(t, rec, http.StatusNotFound)
	})
}

func Test_timetableApi_updateDestroy(t *testing.T) {
	env, app := setup(t)

	entry := env.CreateEntry(t,
		env.Teachers[0].ID, env.Classes[0].ID, env.Subjects[0].ID, env.Halls[0].ID, time.Monday, "09:00", "10:00")

	t.Run("update slot", func(t *testing.T) {
		rec := do(t, app, http.MethodPut, "/v1/timetable/entries/"+entry.ID.String(),
			[]byte(`{"start": "09:30", "end": "10:30"}`))
		checkCode(t, rec, http.StatusOK)

		got := decodeBody(t, rec)
		if iv, _ := got["interval"].(map[string]interface{}); iv["start"] != "09:30" || iv["end"] != "10:30" {
			t.Errorf("interval = %v", got["interval"])
		}
		if got["version"] != float64(2) {
			t.Errorf("version = %v; want 2", got["version"])
		}
	})

	t.Run("update onto an occupied slot", func(t *testing.T) {
		env.CreateEntry(t,
			env.Teachers[0].ID, env.Classes[1].ID, env.Subjects[1].ID, env.Halls[1].ID, time.Monday, "12:00", "13:00")

		rec := do(t, app, http.MethodPut, "/v1/timetable/entries/"+entry.ID.String(),
			[]byte(`{"start": "12:30", "end": "13:30"}`))
		checkCode(t, rec, http.StatusConflict)
	})

	t.Run("update unknown", func(t *testing.T) {
		rec := do(t, app, http.MethodPut, "/v1/timetable/entries/"+uuid.New().String(), []byte(`{"day": 3}`))
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("destroy", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, "/v1/timetable/entries/"+entry.ID.String())
		checkCode(t, rec, http.StatusNoContent)

		rec = do(t, app, http.MethodGet, "/v1/timetable/entries/"+entry.ID.String())
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("destroy twice", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, "/v1/timetable/entries/"+entry.ID.String())
		checkCode(t, rec, http.StatusNotFound)
	})
}
