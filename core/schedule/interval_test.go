package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tsanzi/ratiba/core"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tt, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) failed: %v", s, err)
	}
	return tt
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "08:30", want: 8*60 + 30},
		{in: "23:59", want: 23*60 + 59},
		{in: "09:15:30", want: 9*60 + 15}, // seconds dropped
		{in: "24:00", wantErr: true},
		{in: "8h30", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) = %v; want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var s struct {
		At TimeOfDay `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at": "13:45"}`), &s); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if want := NewTimeOfDay(13, 45); s.At != want {
		t.Errorf("Unmarshal() = %v; want %v", s.At, want)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if want := `{"at":"13:45"}`; string(b) != want {
		t.Errorf("Marshal() = %s; want %s", b, want)
	}
}

func TestTimeInterval_Overlaps(t *testing.T) {
	iv := func(day time.Weekday, start, end string) TimeInterval {
		return TimeInterval{Day: day, Start: tod(t, start), End: tod(t, end)}
	}

	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{name: "identical", a: iv(time.Monday, "09:00", "10:00"), b: iv(time.Monday, "09:00", "10:00"), want: true},
		{name: "partial overlap", a: iv(time.Monday, "09:00", "10:00"), b: iv(time.Monday, "09:30", "10:30"), want: true},
		{name: "containment", a: iv(time.Monday, "09:00", "12:00"), b: iv(time.Monday, "10:00", "11:00"), want: true},
		{name: "one minute overlap", a: iv(time.Monday, "09:00", "10:01"), b: iv(time.Monday, "10:00", "11:00"), want: true},
		{name: "back-to-back", a: iv(time.Monday, "09:00", "10:00"), b: iv(time.Monday, "10:00", "11:00"), want: false},
		{name: "back-to-back reversed", a: iv(time.Monday, "10:00", "11:00"), b: iv(time.Monday, "09:00", "10:00"), want: false},
		{name: "disjoint", a: iv(time.Monday, "08:00", "09:00"), b: iv(time.Monday, "10:00", "11:00"), want: false},
		{name: "different days", a: iv(time.Monday, "09:00", "10:00"), b: iv(time.Tuesday, "09:00", "10:00"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v; want %v", got, tt.want)
			}
			// overlap is symmetric
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestTimeInterval_Validate(t *testing.T) {
	bounds := DayBounds{Start: tod(t, "08:00"), End: tod(t, "17:00")}

	tests := []struct {
		name     string
		iv       TimeInterval
		wantFlds []string
	}{
		{name: "valid", iv: TimeInterval{Day: time.Monday, Start: tod(t, "09:00"), End: tod(t, "10:00")}},
		{name: "at bounds", iv: TimeInterval{Day: time.Friday, Start: tod(t, "08:00"), End: tod(t, "17:00")}},
		{name: "bad day", iv: TimeInterval{Day: 7, Start: tod(t, "09:00"), End: tod(t, "10:00")}, wantFlds: []string{"day"}},
		{name: "end before start", iv: TimeInterval{Day: time.Monday, Start: tod(t, "10:00"), End: tod(t, "09:00")}, wantFlds: []string{"end"}},
		{name: "zero length", iv: TimeInterval{Day: time.Monday, Start: tod(t, "09:00"), End: tod(t, "09:00")}, wantFlds: []string{"end"}},
		{name: "before school day", iv: TimeInterval{Day: time.Monday, Start: tod(t, "07:00"), End: tod(t, "09:00")}, wantFlds: []string{"start"}},
		{name: "after school day", iv: TimeInterval{Day: time.Monday, Start: tod(t, "16:00"), End: tod(t, "18:00")}, wantFlds: []string{"end"}},
		{name: "negative start", iv: TimeInterval{Day: time.Monday, Start: -1, End: tod(t, "10:00")}, wantFlds: []string{"start"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.iv.Validate(bounds)
			if len(tt.wantFlds) == 0 {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v; want *core.ValidationError", err)
			}
			got := make(map[string]bool, len(vErr.Fields))
			for _, fld := range vErr.Fields {
				got[fld.Field] = true
			}
			for _, fld := range tt.wantFlds {
				if !got[fld] {
					t.Errorf("Validate() missing field error %q; got %v", fld, vErr.Fields)
				}
			}
		})
	}
}

func TestParseDayBounds(t *testing.T) {
	bounds, err := ParseDayBounds(core.ScheduleConfig{DayStart: "07:30", DayEnd: "18:00"})
	if err != nil {
		t.Fatalf("ParseDayBounds() failed: %v", err)
	}
	if bounds.Start != tod(t, "07:30") || bounds.End != tod(t, "18:00") {
		t.Errorf("ParseDayBounds() = %+v", bounds)
	}

	if _, err = ParseDayBounds(core.ScheduleConfig{DayStart: "18:00", DayEnd: "07:30"}); err == nil {
		t.Error("ParseDayBounds() accepted inverted bounds")
	}
	if _, err = ParseDayBounds(core.ScheduleConfig{DayStart: "lol", DayEnd: "18:00"}); err == nil {
		t.Error("ParseDayBounds() accepted malformed start")
	}
}
