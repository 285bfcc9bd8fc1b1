package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tsanzi/ratiba/core"
)

const dayMinutes = 24 * 60

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// It round-trips as "HH:MM" in JSON and as an integer in the database.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (seconds, if present, are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if t, err = time.Parse("15:04:05", s); err != nil {
			return 0, errors.Wrapf(err, "parsing time of day %q", s)
		}
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = tod
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *TimeOfDay) Scan(v interface{}) error {
	switch x := v.(type) {
	case int64:
		*t = TimeOfDay(x)
		return nil
	case []byte:
		n, err := strconv.Atoi(string(x))
		if err != nil {
			return err
		}
		*t = TimeOfDay(n)
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return errors.Errorf("timeofday: unsupported Scan type %T", v)
	}
}

// TimeInterval is a weekly recurring slot: a day of week plus a half-open
// [Start, End) time range.
type TimeInterval struct {
	Day   time.Weekday `json:"day"`
	Start TimeOfDay    `json:"start"`
	End   TimeOfDay    `json:"end"`
}

// Overlaps reports whether both intervals fall on the same day and their
// ranges intersect. Ranges are half-open: back-to-back slots do not overlap.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return i.Day == other.Day && i.Start < other.End && other.Start < i.End
}

func (i TimeInterval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Day, i.Start, i.End)
}

// DayBounds is the configured school day; intervals outside it are invalid.
type DayBounds struct {
	Start TimeOfDay
	End   TimeOfDay
}

// DefaultDayBounds covers the whole day (00:00-23:59).
var DefaultDayBounds = DayBounds{Start: 0, End: dayMinutes - 1}

// ParseDayBounds builds DayBounds from the "HH:MM" pair held in config.
func ParseDayBounds(conf core.ScheduleConfig) (DayBounds, error) {
	start, err := ParseTimeOfDay(conf.DayStart)
	if err != nil {
		return DayBounds{}, err
	}
	end, err := ParseTimeOfDay(conf.DayEnd)
	if err != nil {
		return DayBounds{}, err
	}
	if start >= end {
		return DayBounds{}, errors.Errorf("invalid school day bounds %s-%s", start, end)
	}
	return DayBounds{Start: start, End: end}, nil
}

// Validate fails fast on malformed intervals; conflict checking never sees them.
func (i TimeInterval) Validate(bounds DayBounds) error {
	var flds []core.FieldError
	if i.Day < time.Sunday || i.Day > time.Saturday {
		flds = append(flds, core.FieldError{Field: "day", Error: "invalid day of week"})
	}
	if i.Start < 0 || i.Start >= dayMinutes {
		flds = append(flds, core.FieldError{Field: "start", Error: "invalid time of day"})
	}
	if i.End <= 0 || i.End > dayMinutes {
		flds = append(flds, core.FieldError{Field: "end", Error: "invalid time of day"})
	}
	if len(flds) == 0 {
		if i.Start >= i.End {
			flds = append(flds, core.FieldError{Field: "end", Error: "end must be after start"})
		} else {
			if i.Start < bounds.Start {
				flds = append(flds, core.FieldError{
					Field: "start",
					Error: fmt.Sprintf("school day starts at %s", bounds.Start),
				})
			}
			if i.End > bounds.End {
				flds = append(flds, core.FieldError{
					Field: "end",
					Error: fmt.Sprintf("school day ends at %s", bounds.End),
				})
			}
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid time interval"), flds...)
	}
	return nil
}
