package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// FindConflicts checks the candidate against every existing entry sharing a
// resource id and returns one Conflict per violation. The candidate's own id
// is excluded so an update never conflicts with its prior version. An empty
// result means the candidate is placeable.
func FindConflicts(candidate Entry, existing []Entry) []Conflict {
	var conflicts []Conflict
	for _, e := range existing {
		if e.ID == candidate.ID {
			continue
		}
		if !candidate.Interval.Overlaps(e.Interval) {
			continue
		}
		if e.TeacherID == candidate.TeacherID {
			conflicts = append(conflicts, Conflict{Kind: ConflictTeacher, WithEntryID: e.ID})
		}
		if e.HallID == candidate.HallID {
			conflicts = append(conflicts, Conflict{Kind: ConflictHall, WithEntryID: e.ID})
		}
		if e.ClassID == candidate.ClassID {
			conflicts = append(conflicts, Conflict{Kind: ConflictClass, WithEntryID: e.ID})
		}
	}
	return conflicts
}

// HallBooking is a hall held outside the weekly timetable, e.g. by a planned
// exam session on a concrete date. Timetable writes check candidate halls
// against bookings by weekday: a booking blocks the matching weekday slot.
type HallBooking struct {
	BookingID uuid.UUID
	HallID    uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	End       TimeOfDay
}

// HallBookingConflicts reports bookings holding the candidate's hall on its
// weekday in an overlapping window.
func HallBookingConflicts(candidate Entry, bookings []HallBooking) []Conflict {
	var conflicts []Conflict
	for _, b := range bookings {
		if b.HallID != candidate.HallID || b.Date.Weekday() != candidate.Interval.Day {
			continue
		}
		iv := TimeInterval{Day: candidate.Interval.Day, Start: b.Start, End: b.End}
		if candidate.Interval.Overlaps(iv) {
			conflicts = append(conflicts, Conflict{Kind: ConflictHall, WithEntryID: b.BookingID})
		}
	}
	return conflicts
}

type resourceKey struct {
	kind ConflictKind
	id   uuid.UUID
}

type indexedSlot struct {
	start   TimeOfDay
	end     TimeOfDay
	entryID uuid.UUID
}

// Index holds per-resource, per-day interval lists sorted by start time, so
// bulk conflict checks don't rescan the whole timetable per candidate.
//
// An Index is only built over a committed (pairwise conflict-free) set, which
// makes each bucket a list of disjoint intervals: all overlaps with a probe
// interval sit in one contiguous run that binary search can bracket.
type Index struct {
	buckets map[resourceKey]map[time.Weekday][]indexedSlot
}

func NewIndex(entries []Entry) *Index {
	ix := &Index{buckets: make(map[resourceKey]map[time.Weekday][]indexedSlot)}
	for _, e := range entries {
		ix.Add(e)
	}
	for _, days := range ix.buckets {
		for _, slots := range days {
			sort.Slice(slots, func(i, j int) bool { return slots[i].start < slots[j].start })
		}
	}
	return ix
}

func (ix *Index) Add(e Entry) {
	for _, key := range entryKeys(e) {
		days, ok := ix.buckets[key]
		if !ok {
			days = make(map[time.Weekday][]indexedSlot)
			ix.buckets[key] = days
		}
		slots := append(days[e.Interval.Day], indexedSlot{
			start:   e.Interval.Start,
			end:     e.Interval.End,
			entryID: e.ID,
		})
		sort.Slice(slots, func(i, j int) bool { return slots[i].start < slots[j].start })
		days[e.Interval.Day] = slots
	}
}

func entryKeys(e Entry) [3]resourceKey {
	return [3]resourceKey{
		{kind: ConflictTeacher, id: e.TeacherID},
		{kind: ConflictHall, id: e.HallID},
		{kind: ConflictClass, id: e.ClassID},
	}
}

// Conflicts returns every violation the candidate would introduce,
// excluding the candidate's own id.
func (ix *Index) Conflicts(candidate Entry) []Conflict {
	var conflicts []Conflict
	for _, key := range entryKeys(candidate) {
		conflicts = append(conflicts, ix.scan(key, candidate.Interval, candidate.ID)...)
	}
	return conflicts
}

// HallConflicts checks a single hall for the given interval; used by the exam
// planner to verify a hall isn't occupied by a timetabled class session.
func (ix *Index) HallConflicts(hallID uuid.UUID, iv TimeInterval) []Conflict {
	return ix.scan(resourceKey{kind: ConflictHall, id: hallID}, iv, uuid.Nil)
}

func (ix *Index) scan(key resourceKey, iv TimeInterval, selfID uuid.UUID) []Conflict {
	days, ok := ix.buckets[key]
	if !ok {
		return nil
	}
	slots := days[iv.Day]
	// first slot starting at or after the probe's end: nothing from here on overlaps
	hi := sort.Search(len(slots), func(i int) bool { return slots[i].start >= iv.End })
	var conflicts []Conflict
	for i := hi - 1; i >= 0; i-- {
		if slots[i].end <= iv.Start {
			break // disjoint slots sorted by start: no earlier slot can reach the probe
		}
		if slots[i].entryID == selfID {
			continue
		}
		conflicts = append(conflicts, Conflict{Kind: key.kind, WithEntryID: slots[i].entryID})
	}
	return conflicts
}
