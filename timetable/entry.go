package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Weekday is a day of the school week, Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var weekdayICSCodes = [7]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ICSCode returns the two letter BYDAY code used in recurrence rules.
func (d Weekday) ICSCode() string {
	return weekdayICSCodes[d]
}

// ParseWeekday accepts full day names and the common three letter
// abbreviations in any casing e.i. "Monday", "mon", "MON"
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		lower := strings.ToLower(name)
		if s == lower || s == lower[:3] {
			return Weekday(i), true
		}
	}
	// a couple of longer abbreviations that show up in printed timetables
	switch s {
	case "tues":
		return Tuesday, true
	case "thur", "thurs":
		return Thursday, true
	}
	return 0, false
}

// ClockTime is a time of day with minute precision. Entries never carry a
// concrete date until export resolves them against an anchor.
type ClockTime struct {
	Hour   int
	Minute int
}

func (t ClockTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t ClockTime) Before(other ClockTime) bool {
	return t.Minutes() < other.Minutes()
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t ClockTime) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// ParseClock parses "HH:MM", "H:MM" and "H:MM AM/PM" forms.
func ParseClock(s string) (ClockTime, error) {
	var out ClockTime
	s = strings.TrimSpace(s)
	meridiem := ""
	lower := strings.ToLower(s)
	for _, suffix := range []string{"am", "pm", "a.m.", "p.m."} {
		if strings.HasSuffix(lower, suffix) {
			meridiem = string(suffix[0]) + "m"
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return out, fmt.Errorf("invalid hour %q: %w", s, err)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(strings.TrimSpace(minutePart))
		if err != nil {
			return out, fmt.Errorf("invalid minute %q: %w", s, err)
		}
	}
	hour, err = applyMeridiem(hour, meridiem)
	if err != nil {
		return out, err
	}
	out = ClockTime{Hour: hour, Minute: minute}
	if !out.valid() {
		return out, fmt.Errorf("time of day out of range: %q", s)
	}
	return out, nil
}

func applyMeridiem(hour int, meridiem string) (int, error) {
	switch meridiem {
	case "":
		return hour, nil
	case "am":
		if hour == 12 {
			return 0, nil
		}
		return hour, nil
	case "pm":
		if hour == 12 {
			return 12, nil
		}
		return hour + 12, nil
	}
	return 0, fmt.Errorf("unknown meridiem %q", meridiem)
}

// ClassEntry is one scheduled class occurrence in a weekly timetable.
type ClassEntry struct {
	Day      Weekday
	Start    ClockTime
	End      ClockTime
	Subject  string
	Location string // optional
}

func (e ClassEntry) String() string {
	s := fmt.Sprintf("%s %s-%s %s", e.Day, e.Start, e.End, e.Subject)
	if e.Location != "" {
		s += " @ " + e.Location
	}
	return s
}

// Validate checks the invariants a single entry must hold on its own;
// the cross entry no-overlap invariant lives on Schedule.
func (e ClassEntry) Validate() error {
	if e.Day < Monday || e.Day > Sunday {
		return fmt.Errorf("%w: day %d", ErrInvalidEntry, int(e.Day))
	}
	if !e.Start.valid() || !e.End.valid() {
		return fmt.Errorf("%w: times must be within the day", ErrInvalidEntry)
	}
	if !e.Start.Before(e.End) {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidEntry, e.End, e.Start)
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: subject must not be empty", ErrInvalidEntry)
	}
	return nil
}

// overlaps reports whether two entries on the same day share any part of
// their [start, end) intervals
func (e ClassEntry) overlaps(other ClassEntry) bool {
	if e.Day != other.Day {
		return false
	}
	return e.Start.Minutes() < other.End.Minutes() && other.Start.Minutes() < e.End.Minutes()
}

// Token is one positioned text fragment produced by a text extraction
// service, ordered in reading order of the source image.
type Token struct {
	Text string `json:"text"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

var (
	ErrInvalidEntry = errors.New("invalid class entry")

	// mutations with an index outside the schedule leave it unchanged
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

// OverlapError rejects a mutation that would make two entries on the same
// day share time. The schedule is left unchanged.
type OverlapError struct {
	Entry         ClassEntry
	Conflict      ClassEntry
	ConflictIndex int
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("entry %q overlaps existing entry %d %q",
		e.Entry, e.ConflictIndex, e.Conflict)
}
