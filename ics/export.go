// Package ics turns a reviewed schedule into an iCalendar document with
// one weekly recurring VEVENT per class entry.
//
// Zoned exports reference IANA identifiers in TZID parameters without
// embedding VTIMEZONE definitions; clients resolve the names against
// their own zone databases.
package ics

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

// ErrEmptySchedule is returned instead of emitting an empty but valid
// calendar; the caller decides how to present it.
var ErrEmptySchedule = errors.New("schedule has no entries to export")

var ErrUnknownTimezone = errors.New("unknown timezone identifier")

const (
	productID           = "-//Timetable Sync Pro//EN"
	defaultCalendarName = "My University Timetable"
	eventDescription    = "Exported from Timetable Sync Pro. Repeats weekly."
	uidDomain           = "timetable-sync-pro"

	localDateTimeLayout = "20060102T150405"
)

// Options control export details that are not part of the schedule itself.
type Options struct {
	// Timezone is an IANA identifier for the DTSTART/DTEND values.
	// Empty means UTC.
	Timezone string
	// CalendarName overrides the X-WR-CALNAME header.
	CalendarName string
}

// Export serializes the schedule as an RFC 5545 document. The anchor date
// is the reference for the first occurrence of every entry: each event
// starts on the next occurrence of its weekday on or after anchor.
//
// Output is deterministic: the same schedule and anchor produce byte
// identical documents, including UIDs and DTSTAMP, so re-importing an
// unedited re-export updates events in place instead of duplicating them.
func Export(schedule *timetable.Schedule, anchor time.Time, opts Options) ([]byte, error) {
	entries := schedule.Entries()
	if len(entries) == 0 {
		return nil, ErrEmptySchedule
	}

	loc := time.UTC
	if opts.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, opts.Timezone)
		}
	}
	name := opts.CalendarName
	if name == "" {
		name = defaultCalendarName
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName(name)

	// derived from the anchor rather than the wall clock so repeated
	// exports stay byte identical
	stamp := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	for _, entry := range entries {
		first, err := firstOccurrence(entry, anchor, loc)
		if err != nil {
			return nil, err
		}
		end := time.Date(first.Year(), first.Month(), first.Day(),
			entry.End.Hour, entry.End.Minute, 0, 0, loc)

		event := cal.AddEvent(entryUID(entry))
		event.SetDtStampTime(stamp)
		if loc == time.UTC {
			event.SetStartAt(first)
			event.SetEndAt(end)
		} else {
			tzid := &ical.KeyValues{Key: "TZID", Value: []string{opts.Timezone}}
			event.SetProperty(ical.ComponentPropertyDtStart, first.Format(localDateTimeLayout), tzid)
			event.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localDateTimeLayout), tzid)
		}
		event.AddRrule(fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s", entry.Day.ICSCode()))
		event.SetSummary(entry.Subject)
		if entry.Location != "" {
			event.SetLocation(entry.Location)
		}
		event.SetDescription(eventDescription)
	}

	return []byte(cal.Serialize()), nil
}

// firstOccurrence resolves the entry against the anchor date: the start of
// the event on the next occurrence of entry.Day on or after anchor.
func firstOccurrence(entry timetable.ClassEntry, anchor time.Time, loc *time.Location) (time.Time, error) {
	seed := time.Date(anchor.Year(), anchor.Month(), anchor.Day(),
		entry.Start.Hour, entry.Start.Minute, 0, 0, loc)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekday(entry.Day)},
		Dtstart:   seed,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("building recurrence for %q: %w", entry, err)
	}
	first := rule.After(seed, true)
	if first.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence of %s on or after %s", entry.Day, anchor.Format(time.DateOnly))
	}
	return first, nil
}

func rruleWeekday(day timetable.Weekday) rrule.Weekday {
	switch day {
	case timetable.Monday:
		return rrule.MO
	case timetable.Tuesday:
		return rrule.TU
	case timetable.Wednesday:
		return rrule.WE
	case timetable.Thursday:
		return rrule.TH
	case timetable.Friday:
		return rrule.FR
	case timetable.Saturday:
		return rrule.SA
	}
	return rrule.SU
}

// entryUID derives a stable UID from the entry content so that exporting
// an unedited schedule twice yields identical UIDs.
func entryUID(entry timetable.ClassEntry) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%s",
		entry.Day.ICSCode(), entry.Start, entry.End, entry.Subject, entry.Location)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://"+uidDomain+"/"+key)).String() + "@" + uidDomain
}
