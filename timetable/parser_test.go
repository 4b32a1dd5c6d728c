package timetable_test

import (
	"errors"
	"testing"

	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

func tok(row int, col int, text string) timetable.Token {
	return timetable.Token{Text: text, Row: row, Col: col}
}

func requireEntry(
	t *testing.T,
	entries []timetable.ClassEntry,
	day timetable.Weekday,
	start string,
	end string,
	subject string,
	location string,
) {
	t.Helper()
	for _, entry := range entries {
		if entry.Day == day && entry.Start.String() == start && entry.End.String() == end &&
			entry.Subject == subject && entry.Location == location {
			return
		}
	}
	t.Errorf("No entry %s %s-%s %q @ %q in %v", day, start, end, subject, location, entries)
}

func TestParseNoTokens(t *testing.T) {
	if _, _, err := timetable.Parse(nil); !errors.Is(err, timetable.ErrNoTokens) {
		t.Errorf("Expected the no tokens error got %v", err)
	}
}

func TestParseInlineDays(t *testing.T) {
	schedule, warnings, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "Mon 9-10 Math"),
		tok(0, 1, "Tue 10:30-12:00 Physics @ Lab 2"),
		tok(1, 0, "garbled@@"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	entries := schedule.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries got %d: %v", len(entries), entries)
	}
	requireEntry(t, entries, timetable.Monday, "09:00", "10:00", "Math", "")
	requireEntry(t, entries, timetable.Tuesday, "10:30", "12:00", "Physics", "Lab 2")

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning got %d: %v", len(warnings), warnings)
	}
	if warnings[0].Raw != "garbled@@" {
		t.Errorf("Expected the warning to carry the raw cell got %q", warnings[0].Raw)
	}
	if warnings[0].Row != 1 || warnings[0].Col != 0 {
		t.Errorf("Expected the warning at cell (1,0) got (%d,%d)", warnings[0].Row, warnings[0].Col)
	}
}

func TestParseColumnHeaderGrid(t *testing.T) {
	// day names across the top, class cells underneath in the same column
	schedule, warnings, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "Monday"),
		tok(0, 1, "Tuesday"),
		tok(0, 2, "Wednesday"),
		tok(1, 0, "9-10 Math"),
		tok(1, 1, "9-10 Physics (B204)"),
		tok(2, 2, "2pm-4pm Chemistry"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Expected no warnings got %v", warnings)
	}

	entries := schedule.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries got %d: %v", len(entries), entries)
	}
	requireEntry(t, entries, timetable.Monday, "09:00", "10:00", "Math", "")
	requireEntry(t, entries, timetable.Tuesday, "09:00", "10:00", "Physics", "B204")
	requireEntry(t, entries, timetable.Wednesday, "14:00", "16:00", "Chemistry", "")
}

func TestParseRowLabelGrid(t *testing.T) {
	// day names down the left edge, cells to the right in the same row
	schedule, _, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "Mon"),
		tok(0, 1, "9-10 Math"),
		tok(0, 2, "11-1 History Room 12"),
		tok(1, 0, "Fri"),
		tok(1, 1, "10:00-11:30 Art"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	entries := schedule.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries got %d: %v", len(entries), entries)
	}
	requireEntry(t, entries, timetable.Monday, "09:00", "10:00", "Math", "")
	// "11-1" without meridiems wraps past noon
	requireEntry(t, entries, timetable.Monday, "11:00", "13:00", "History", "Room 12")
	requireEntry(t, entries, timetable.Friday, "10:00", "11:30", "Art", "")
}

func TestParseMeridiemCarryOver(t *testing.T) {
	schedule, _, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "Thu 1-2pm Seminar"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	requireEntry(t, schedule.Entries(), timetable.Thursday, "13:00", "14:00", "Seminar", "")
}

func TestParseWarnsWithoutDayContext(t *testing.T) {
	schedule, warnings, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "9-10 Math"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if schedule.Len() != 0 {
		t.Errorf("A cell with no day context should not become an entry, got %v", schedule.Entries())
	}
	if len(warnings) != 1 || warnings[0].Reason != "no day of week for cell" {
		t.Errorf("Expected one missing day warning got %v", warnings)
	}
}

func TestParseDemotesOverlapsToWarnings(t *testing.T) {
	schedule, warnings, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "Mon 9-11 Math"),
		tok(0, 1, "Mon 10-12 Physics"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if schedule.Len() != 1 {
		t.Fatalf("Expected the overlapping cell to be dropped, got %v", schedule.Entries())
	}
	requireEntry(t, schedule.Entries(), timetable.Monday, "09:00", "11:00", "Math", "")
	if len(warnings) != 1 {
		t.Errorf("Expected the overlap as a warning got %v", warnings)
	}
}

func TestParseSkipsNoiseCells(t *testing.T) {
	schedule, warnings, err := timetable.Parse([]timetable.Token{
		tok(0, 0, "  --  "),
		tok(0, 1, "Mon 9-10 Math"),
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if schedule.Len() != 1 || len(warnings) != 0 {
		t.Errorf("Punctuation only cells should be ignored silently, got %d entries and %v",
			schedule.Len(), warnings)
	}
}
