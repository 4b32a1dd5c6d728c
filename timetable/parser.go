package timetable

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoTokens is the only hard parser failure; anything else degrades to
// per-cell warnings.
var ErrNoTokens = errors.New("no tokens to recover a timetable from")

// ParseWarning records one cell the parser could not confidently turn into
// an entry so the user can fix it during review.
type ParseWarning struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("cell (%d,%d) %q: %s", w.Row, w.Col, w.Raw, w.Reason)
}

var (
	dayRe = regexp.MustCompile(
		`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thur|thu|fri|sat|sun)\b`)
	timeRangeRe = regexp.MustCompile(
		`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|–|—|~|to|until)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	roomRe   = regexp.MustCompile(`(?i)\b(?:room|rm\.?|hall|lab|bldg|building)\s+\S+\s*$`)
	parensRe = regexp.MustCompile(`\(([^)]+)\)\s*$`)
)

// Parse recovers a weekly schedule from positioned extraction tokens.
//
// The layout heuristic handles the two grids that show up in practice:
// day names as column headers with class cells below them, and day names
// down the left edge with class cells to the right. Inline days
// ("Mon 9-10 Math") always win over positional context. Cells that fail to
// yield a time range, a day, or a subject become warnings, as do entries
// that would overlap an already recovered one; the returned schedule only
// ever holds valid entries.
func Parse(tokens []Token) (*Schedule, []ParseWarning, error) {
	if len(tokens) == 0 {
		return nil, nil, ErrNoTokens
	}

	schedule := NewSchedule()
	warnings := []ParseWarning{}

	// first pass: find bare day labels and remember which column / row
	// they govern
	dayByCol := map[int]Weekday{}
	dayByRow := map[int]Weekday{}
	dayLabel := make([]bool, len(tokens))
	for i, tok := range tokens {
		day, rest, ok := splitDay(tok.Text)
		if !ok || timeRangeRe.MatchString(tok.Text) {
			continue
		}
		if cleanLabel(rest) != "" {
			continue
		}
		dayLabel[i] = true
		if _, taken := dayByCol[tok.Col]; !taken {
			dayByCol[tok.Col] = day
		}
		if _, taken := dayByRow[tok.Row]; !taken {
			dayByRow[tok.Row] = day
		}
	}

	var lastDay Weekday
	haveLastDay := false

	warn := func(tok Token, reason string) {
		warnings = append(warnings, ParseWarning{
			Row: tok.Row, Col: tok.Col, Raw: tok.Text, Reason: reason,
		})
	}

	for i, tok := range tokens {
		if dayLabel[i] {
			lastDay, _, _ = splitDay(tok.Text)
			haveLastDay = true
			continue
		}
		if cleanLabel(tok.Text) == "" {
			continue
		}

		text := tok.Text
		day, rest, hasDay := splitDay(text)
		if hasDay {
			text = rest
		} else if d, ok := dayByRow[tok.Row]; ok {
			day, hasDay = d, true
		} else if d, ok := dayByCol[tok.Col]; ok {
			day, hasDay = d, true
		} else if haveLastDay {
			day, hasDay = lastDay, true
		}

		start, end, rest, ok := extractTimeRange(text)
		if !ok {
			warn(tok, "no time range found")
			continue
		}
		if !hasDay {
			warn(tok, "no day of week for cell")
			continue
		}
		subject, location := splitLocation(rest)
		if subject == "" {
			warn(tok, "no subject label")
			continue
		}

		entry := ClassEntry{
			Day:      day,
			Start:    start,
			End:      end,
			Subject:  subject,
			Location: location,
		}
		if err := schedule.Add(entry); err != nil {
			warn(tok, err.Error())
		}
	}

	return schedule, warnings, nil
}

// splitDay finds the first day name in text and returns the day together
// with the text around it.
func splitDay(text string) (Weekday, string, bool) {
	m := dayRe.FindStringIndex(text)
	if m == nil {
		return 0, text, false
	}
	day, ok := ParseWeekday(text[m[0]:m[1]])
	if !ok {
		return 0, text, false
	}
	return day, text[:m[0]] + " " + text[m[1]:], true
}

// extractTimeRange pulls the first "9-10", "09:00-10:30" or
// "9:00 AM - 2:00 PM" style range out of text.
func extractTimeRange(text string) (ClockTime, ClockTime, string, bool) {
	var start, end ClockTime
	m := timeRangeRe.FindStringSubmatchIndex(text)
	if m == nil {
		return start, end, text, false
	}
	group := func(n int) string {
		lo, hi := m[2*n], m[2*n+1]
		if lo < 0 {
			return ""
		}
		return text[lo:hi]
	}

	startHour, _ := strconv.Atoi(group(1))
	endHour, _ := strconv.Atoi(group(4))
	startMinute, endMinute := 0, 0
	if g := group(2); g != "" {
		startMinute, _ = strconv.Atoi(g)
	}
	if g := group(5); g != "" {
		endMinute, _ = strconv.Atoi(g)
	}
	startMeridiem := strings.ToLower(group(3))
	endMeridiem := strings.ToLower(group(6))

	// one sided meridiems carry over: "1-2pm" means 13:00-14:00
	if startMeridiem == "" {
		startMeridiem = endMeridiem
	} else if endMeridiem == "" {
		endMeridiem = startMeridiem
	}
	var err error
	if startHour, err = applyMeridiem(startHour, startMeridiem); err != nil {
		return start, end, text, false
	}
	if endHour, err = applyMeridiem(endHour, endMeridiem); err != nil {
		return start, end, text, false
	}

	// a range like "11-1" without meridiems wraps past noon
	if startMeridiem == "" && endHour < startHour && endHour < 12 {
		endHour += 12
	}

	start = ClockTime{Hour: startHour, Minute: startMinute}
	end = ClockTime{Hour: endHour, Minute: endMinute}
	if !start.valid() || !end.valid() {
		return start, end, text, false
	}
	rest := text[:m[0]] + " " + text[m[1]:]
	return start, end, rest, true
}

// splitLocation separates a room hint from the subject label. Supported
// forms: "Math @ B204", "Math (B204)", "Math Room 204".
func splitLocation(text string) (string, string) {
	if at := strings.Index(text, "@"); at >= 0 {
		return cleanLabel(text[:at]), cleanLabel(text[at+1:])
	}
	if m := parensRe.FindStringSubmatchIndex(text); m != nil {
		return cleanLabel(text[:m[0]]), cleanLabel(text[m[2]:m[3]])
	}
	if m := roomRe.FindStringIndex(text); m != nil {
		return cleanLabel(text[:m[0]]), cleanLabel(text[m[0]:m[1]])
	}
	return cleanLabel(text), ""
}

// cleanLabel collapses whitespace and strips the separator junk left over
// after cutting days and times out of a cell.
func cleanLabel(s string) string {
	s = strings.Trim(s, " \t\r\n-–—~:,.|")
	return strings.Join(strings.Fields(s), " ")
}
