package timetable

import (
	"fmt"
	"slices"
)

// Schedule is the in-memory weekly timetable a user reviews before export.
// It keeps list semantics: entries stay in insertion order and are addressed
// by index. One schedule belongs to exactly one session so it does no
// locking of its own.
type Schedule struct {
	entries []ClassEntry
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Entries returns the entries in insertion order. The slice is a copy so
// callers cannot bypass validation.
func (s *Schedule) Entries() []ClassEntry {
	return slices.Clone(s.entries)
}

func (s *Schedule) Len() int {
	return len(s.entries)
}

// Add appends entry after validating it against the schedule. On any error
// the schedule is unchanged.
func (s *Schedule) Add(entry ClassEntry) error {
	if err := s.check(entry, -1); err != nil {
		return err
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Update replaces the entry at index. The replaced entry does not count
// when looking for conflicts so shrinking or moving an entry in place works.
func (s *Schedule) Update(index int, entry ClassEntry) error {
	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("%w: %d with %d entries", ErrIndexOutOfRange, index, len(s.entries))
	}
	if err := s.check(entry, index); err != nil {
		return err
	}
	s.entries[index] = entry
	return nil
}

func (s *Schedule) Remove(index int) error {
	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("%w: %d with %d entries", ErrIndexOutOfRange, index, len(s.entries))
	}
	s.entries = slices.Delete(s.entries, index, index+1)
	return nil
}

// check runs entry validation then the no-overlap invariant, skipping the
// entry at skipIndex (pass -1 to compare against everything).
func (s *Schedule) check(entry ClassEntry, skipIndex int) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	for i, existing := range s.entries {
		if i == skipIndex {
			continue
		}
		if entry.overlaps(existing) {
			return &OverlapError{Entry: entry, Conflict: existing, ConflictIndex: i}
		}
	}
	return nil
}
