// Package session gives every browser its own in-progress schedule.
// Ownership is explicit: one session holds exactly one schedule and no
// request can reach another session's data, so the schedule itself needs
// no locking.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

const CookieName = "timetable_session"

const DefaultTokenDuration = 2 * time.Hour

// Session is the state of one upload/review/export cycle.
type Session struct {
	Schedule *timetable.Schedule
	Warnings []timetable.ParseWarning
}

type storedSession struct {
	session    *Session
	expireTime time.Time
}

// sessions are in memory as nothing outlives the review cycle and the
// expected number of concurrent editors is tiny
type Store struct {
	tokenToSession map[string]*storedSession
	tokenDuration  time.Duration
	mu             sync.RWMutex
}

func NewStore(tokenDuration time.Duration) *Store {
	if tokenDuration <= 0 {
		tokenDuration = DefaultTokenDuration
	}
	return &Store{
		tokenToSession: map[string]*storedSession{},
		tokenDuration:  tokenDuration,
	}
}

// Get returns the live session for token, sliding its expiry.
func (s *Store) Get(token string) (*Session, bool) {
	s.refreshTokens()
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokenToSession[token]
	if !ok {
		return nil, false
	}
	stored.expireTime = time.Now().Add(s.tokenDuration)
	return stored.session, true
}

// Create makes a fresh session with an empty schedule and returns its token.
func (s *Store) Create() (string, *Session) {
	token := uuid.New().String()
	session := &Session{
		Schedule: timetable.NewSchedule(),
		Warnings: []timetable.ParseWarning{},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenToSession[token] = &storedSession{
		session:    session,
		expireTime: time.Now().Add(s.tokenDuration),
	}
	return token, session
}

// could also use goroutines but this should be fine
// bc of the low number of expected concurrent sessions
func (s *Store) refreshTokens() {
	currentTime := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, stored := range s.tokenToSession {
		if currentTime.After(stored.expireTime) {
			delete(s.tokenToSession, token)
		}
	}
}
