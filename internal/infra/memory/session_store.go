package memory

import (
	"log"
	"sync"
	"time"

	"personality-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// A background reaper drops sessions idle longer than idleTTL so abandoned
// quizzes cannot accumulate forever.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	idleTTL  time.Duration
	clock    func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(idleTTL time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*domain.Session),
		idleTTL:  idleTTL,
		clock:    time.Now,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go s.reapLoop()
	}
	return s
}

// NewSessionStoreWithClock is test-only for deterministic timestamps.
// It does not start the reaper; tests drive reapExpired directly.
func NewSessionStoreWithClock(idleTTL time.Duration, clock func() time.Time) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		idleTTL:  idleTTL,
		clock:    clock,
		stop:     make(chan struct{}),
	}
}

func (s *SessionStore) Create(userID string, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; ok {
		return domain.ErrDuplicateSession
	}
	s.sessions[userID] = &domain.Session{
		UserID:       userID,
		FacetScores:  domain.FacetScores{},
		DomainScores: domain.DomainScores{},
		Questions:    questions,
		UpdatedAt:    s.clock(),
	}
	return nil
}

func (s *SessionStore) Get(userID string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	return copySession(session), true
}

// Update applies a tagged partial update. Missing sessions are a warned
// no-op, matching the store contract.
func (s *SessionStore) Update(userID string, update domain.SessionUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		log.Printf("session store: update for unknown userId %q ignored", userID)
		return false
	}
	applyUpdate(session, update)
	session.UpdatedAt = s.clock()
	return true
}

func (s *SessionStore) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		log.Printf("session store: delete for unknown userId %q ignored", userID)
		return false
	}
	delete(s.sessions, userID)
	return true
}

// Close stops the reaper goroutine.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) reapLoop() {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.reapExpired(s.clock())
		case <-s.stop:
			return
		}
	}
}

func (s *SessionStore) reapExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, session := range s.sessions {
		if now.Sub(session.UpdatedAt) > s.idleTTL {
			delete(s.sessions, userID)
			log.Printf("session store: reaped idle session for userId %q", userID)
		}
	}
}

func applyUpdate(session *domain.Session, update domain.SessionUpdate) {
	if update.AdvanceTo != nil {
		session.CurrentQuestionIndex = *update.AdvanceTo
	}
	if update.Scores != nil {
		session.FacetScores = update.Scores.Facets
		session.DomainScores = update.Scores.Domains
	}
}

// copySession hands callers their own score maps so stored state can only
// change through Update. Questions are immutable and shared.
func copySession(s *domain.Session) domain.Session {
	out := *s
	out.FacetScores = make(domain.FacetScores, len(s.FacetScores))
	for k, v := range s.FacetScores {
		out.FacetScores[k] = v
	}
	out.DomainScores = make(domain.DomainScores, len(s.DomainScores))
	for k, v := range s.DomainScores {
		out.DomainScores[k] = v
	}
	return out
}
