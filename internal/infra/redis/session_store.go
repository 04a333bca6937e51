package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"personality-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps each user's session as a JSON value under a per-user
// key. The key TTL doubles as the idle-session expiry: every touch refreshes
// it, and abandoned quizzes age out on their own.
//
// Same-user operations are already serialized by the service layer, so the
// read-modify-write in Update does not race with itself.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(userID string, questions []domain.Question) error {
	session := domain.Session{
		UserID:       userID,
		FacetScores:  domain.FacetScores{},
		DomainScores: domain.DomainScores{},
		Questions:    questions,
		UpdatedAt:    time.Now(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(context.Background(), s.key(userID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrDuplicateSession
	}
	return nil
}

func (s *SessionStore) Get(userID string) (domain.Session, bool) {
	data, err := s.client.Get(context.Background(), s.key(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("session store: redis get failed for userId %q: %v", userID, err)
		}
		return domain.Session{}, false
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("session store: corrupt session for userId %q: %v", userID, err)
		return domain.Session{}, false
	}
	return session, true
}

func (s *SessionStore) Update(userID string, update domain.SessionUpdate) bool {
	session, ok := s.Get(userID)
	if !ok {
		log.Printf("session store: update for unknown userId %q ignored", userID)
		return false
	}
	if update.AdvanceTo != nil {
		session.CurrentQuestionIndex = *update.AdvanceTo
	}
	if update.Scores != nil {
		session.FacetScores = update.Scores.Facets
		session.DomainScores = update.Scores.Domains
	}
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("session store: marshal failed for userId %q: %v", userID, err)
		return false
	}
	if err := s.client.Set(context.Background(), s.key(userID), data, s.ttl).Err(); err != nil {
		log.Printf("session store: redis set failed for userId %q: %v", userID, err)
		return false
	}
	return true
}

func (s *SessionStore) Delete(userID string) bool {
	removed, err := s.client.Del(context.Background(), s.key(userID)).Result()
	if err != nil {
		log.Printf("session store: redis del failed for userId %q: %v", userID, err)
		return false
	}
	if removed == 0 {
		log.Printf("session store: delete for unknown userId %q ignored", userID)
		return false
	}
	return true
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
