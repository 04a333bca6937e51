package memory

import (
	"errors"
	"testing"
	"time"

	"personality-quiz-service/internal/domain"
)

var testQuestions = []domain.Question{
	{Text: "Q1", Facet: "anxiety"},
	{Text: "Q2", Facet: "trust"},
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(0)
	defer store.Close()

	if err := store.Create("u1", testQuestions); err != nil {
		t.Fatalf("create: %v", err)
	}
	session, ok := store.Get("u1")
	if !ok {
		t.Fatalf("expected session present")
	}
	if session.CurrentQuestionIndex != 0 || len(session.Questions) != 2 {
		t.Fatalf("unexpected session: %+v", session)
	}

	if !store.Delete("u1") {
		t.Fatalf("expected delete to succeed")
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreDuplicateCreate(t *testing.T) {
	store := NewSessionStore(0)
	defer store.Close()

	if err := store.Create("u1", testQuestions); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create("u1", testQuestions); !errors.Is(err, domain.ErrDuplicateSession) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSessionStoreTaggedUpdate(t *testing.T) {
	store := NewSessionStore(0)
	defer store.Close()
	_ = store.Create("u1", testQuestions)

	next := 1
	store.Update("u1", domain.SessionUpdate{AdvanceTo: &next})

	session, _ := store.Get("u1")
	if session.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", session.CurrentQuestionIndex)
	}
	if len(session.FacetScores) != 0 {
		t.Fatalf("advance clobbered scores: %+v", session.FacetScores)
	}

	store.Update("u1", domain.SessionUpdate{Scores: &domain.ScoreSnapshot{
		Facets:  domain.FacetScores{"anxiety": 4},
		Domains: domain.DomainScores{"neuroticism": 4},
	}})
	session, _ = store.Get("u1")
	if session.CurrentQuestionIndex != 1 || session.FacetScores["anxiety"] != 4 {
		t.Fatalf("score update clobbered index or scores: %+v", session)
	}
}

func TestUpdateAndDeleteMissingAreNoOps(t *testing.T) {
	store := NewSessionStore(0)
	defer store.Close()

	next := 3
	if store.Update("ghost", domain.SessionUpdate{AdvanceTo: &next}) {
		t.Fatalf("expected update no-op")
	}
	if store.Delete("ghost") {
		t.Fatalf("expected delete no-op")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewSessionStore(0)
	defer store.Close()
	_ = store.Create("u1", testQuestions)

	session, _ := store.Get("u1")
	session.FacetScores["anxiety"] = 99

	fresh, _ := store.Get("u1")
	if fresh.FacetScores["anxiety"] != 0 {
		t.Fatalf("caller mutation leaked into store")
	}
}

func TestReapExpiredDropsIdleSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewSessionStoreWithClock(time.Minute, clock)

	_ = store.Create("u1", testQuestions)

	now = now.Add(30 * time.Second)
	store.reapExpired(now)
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("fresh session reaped too early")
	}

	now = now.Add(2 * time.Minute)
	store.reapExpired(now)
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected idle session reaped")
	}
}
