package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"personality-quiz-service/internal/app"
	"personality-quiz-service/internal/domain"
	"personality-quiz-service/internal/infra/memory"
)

func TestStartReturnsFirstQuestion(t *testing.T) {
	service, _ := newTestService(4, 2)

	step, err := service.Start(context.Background(), "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if step.Question.Text != "Q1" || step.QuestionNumber != 1 || step.TotalQuestions != 2 {
		t.Fatalf("unexpected first step: %+v", step)
	}
}

func TestStartValidation(t *testing.T) {
	service, _ := newTestService(4)

	if _, err := service.Start(context.Background(), ""); !errors.Is(err, domain.ErrMissingUserID) {
		t.Fatalf("expected missing user id, got %v", err)
	}

	if _, err := service.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Start(context.Background(), "u1"); !errors.Is(err, domain.ErrDuplicateSession) {
		t.Fatalf("expected duplicate session, got %v", err)
	}
}

func TestStartEmptyCatalog(t *testing.T) {
	store := memory.NewSessionStore(0)
	defer store.Close()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(map[string]domain.Catalog{
		"big-five-mini": {ID: "big-five-mini"},
	}), time.Minute)
	service := app.NewQuizService(store, catalogs, stubTranscriber{}, &stubScorer{}, app.Options{CatalogID: "big-five-mini"})

	if _, err := service.Start(context.Background(), "u1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}
}

func TestAnswerFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(4, 2)

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := service.SubmitAnswer(ctx, "u1", "answer1.mp3")
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if first.Completed {
		t.Fatalf("expected in-progress result")
	}
	if first.Score != 4 || first.FacetScores["anxiety"] != 4 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Next == nil || first.Next.Question.Text != "Q2" || first.Next.QuestionNumber != 2 {
		t.Fatalf("unexpected next step: %+v", first.Next)
	}

	second, err := service.SubmitAnswer(ctx, "u1", "answer2.mp3")
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if !second.Completed {
		t.Fatalf("expected completion")
	}
	if second.FacetScores["anxiety"] != 4 || second.FacetScores["trust"] != 2 {
		t.Fatalf("unexpected final facets: %+v", second.FacetScores)
	}
	if second.DomainScores["neuroticism"] != 4 || second.DomainScores["agreeableness"] != 2 {
		t.Fatalf("unexpected final domains: %+v", second.DomainScores)
	}

	// Session is deleted once the quiz completes.
	if _, err := service.SubmitAnswer(ctx, "u1", "answer3.mp3"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestRecordAnswerDirect(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(4)

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := service.RecordAnswer("u1", 5)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if result.Completed || result.FacetScores["anxiety"] != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := service.RecordAnswer("u1", 0); !errors.Is(err, domain.ErrInvalidScore) {
		t.Fatalf("expected invalid score, got %v", err)
	}
	session, _ := store.Get("u1")
	if session.CurrentQuestionIndex != 1 || session.FacetScores["anxiety"] != 5 {
		t.Fatalf("rejected score mutated session: %+v", session)
	}
}

func TestCursorAdvancesByOnePerAnswer(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	service := app.NewQuizService(store, testCatalogs(3), stubTranscriber{}, &stubScorer{score: 3}, app.Options{CatalogID: "big-five-mini"})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for want := 1; want <= 2; want++ {
		if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); err != nil {
			t.Fatalf("submit %d: %v", want, err)
		}
		session, ok := store.Get("u1")
		if !ok {
			t.Fatalf("session missing after answer %d", want)
		}
		if session.CurrentQuestionIndex != want {
			t.Fatalf("expected index %d, got %d", want, session.CurrentQuestionIndex)
		}
	}
	// last answer completes and removes the session, never exceeding N
	if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); err != nil {
		t.Fatalf("final submit: %v", err)
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed at completion")
	}
}

func TestOverlappingSameUserSubmissionsSerialize(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	service := app.NewQuizService(store, testCatalogs(3), slowTranscriber{delay: 50 * time.Millisecond}, &stubScorer{score: 3}, app.Options{CatalogID: "big-five-mini"})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Both submissions overlap while the first is inside the external call.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.SubmitAnswer(ctx, "u1", "a.mp3")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	session, ok := store.Get("u1")
	if !ok {
		t.Fatalf("session missing")
	}
	if session.CurrentQuestionIndex != 2 {
		t.Fatalf("lost update: cursor at %d, want 2", session.CurrentQuestionIndex)
	}
	if session.FacetScores["anxiety"] != 3 || session.FacetScores["trust"] != 3 {
		t.Fatalf("lost score fold: %+v", session.FacetScores)
	}
}

func TestDifferentUsersSubmitConcurrently(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	// The transcriber only returns once both calls are in flight, so this
	// test deadlocks into the call timeout if users share a lock.
	service := app.NewQuizService(store, testCatalogs(2), newRendezvousTranscriber(), &stubScorer{score: 3}, app.Options{
		CatalogID:   "big-five-mini",
		CallTimeout: 2 * time.Second,
	})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start u1: %v", err)
	}
	if _, err := service.Start(ctx, "u2"); err != nil {
		t.Fatalf("start u2: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(map[string]error, 2)
	var mu sync.Mutex
	for _, userID := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := service.SubmitAnswer(ctx, userID, "a.mp3")
			mu.Lock()
			errs[userID] = err
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	for userID, err := range errs {
		if err != nil {
			t.Fatalf("submissions did not overlap, %s failed: %v", userID, err)
		}
	}
}

func TestTranscriptionTimeoutSurfacesAndLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	service := app.NewQuizService(store, testCatalogs(2), blockingTranscriber{}, &stubScorer{score: 4}, app.Options{
		CatalogID:   "big-five-mini",
		CallTimeout: 20 * time.Millisecond,
	})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); !errors.Is(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error on timeout, got %v", err)
	}
	session, _ := store.Get("u1")
	if session.CurrentQuestionIndex != 0 || len(session.FacetScores) != 0 {
		t.Fatalf("session mutated on timed-out call: %+v", session)
	}
}

func TestScoringTimeoutSurfacesAndLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	service := app.NewQuizService(store, testCatalogs(2), stubTranscriber{}, blockingScorer{}, app.Options{
		CatalogID:   "big-five-mini",
		CallTimeout: 20 * time.Millisecond,
	})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error on timeout, got %v", err)
	}
	session, _ := store.Get("u1")
	if session.CurrentQuestionIndex != 0 || len(session.FacetScores) != 0 {
		t.Fatalf("session mutated on timed-out call: %+v", session)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	service, _ := newTestService(4)
	if _, err := service.SubmitAnswer(context.Background(), "ghost", "a.mp3"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestOutOfRangeScoreLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []int{0, 6} {
		service, store := newTestService(raw)
		if _, err := service.Start(ctx, "u1"); err != nil {
			t.Fatalf("start: %v", err)
		}

		if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); !errors.Is(err, domain.ErrInvalidScore) {
			t.Fatalf("raw=%d: expected invalid score, got %v", raw, err)
		}

		session, ok := store.Get("u1")
		if !ok {
			t.Fatalf("raw=%d: session vanished", raw)
		}
		if session.CurrentQuestionIndex != 0 || len(session.FacetScores) != 0 {
			t.Fatalf("raw=%d: session mutated: %+v", raw, session)
		}
	}
}

func TestTranscriptionFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore(0)
	defer store.Close()
	service := app.NewQuizService(store, testCatalogs(2), failingTranscriber{}, &stubScorer{score: 4}, app.Options{CatalogID: "big-five-mini"})

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); !errors.Is(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	session, _ := store.Get("u1")
	if session.CurrentQuestionIndex != 0 || len(session.FacetScores) != 0 {
		t.Fatalf("session mutated on failed call: %+v", session)
	}
}

func TestNextQuestionAdvancesAndCompletes(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(4, 2)

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := service.NextQuestion(ctx, "u1")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if res.Completed || res.Next.QuestionNumber != 2 {
		t.Fatalf("unexpected next result: %+v", res)
	}

	res, err = service.NextQuestion(ctx, "u1")
	if err != nil {
		t.Fatalf("next 2: %v", err)
	}
	if !res.Completed || res.Completion == nil {
		t.Fatalf("expected completion, got %+v", res)
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected completed session deleted")
	}
}

func TestNextQuestionUnknownUser(t *testing.T) {
	service, _ := newTestService(4)
	if _, err := service.NextQuestion(context.Background(), "ghost"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestWatchProgressReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(4, 2)

	if _, err := service.Start(ctx, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, err := service.WatchProgress("u1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Answered != 0 || initial.TotalQuestions != 2 {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}

	if _, err := service.SubmitAnswer(ctx, "u1", "a.mp3"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	update := <-ch
	if update.Answered != 1 || update.FacetScores["anxiety"] != 4 {
		t.Fatalf("unexpected update: %+v", update)
	}
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return "I often feel uneasy before big events.", nil
}

type slowTranscriber struct {
	delay time.Duration
}

func (s slowTranscriber) Transcribe(ctx context.Context, _ string) (string, error) {
	select {
	case <-time.After(s.delay):
		return "I take my time to answer.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type blockingTranscriber struct{}

func (blockingTranscriber) Transcribe(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type blockingScorer struct{}

func (blockingScorer) ScoreFacet(ctx context.Context, _, _ string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// rendezvousTranscriber holds every call until a second call is in flight.
type rendezvousTranscriber struct {
	arrivals chan chan struct{}
}

func newRendezvousTranscriber() *rendezvousTranscriber {
	r := &rendezvousTranscriber{arrivals: make(chan chan struct{})}
	go func() {
		for {
			first, ok := <-r.arrivals
			if !ok {
				return
			}
			second, ok := <-r.arrivals
			if !ok {
				close(first)
				return
			}
			close(first)
			close(second)
		}
	}()
	return r
}

func (r *rendezvousTranscriber) Transcribe(ctx context.Context, _ string) (string, error) {
	release := make(chan struct{})
	select {
	case r.arrivals <- release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case <-release:
		return "both answers arrived together", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return "", errors.New("upstream unavailable")
}

type stubScorer struct {
	score int
	// scores, when set, is consumed one value per call
	scores []int
}

func (s *stubScorer) ScoreFacet(_ context.Context, _, _ string) (int, error) {
	if len(s.scores) > 0 {
		next := s.scores[0]
		s.scores = s.scores[1:]
		return next, nil
	}
	return s.score, nil
}

func testCatalogs(n int) *memory.CatalogRepository {
	questions := []domain.Question{
		{Text: "Q1", Facet: "anxiety"},
		{Text: "Q2", Facet: "trust"},
		{Text: "Q3", Facet: "orderliness"},
	}
	return memory.NewCatalogRepository(memory.NewStaticCatalogLoader(map[string]domain.Catalog{
		"big-five-mini": {ID: "big-five-mini", Questions: questions[:n]},
	}), time.Minute)
}

// newTestService wires a memory-backed service whose scorer returns the given
// scores in order (last value repeats).
func newTestService(first int, rest ...int) (*app.QuizService, *memory.SessionStore) {
	store := memory.NewSessionStore(0)
	scorer := &stubScorer{score: first}
	if len(rest) > 0 {
		scorer.scores = append([]int{first}, rest[:len(rest)-1]...)
		scorer.score = rest[len(rest)-1]
	}
	service := app.NewQuizService(store, testCatalogs(2), stubTranscriber{}, scorer, app.Options{CatalogID: "big-five-mini"})
	return service, store
}
