package app

import (
	"context"
	"fmt"
	"time"

	"personality-quiz-service/internal/domain"
	"personality-quiz-service/internal/scoring"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Create(userID string, questions []domain.Question) error
	Get(userID string) (domain.Session, bool)
	Update(userID string, update domain.SessionUpdate) bool
	Delete(userID string) bool
}

// CatalogRepository loads the question catalog (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) (domain.Catalog, error)
}

// Transcriber converts a recorded answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ScoreProvider rates a transcript against a personality facet on a 1-5 scale.
type ScoreProvider interface {
	ScoreFacet(ctx context.Context, transcript, facet string) (int, error)
}

// QuizService contains the quiz lifecycle use cases: start a session, walk
// the question cursor, fold scored answers into the running totals.
type QuizService struct {
	sessions    SessionRepository
	catalogs    CatalogRepository
	catalogID   string
	transcriber Transcriber
	scorer      ScoreProvider
	aggregator  *scoring.Aggregator
	callTimeout time.Duration

	locks    keyedMutex
	watchers *progressHub
}

type Options struct {
	// CatalogID selects which catalog sessions are seeded from.
	CatalogID string
	// CallTimeout bounds each external transcription/scoring call.
	CallTimeout time.Duration
	// FacetDomains overrides the default Big Five facet->domain table.
	FacetDomains map[string]string
}

func NewQuizService(store SessionRepository, catalogs CatalogRepository, transcriber Transcriber, scorer ScoreProvider, opts Options) *QuizService {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &QuizService{
		sessions:    store,
		catalogs:    catalogs,
		catalogID:   opts.CatalogID,
		transcriber: transcriber,
		scorer:      scorer,
		aggregator:  scoring.NewAggregator(opts.FacetDomains),
		callTimeout: opts.CallTimeout,
		watchers:    newProgressHub(),
	}
}

// Start creates a session seeded with the catalog and returns the first question.
func (s *QuizService) Start(ctx context.Context, userID string) (domain.QuestionStep, error) {
	if userID == "" {
		return domain.QuestionStep{}, domain.ErrMissingUserID
	}

	catalog, err := s.catalogs.GetCatalog(ctx, s.catalogID)
	if err != nil {
		return domain.QuestionStep{}, fmt.Errorf("load catalog: %w", err)
	}
	if len(catalog.Questions) == 0 {
		return domain.QuestionStep{}, domain.ErrNoQuestions
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.sessions.Create(userID, catalog.Questions); err != nil {
		return domain.QuestionStep{}, err
	}
	return domain.QuestionStep{
		Question:       catalog.Questions[0],
		QuestionNumber: 1,
		TotalQuestions: len(catalog.Questions),
	}, nil
}

// NextQuestion advances the cursor without scoring and returns the question
// there, or the completion payload once the cursor passes the last question.
// A completed session is deleted so abandoned-then-polled quizzes do not leak.
func (s *QuizService) NextQuestion(ctx context.Context, userID string) (domain.NextResult, error) {
	if userID == "" {
		return domain.NextResult{}, domain.ErrMissingUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.NextResult{}, domain.ErrSessionNotFound
	}

	next := session.CurrentQuestionIndex + 1
	if next >= len(session.Questions) {
		completion := s.completionOf(session)
		s.sessions.Delete(userID)
		session.CurrentQuestionIndex = next
		s.watchers.publish(userID, progressOf(session, true))
		return domain.NextResult{Completed: true, Completion: &completion}, nil
	}

	s.sessions.Update(userID, domain.SessionUpdate{AdvanceTo: &next})
	return domain.NextResult{
		Completed: false,
		Next: &domain.QuestionStep{
			Question:       session.Questions[next],
			QuestionNumber: next + 1,
			TotalQuestions: len(session.Questions),
		},
	}, nil
}

// SubmitAnswer transcribes the recorded answer, scores it against the current
// question's facet and commits the result. Session state is untouched until
// both external calls have succeeded and the score has been validated; the
// score fold and cursor advance then land in a single update.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID, audioPath string) (domain.AnswerResult, error) {
	if userID == "" {
		return domain.AnswerResult{}, domain.ErrMissingUserID
	}

	// Held across the external calls: overlapping submissions for one user
	// serialize instead of racing on the shared session.
	unlock := s.locks.lock(userID)
	defer unlock()

	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if session.Completed() {
		return domain.AnswerResult{}, fmt.Errorf("question cursor out of range: %w", domain.ErrSessionNotFound)
	}
	current := session.Questions[session.CurrentQuestionIndex]
	if current.Facet == "" {
		return domain.AnswerResult{}, domain.ErrMissingFacet
	}

	transcript, err := s.transcribe(ctx, audioPath)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	rawScore, err := s.score(ctx, transcript, current.Facet)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	return s.recordAnswer(userID, session, current.Facet, rawScore, transcript)
}

// RecordAnswer folds an already-validated raw score into the session. Exported
// for callers that obtain scores out of band (and for the scoring path above).
func (s *QuizService) RecordAnswer(userID string, rawScore int) (domain.AnswerResult, error) {
	if userID == "" {
		return domain.AnswerResult{}, domain.ErrMissingUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if session.Completed() {
		return domain.AnswerResult{}, fmt.Errorf("question cursor out of range: %w", domain.ErrSessionNotFound)
	}
	current := session.Questions[session.CurrentQuestionIndex]
	if current.Facet == "" {
		return domain.AnswerResult{}, domain.ErrMissingFacet
	}
	return s.recordAnswer(userID, session, current.Facet, rawScore, "")
}

// WatchProgress returns a channel receiving a progress snapshot after each
// recorded answer. The caller must invoke cancel to avoid leaks.
func (s *QuizService) WatchProgress(userID string) (<-chan domain.Progress, func(), error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := s.watchers.subscribe(userID)
	ch <- progressOf(session, false)
	return ch, cancel, nil
}

func (s *QuizService) recordAnswer(userID string, session domain.Session, facet string, rawScore int, transcript string) (domain.AnswerResult, error) {
	if rawScore < 1 || rawScore > 5 {
		return domain.AnswerResult{}, fmt.Errorf("%w: got %d", domain.ErrInvalidScore, rawScore)
	}

	facets := scoring.AddFacetScore(session.FacetScores, facet, rawScore)
	domains := s.aggregator.ComputeDomainScores(facets)
	next := session.CurrentQuestionIndex + 1

	session.FacetScores = facets
	session.DomainScores = domains
	session.CurrentQuestionIndex = next

	if next >= len(session.Questions) {
		s.sessions.Delete(userID)
		s.watchers.publish(userID, progressOf(session, true))
		return domain.AnswerResult{
			Completed:    true,
			Score:        rawScore,
			Transcript:   transcript,
			FacetScores:  facets,
			DomainScores: domains,
		}, nil
	}

	// One tagged update carries both the fold and the advance, so the
	// commit is atomic from the caller's point of view.
	s.sessions.Update(userID, domain.SessionUpdate{
		AdvanceTo: &next,
		Scores:    &domain.ScoreSnapshot{Facets: facets, Domains: domains},
	})
	s.watchers.publish(userID, progressOf(session, false))

	return domain.AnswerResult{
		Completed:    false,
		Score:        rawScore,
		Transcript:   transcript,
		FacetScores:  facets,
		DomainScores: domains,
		Next: &domain.QuestionStep{
			Question:       session.Questions[next],
			QuestionNumber: next + 1,
			TotalQuestions: len(session.Questions),
		},
	}, nil
}

func (s *QuizService) transcribe(ctx context.Context, audioPath string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	transcript, err := s.transcriber.Transcribe(callCtx, audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscription, err)
	}
	return transcript, nil
}

func (s *QuizService) score(ctx context.Context, transcript, facet string) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.scorer.ScoreFacet(callCtx, transcript, facet)
}

func (s *QuizService) completionOf(session domain.Session) domain.Completion {
	return domain.Completion{
		FacetScores:  session.FacetScores,
		DomainScores: session.DomainScores,
		TotalScore:   scoring.TotalScore(session.FacetScores),
	}
}

func progressOf(session domain.Session, completed bool) domain.Progress {
	return domain.Progress{
		UserID:         session.UserID,
		Answered:       session.CurrentQuestionIndex,
		TotalQuestions: len(session.Questions),
		FacetScores:    session.FacetScores,
		DomainScores:   session.DomainScores,
		Completed:      completed,
	}
}
