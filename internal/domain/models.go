package domain

import "time"

// Question is a single prompt in the catalog, tagged with the personality
// facet it measures. Questions are immutable once loaded.
type Question struct {
	Text  string `json:"text"`
	Facet string `json:"facet"`
}

// Catalog is the ordered question set served to every session.
type Catalog struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// FacetScores maps a facet name to its cumulative score within a session.
type FacetScores map[string]int

// DomainScores maps a personality domain to its aggregate, derived from
// facet scores via a static facet->domain table.
type DomainScores map[string]int

// Session tracks one user's progress through the quiz.
type Session struct {
	UserID               string       `json:"userId"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	FacetScores          FacetScores  `json:"facetScores"`
	DomainScores         DomainScores `json:"domainScores"`
	Questions            []Question   `json:"questions"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Completed reports whether the cursor has moved past the last question.
func (s Session) Completed() bool {
	return s.CurrentQuestionIndex >= len(s.Questions)
}

// ScoreSnapshot carries a full replacement of both score maps.
type ScoreSnapshot struct {
	Facets  FacetScores
	Domains DomainScores
}

// SessionUpdate is a tagged partial update. Only the fields that are set
// are applied; an untouched field is left exactly as stored.
type SessionUpdate struct {
	AdvanceTo *int
	Scores    *ScoreSnapshot
}

// QuestionStep is the client-facing view of the current position.
// QuestionNumber is 1-based.
type QuestionStep struct {
	Question       Question `json:"question"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
}

// Completion carries the final aggregates once every question is answered.
type Completion struct {
	FacetScores  FacetScores  `json:"facetScores"`
	DomainScores DomainScores `json:"domainScores"`
	TotalScore   int          `json:"totalScore"`
}

// NextResult is the outcome of asking for the next question: either the
// next step or the completion payload.
type NextResult struct {
	Completed  bool          `json:"completed"`
	Next       *QuestionStep `json:"next,omitempty"`
	Completion *Completion   `json:"completion,omitempty"`
}

// AnswerResult is the outcome of a scored answer submission.
type AnswerResult struct {
	Completed    bool          `json:"completed"`
	Score        int           `json:"score,omitempty"`
	Transcript   string        `json:"transcript,omitempty"`
	FacetScores  FacetScores   `json:"facetScores"`
	DomainScores DomainScores  `json:"domainScores"`
	Next         *QuestionStep `json:"next,omitempty"`
}

// Progress is the snapshot streamed to progress watchers after each answer.
type Progress struct {
	UserID         string       `json:"userId"`
	Answered       int          `json:"answered"`
	TotalQuestions int          `json:"totalQuestions"`
	FacetScores    FacetScores  `json:"facetScores"`
	DomainScores   DomainScores `json:"domainScores"`
	Completed      bool         `json:"completed"`
}
