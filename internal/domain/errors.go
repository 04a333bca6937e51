package domain

import "errors"

var (
	// ErrMissingUserID is returned when a request carries no user id.
	ErrMissingUserID = errors.New("userId is required")
	// ErrDuplicateSession is returned when a session already exists for the user.
	ErrDuplicateSession = errors.New("session already exists for this user")
	// ErrSessionNotFound is returned when no session exists for the user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoQuestions indicates the catalog is empty and no session can start.
	ErrNoQuestions = errors.New("no questions available")
	// ErrCatalogNotFound indicates the question catalog could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrMissingFacet indicates the current question carries no facet tag.
	ErrMissingFacet = errors.New("question has no facet tag")
	// ErrMissingAudio is returned when an answer submission has no audio file.
	ErrMissingAudio = errors.New("no audio file uploaded")
	// ErrUnsupportedAudio is returned for uploads outside the audio allowlist.
	ErrUnsupportedAudio = errors.New("unsupported audio format")
	// ErrTranscription wraps failures from the speech-to-text provider.
	ErrTranscription = errors.New("transcription failed")
	// ErrInvalidScore is returned when a facet score falls outside [1,5].
	ErrInvalidScore = errors.New("score must be an integer between 1 and 5")
)
