package domain

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment content could not be loaded.
	// Distinct from an empty assessment, which is ErrInvalidAssessment.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrInvalidAssessment indicates malformed question data (configuration error).
	ErrInvalidAssessment = errors.New("invalid assessment")
	// ErrQuestionOutOfRange is returned for navigation to a nonexistent index.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrEmptyAnswer is returned when a submission carries no selection.
	ErrEmptyAnswer = errors.New("submitted answer is empty")
	// ErrIncomplete rejects a manual submit while unanswered questions remain.
	ErrIncomplete = errors.New("assessment has unanswered questions")
	// ErrNotActive rejects quiz actions outside the active phase.
	ErrNotActive = errors.New("session is not active")
	// ErrNoResults rejects review/retake actions before any completed attempt.
	ErrNoResults = errors.New("no completed attempt")
)
