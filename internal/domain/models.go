package domain

import (
	"fmt"
	"time"
)

// Phase is the lifecycle state of a session.
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhaseActive  Phase = "active"
	PhaseResults Phase = "results"
	PhaseReview  Phase = "review"
)

// Question is one item of an assessment, identified by its ordinal position.
type Question struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Key         Answer   `json:"key"`
	Explanation string   `json:"explanation,omitempty"`
	Topic       string   `json:"topic,omitempty"`
}

// Assessment is a named, ordered sequence of questions plus grading parameters.
// The same assessment identity may exist in multiple content variants.
type Assessment struct {
	ID               string     `json:"id"`
	Variant          string     `json:"variant"`
	Title            string     `json:"title"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	PassPercent      float64    `json:"passPercent"`
}

// TimeLimit returns the assessment time limit as a duration.
func (a Assessment) TimeLimit() time.Duration {
	return time.Duration(a.TimeLimitMinutes) * time.Minute
}

// Validate checks the structural invariants of the assessment content:
// at least one question, every key index inside the option list, exactly one
// correct index for single-select and at least one for multi-select.
func (a Assessment) Validate() error {
	if len(a.Questions) == 0 {
		return fmt.Errorf("%w: assessment %q has no questions", ErrInvalidAssessment, a.ID)
	}
	for i, q := range a.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidAssessment, i, len(q.Options))
		}
		switch q.Key.Kind {
		case AnswerSingle:
			if q.Key.Index < 0 || q.Key.Index >= len(q.Options) {
				return fmt.Errorf("%w: question %d key index %d out of range", ErrInvalidAssessment, i, q.Key.Index)
			}
		case AnswerMultiple:
			if len(q.Key.Indices) == 0 {
				return fmt.Errorf("%w: question %d multi-select key is empty", ErrInvalidAssessment, i)
			}
			for _, idx := range q.Key.Indices {
				if idx < 0 || idx >= len(q.Options) {
					return fmt.Errorf("%w: question %d key index %d out of range", ErrInvalidAssessment, i, idx)
				}
			}
		default:
			return fmt.Errorf("%w: question %d has no answer key", ErrInvalidAssessment, i)
		}
	}
	return nil
}

// AnswerRecord captures one submitted answer and its derived correctness.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	Answer        Answer    `json:"answer"`
	Correct       bool      `json:"correct"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Session is the mutable, resumable record of an in-progress attempt.
// It is the single source of truth while a quiz is running; the whole
// snapshot is persisted on every mutating transition.
type Session struct {
	AssessmentID  string               `json:"assessmentId"`
	Variant       string               `json:"variant"`
	Current       int                  `json:"current"`
	Answers       map[int]AnswerRecord `json:"answers"`
	Flagged       map[int]bool         `json:"flagged"`
	StartedAt     time.Time            `json:"startedAt"`
	PausedSeconds float64              `json:"pausedSeconds"`
}

// NewSession returns a fresh session pointed at question 0.
func NewSession(assessmentID, variant string, startedAt time.Time) *Session {
	return &Session{
		AssessmentID: assessmentID,
		Variant:      variant,
		Answers:      make(map[int]AnswerRecord),
		Flagged:      make(map[int]bool),
		StartedAt:    startedAt,
	}
}

// RecordAnswer writes or replaces the answer record for idx. Replacement in
// place is allowed before submission; keying by index makes duplicates
// impossible.
func (s *Session) RecordAnswer(idx int, rec AnswerRecord) {
	if s.Answers == nil {
		s.Answers = make(map[int]AnswerRecord)
	}
	s.Answers[idx] = rec
}

// Navigate moves the current-question pointer. Free navigation: any valid
// index is reachable regardless of answered state.
func (s *Session) Navigate(idx, total int) error {
	if idx < 0 || idx >= total {
		return ErrQuestionOutOfRange
	}
	s.Current = idx
	return nil
}

// ToggleFlag flips the flagged marker for idx and reports the new value.
func (s *Session) ToggleFlag(idx int) bool {
	if s.Flagged == nil {
		s.Flagged = make(map[int]bool)
	}
	if s.Flagged[idx] {
		delete(s.Flagged, idx)
		return false
	}
	s.Flagged[idx] = true
	return true
}

// Complete reports whether every question has an answer record.
func (s *Session) Complete(total int) bool {
	return len(s.Answers) >= total
}

// Clone returns a deep copy, so stores can hold snapshots that later
// mutations of the live session cannot reach.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Answers = make(map[int]AnswerRecord, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	cp.Flagged = make(map[int]bool, len(s.Flagged))
	for k, v := range s.Flagged {
		cp.Flagged[k] = v
	}
	return &cp
}

// Attempt is the immutable record of a completed, graded session.
type Attempt struct {
	AssessmentID     string               `json:"assessmentId"`
	Variant          string               `json:"variant"`
	Score            int                  `json:"score"`
	Percentage       float64              `json:"percentage"`
	TotalQuestions   int                  `json:"totalQuestions"`
	TimeSpentSeconds int                  `json:"timeSpentSeconds"`
	Passed           bool                 `json:"passed"`
	TimedOut         bool                 `json:"timedOut,omitempty"`
	Answers          map[int]AnswerRecord `json:"answers"`
	CompletedAt      time.Time            `json:"completedAt"`
}

// History summarizes all attempts recorded for one assessment identity+variant.
type History struct {
	Attempts       []Attempt `json:"attempts"`
	BestPercentage float64   `json:"bestPercentage"`
	AttemptCount   int       `json:"attemptCount"`
}

// Fold recomputes the derived history fields from the attempt list.
func (h *History) Fold() {
	h.AttemptCount = len(h.Attempts)
	h.BestPercentage = 0
	for _, a := range h.Attempts {
		if a.Percentage > h.BestPercentage {
			h.BestPercentage = a.Percentage
		}
	}
}
