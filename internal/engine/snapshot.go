package engine

import "statquiz-engine/internal/domain"

// QuestionView is the render-ready projection of the current question. The
// answer key and explanation are only populated in review mode.
type QuestionView struct {
	Index       int            `json:"index"`
	Prompt      string         `json:"prompt"`
	Options     []string       `json:"options"`
	Topic       string         `json:"topic,omitempty"`
	MultiSelect bool           `json:"multiSelect"`
	Submitted   *domain.Answer `json:"submitted,omitempty"`
	Flagged     bool           `json:"flagged"`
	Correct     *bool          `json:"correct,omitempty"`
	Key         *domain.Answer `json:"key,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
}

// ResultView summarizes the finalized attempt for the results screen.
type ResultView struct {
	Score            int     `json:"score"`
	TotalQuestions   int     `json:"totalQuestions"`
	Percentage       float64 `json:"percentage"`
	Passed           bool    `json:"passed"`
	TimedOut         bool    `json:"timedOut"`
	TimeSpentSeconds int     `json:"timeSpentSeconds"`
	Improvement      float64 `json:"improvement"`
}

// Snapshot is the complete presentation state: everything a client needs to
// render without holding state of its own.
type Snapshot struct {
	Phase            domain.Phase  `json:"phase"`
	AssessmentID     string        `json:"assessmentId"`
	Variant          string        `json:"variant"`
	Title            string        `json:"title"`
	TotalQuestions   int           `json:"totalQuestions"`
	PassPercent      float64       `json:"passPercent"`
	TimeLimitMinutes int           `json:"timeLimitMinutes"`
	BestPercentage   float64       `json:"bestPercentage"`
	AttemptCount     int           `json:"attemptCount"`
	Current          int           `json:"current"`
	Question         *QuestionView `json:"question,omitempty"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Warning          bool          `json:"warning"`
	Paused           bool          `json:"paused"`
	Progress         []Status      `json:"progress,omitempty"`
	Answered         []int         `json:"answered,omitempty"`
	Flagged          []int         `json:"flagged,omitempty"`
	Result           *ResultView   `json:"result,omitempty"`
	PersistDegraded  bool          `json:"persistDegraded,omitempty"`
}

// Snapshot builds the current presentation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:            c.phase,
		AssessmentID:     c.assessment.ID,
		Variant:          c.assessment.Variant,
		Title:            c.assessment.Title,
		TotalQuestions:   len(c.assessment.Questions),
		PassPercent:      c.assessment.PassPercent,
		TimeLimitMinutes: c.assessment.TimeLimitMinutes,
		BestPercentage:   c.history.BestPercentage,
		AttemptCount:     c.history.AttemptCount,
		PersistDegraded:  c.persistDegraded,
	}

	switch c.phase {
	case domain.PhaseActive:
		snap.Current = c.session.Current
		snap.Question = c.questionViewLocked(false)
		snap.RemainingSeconds = int(c.timer.Remaining().Seconds())
		snap.Warning = c.timer.Warning()
		snap.Paused = c.timer.Paused()
		answered := answeredSet(c.session.Answers)
		snap.Answered = sortedKeys(answered)
		snap.Flagged = sortedKeys(c.session.Flagged)
		snap.Progress = BuildProgress(ProgressInput{
			Total:    len(c.assessment.Questions),
			Current:  c.session.Current,
			Answered: answered,
			Flagged:  c.session.Flagged,
		})
	case domain.PhaseResults:
		snap.Result = c.resultViewLocked()
	case domain.PhaseReview:
		snap.Current = c.session.Current
		snap.Question = c.questionViewLocked(true)
		snap.Result = c.resultViewLocked()
		correct, incorrect := correctnessSets(c.result.Answers)
		snap.Flagged = sortedKeys(c.session.Flagged)
		snap.Progress = BuildProgress(ProgressInput{
			Total:     len(c.assessment.Questions),
			Current:   c.session.Current,
			Answered:  answeredSet(c.result.Answers),
			Flagged:   c.session.Flagged,
			Review:    true,
			Correct:   correct,
			Incorrect: incorrect,
		})
	}
	return snap
}

func (c *Controller) questionViewLocked(review bool) *QuestionView {
	idx := c.session.Current
	q := c.assessment.Questions[idx]
	view := &QuestionView{
		Index:       idx,
		Prompt:      q.Prompt,
		Options:     q.Options,
		Topic:       q.Topic,
		MultiSelect: q.Key.Kind == domain.AnswerMultiple,
		Flagged:     c.session.Flagged[idx],
	}

	records := c.session.Answers
	if review {
		records = c.result.Answers
	}
	if rec, ok := records[idx]; ok {
		submitted := rec.Answer
		view.Submitted = &submitted
		if review {
			correct := rec.Correct
			view.Correct = &correct
		}
	}
	if review {
		key := q.Key
		view.Key = &key
		view.Explanation = q.Explanation
	}
	return view
}

func (c *Controller) resultViewLocked() *ResultView {
	if c.result == nil {
		return nil
	}
	return &ResultView{
		Score:            c.result.Score,
		TotalQuestions:   c.result.TotalQuestions,
		Percentage:       c.result.Percentage,
		Passed:           c.result.Passed,
		TimedOut:         c.result.TimedOut,
		TimeSpentSeconds: c.result.TimeSpentSeconds,
		Improvement:      c.improvement,
	}
}

func answeredSet(records map[int]domain.AnswerRecord) map[int]bool {
	out := make(map[int]bool, len(records))
	for idx := range records {
		out[idx] = true
	}
	return out
}

func correctnessSets(records map[int]domain.AnswerRecord) (correct, incorrect map[int]bool) {
	correct = make(map[int]bool, len(records))
	incorrect = make(map[int]bool)
	for idx, rec := range records {
		if rec.Correct {
			correct[idx] = true
		} else {
			incorrect[idx] = true
		}
	}
	return correct, incorrect
}
