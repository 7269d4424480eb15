package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"statquiz-engine/internal/domain"
)

// AssessmentRepository loads assessment content (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID, variant string) (domain.Assessment, error)
}

// SessionStore persists the single resumable session per assessment+variant
// and the append-only attempt history.
type SessionStore interface {
	GetActiveSession(ctx context.Context, assessmentID, variant string) (*domain.Session, error)
	SaveActiveSession(ctx context.Context, assessmentID, variant string, s domain.Session) error
	ClearActiveSession(ctx context.Context, assessmentID, variant string) error
	AppendAttempt(ctx context.Context, assessmentID, variant string, a domain.Attempt) error
	GetHistory(ctx context.Context, assessmentID, variant string) (domain.History, error)
}

// Controller drives one mounted assessment through
// intro -> active -> results (-> review -> results). It owns the session for
// its lifetime, persists the whole session snapshot on every mutating
// transition, and converts the session into exactly one immutable attempt on
// submission no matter how many submit or expiry triggers arrive.
type Controller struct {
	store      SessionStore
	clock      func() time.Time
	assessment domain.Assessment

	mu              sync.Mutex
	warnWindow      time.Duration
	phase           domain.Phase
	session         *domain.Session
	timer           *Timer
	result          *domain.Attempt
	history         domain.History
	prevBest        float64
	improvement     float64
	finalized       bool
	persistDegraded bool
	notify          func(Snapshot)
}

// Mount loads the assessment and any resumable session. A missing or
// malformed assessment is fatal; everything after mount degrades instead of
// failing.
func Mount(ctx context.Context, repo AssessmentRepository, store SessionStore, assessmentID, variant string) (*Controller, error) {
	return MountWithClock(ctx, repo, store, assessmentID, variant, time.Now)
}

// MountWithClock is the test hook for deterministic timestamps.
func MountWithClock(ctx context.Context, repo AssessmentRepository, store SessionStore, assessmentID, variant string, clock func() time.Time) (*Controller, error) {
	assessment, err := repo.GetAssessment(ctx, assessmentID, variant)
	if err != nil {
		return nil, fmt.Errorf("mount %s/%s: %w", assessmentID, variant, err)
	}
	if err := assessment.Validate(); err != nil {
		return nil, fmt.Errorf("mount %s/%s: %w", assessmentID, variant, err)
	}

	c := &Controller{
		store:      store,
		clock:      clock,
		assessment: assessment,
		phase:      domain.PhaseIntro,
	}

	if history, err := store.GetHistory(ctx, assessmentID, variant); err != nil {
		log.Printf("load history %s/%s: %v", assessmentID, variant, err)
	} else {
		c.history = history
	}

	// Resume-on-mount takes precedence over the intro screen; an explicit
	// start/retake later never resumes.
	resumable, err := store.GetActiveSession(ctx, assessmentID, variant)
	if err != nil {
		log.Printf("load session %s/%s: %v", assessmentID, variant, err)
		resumable = nil
	}
	if resumable != nil {
		c.resume(ctx, resumable)
	}
	return c, nil
}

// OnChange registers a callback invoked after transitions the user did not
// trigger (timer-forced submission), so a presentation layer can repaint.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Assessment exposes the loaded content (read-only by convention).
func (c *Controller) Assessment() domain.Assessment {
	return c.assessment
}

func (c *Controller) resume(ctx context.Context, s *domain.Session) {
	c.mu.Lock()
	c.session = s.Clone()
	c.phase = domain.PhaseActive
	c.finalized = false
	elapsed := c.clock().Sub(s.StartedAt) - time.Duration(s.PausedSeconds*float64(time.Second))
	if elapsed < 0 {
		elapsed = 0
	}
	c.startTimerLocked(elapsed)
	expiredOnResume := elapsed >= c.assessment.TimeLimit()
	c.mu.Unlock()

	// The deadline passed while the page was away: force submission now
	// rather than waiting for a tick.
	if expiredOnResume {
		c.forceSubmit(ctx)
	}
}

func (c *Controller) startTimerLocked(elapsed time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	pausedCarry := time.Duration(c.session.PausedSeconds * float64(time.Second))
	c.timer = NewTimerWithClock(func() { c.forceSubmit(context.Background()) }, c.clock)
	if c.warnWindow > 0 {
		c.timer.SetWarnWindow(c.warnWindow)
	}
	c.timer.Restore(c.assessment.TimeLimit(), elapsed, pausedCarry)
}

// SetWarnWindow adjusts the low-time window surfaced in snapshots.
func (c *Controller) SetWarnWindow(w time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnWindow = w
	if c.timer != nil {
		c.timer.SetWarnWindow(w)
	}
}

// Start begins a brand-new attempt from the intro screen. Any stored session
// for this assessment+variant is discarded.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != domain.PhaseIntro {
		c.mu.Unlock()
		return domain.ErrNotActive
	}
	c.startFreshLocked(ctx)
	c.mu.Unlock()
	return nil
}

func (c *Controller) startFreshLocked(ctx context.Context) {
	if err := c.store.ClearActiveSession(ctx, c.assessment.ID, c.assessment.Variant); err != nil {
		log.Printf("clear session %s/%s: %v", c.assessment.ID, c.assessment.Variant, err)
	}
	c.session = domain.NewSession(c.assessment.ID, c.assessment.Variant, c.clock())
	c.phase = domain.PhaseActive
	c.finalized = false
	c.result = nil
	c.startTimerLocked(0)
	c.persistLocked(ctx)
}

// Answer grades and records the submitted answer for the current question.
// It never advances the pointer; moving on is a separate navigation action.
func (c *Controller) Answer(ctx context.Context, submitted domain.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseActive {
		return domain.ErrNotActive
	}
	if submitted.Empty() {
		return domain.ErrEmptyAnswer
	}
	idx := c.session.Current
	q := c.assessment.Questions[idx]
	c.session.RecordAnswer(idx, domain.AnswerRecord{
		QuestionIndex: idx,
		Answer:        submitted,
		Correct:       domain.Evaluate(q, submitted),
		SubmittedAt:   c.clock(),
	})
	c.persistLocked(ctx)
	return nil
}

// Navigate moves the current-question pointer to any valid index.
func (c *Controller) Navigate(ctx context.Context, idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case domain.PhaseActive:
		if err := c.session.Navigate(idx, len(c.assessment.Questions)); err != nil {
			return err
		}
		c.persistLocked(ctx)
		return nil
	case domain.PhaseReview:
		// Review navigation is a read-mode cursor move; nothing is stored.
		if idx < 0 || idx >= len(c.assessment.Questions) {
			return domain.ErrQuestionOutOfRange
		}
		c.session.Current = idx
		return nil
	default:
		return domain.ErrNotActive
	}
}

// ToggleFlag flips the flag on the current question.
func (c *Controller) ToggleFlag(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseActive {
		return domain.ErrNotActive
	}
	c.session.ToggleFlag(c.session.Current)
	c.persistLocked(ctx)
	return nil
}

// Pause freezes the countdown without changing phase.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == domain.PhaseActive && c.timer != nil {
		c.timer.Pause()
	}
}

// Resume continues a paused countdown and persists the accumulated pause so a
// reload keeps the adjusted deadline.
func (c *Controller) Resume(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == domain.PhaseActive && c.timer != nil {
		c.timer.Resume()
		c.persistLocked(ctx)
	}
}

// Submit finalizes the attempt. Rejected while unanswered questions remain;
// only timer expiry may force an incomplete submission.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseActive {
		return domain.ErrNotActive
	}
	if !c.session.Complete(len(c.assessment.Questions)) {
		return domain.ErrIncomplete
	}
	c.finalizeLocked(ctx, false)
	return nil
}

// forceSubmit is the timer expiry path: submits whatever answers exist.
func (c *Controller) forceSubmit(ctx context.Context) {
	c.mu.Lock()
	if c.phase != domain.PhaseActive || c.finalized {
		c.mu.Unlock()
		return
	}
	c.finalizeLocked(ctx, true)
	notify := c.notify
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
}

// finalizeLocked converts the session into an attempt exactly once. Repeated
// expiry callbacks or double submits hit the finalized guard and do nothing.
func (c *Controller) finalizeLocked(ctx context.Context, timedOut bool) {
	if c.finalized {
		return
	}
	c.finalized = true

	elapsed := c.timer.Elapsed()
	c.timer.Stop()

	total := len(c.assessment.Questions)
	score := 0
	for _, rec := range c.session.Answers {
		if rec.Correct {
			score++
		}
	}
	percentage := math.Round(float64(score)/float64(total)*10000) / 100

	attempt := domain.Attempt{
		AssessmentID:     c.assessment.ID,
		Variant:          c.assessment.Variant,
		Score:            score,
		Percentage:       percentage,
		TotalQuestions:   total,
		TimeSpentSeconds: int(elapsed.Seconds()),
		Passed:           percentage >= c.assessment.PassPercent,
		TimedOut:         timedOut,
		Answers:          c.session.Clone().Answers,
		CompletedAt:      c.clock(),
	}

	c.prevBest = c.history.BestPercentage
	c.improvement = percentage - c.prevBest

	// A lost attempt is worse than a lost session save: retry once before
	// degrading.
	if err := c.store.AppendAttempt(ctx, c.assessment.ID, c.assessment.Variant, attempt); err != nil {
		log.Printf("append attempt %s/%s: %v (retrying)", c.assessment.ID, c.assessment.Variant, err)
		if err := c.store.AppendAttempt(ctx, c.assessment.ID, c.assessment.Variant, attempt); err != nil {
			log.Printf("append attempt %s/%s failed twice: %v", c.assessment.ID, c.assessment.Variant, err)
			c.persistDegraded = true
		}
	}
	if err := c.store.ClearActiveSession(ctx, c.assessment.ID, c.assessment.Variant); err != nil {
		log.Printf("clear session %s/%s: %v", c.assessment.ID, c.assessment.Variant, err)
	}

	c.history.Attempts = append(c.history.Attempts, attempt)
	c.history.Fold()
	c.result = &attempt
	c.phase = domain.PhaseResults
	c.session.Current = 0
}

// Review switches to the read-only replay of the completed attempt. No
// session or attempt mutation occurs; correctness comes from the stored
// records, the evaluator is not consulted again.
func (c *Controller) Review() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseResults || c.result == nil {
		return domain.ErrNoResults
	}
	c.phase = domain.PhaseReview
	c.session.Current = 0
	return nil
}

// BackToResults leaves review mode.
func (c *Controller) BackToResults() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseReview {
		return domain.ErrNoResults
	}
	c.phase = domain.PhaseResults
	return nil
}

// Retake discards the finished attempt's session state and starts a fresh
// one, regardless of how the previous attempt ended.
func (c *Controller) Retake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != domain.PhaseResults && c.phase != domain.PhaseReview {
		return domain.ErrNoResults
	}
	c.startFreshLocked(ctx)
	return nil
}

// Close stops the timer. Must be called on unmount so a stale tick cannot
// fire an expiry into a dead session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// History returns the attempt history as of the last load or finalize.
func (c *Controller) History() domain.History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// persistLocked writes the whole current session snapshot. Ordering across
// writes is irrelevant because every write carries the full state. Failures
// degrade the session to non-resumable instead of interrupting the quiz.
func (c *Controller) persistLocked(ctx context.Context) {
	if c.timer != nil {
		c.session.PausedSeconds = c.timer.PausedTotal().Seconds()
	}
	if err := c.store.SaveActiveSession(ctx, c.assessment.ID, c.assessment.Variant, *c.session.Clone()); err != nil {
		log.Printf("save session %s/%s: %v", c.assessment.ID, c.assessment.Variant, err)
		c.persistDegraded = true
	}
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
