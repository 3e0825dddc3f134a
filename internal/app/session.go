package app

import (
	"sync"
	"time"

	"skillquiz-service/internal/domain"
)

// State is the coarse lifecycle of a Session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
)

// TimerLevel hints how urgently the remaining time should be presented.
type TimerLevel string

const (
	TimerNormal   TimerLevel = "normal"
	TimerWarning  TimerLevel = "warning"
	TimerCritical TimerLevel = "critical"
)

// StartParams carries everything needed to begin an attempt.
type StartParams struct {
	Category         string
	Questions        []domain.Question
	TimeLimitSeconds int
	QuizID           string
	IsCustomQuiz     bool
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	UserID               string               `json:"userId"`
	State                State                `json:"state"`
	Started              bool                 `json:"started"`
	Finished             bool                 `json:"finished"`
	Category             string               `json:"category"`
	QuizID               string               `json:"quizId,omitempty"`
	IsCustomQuiz         bool                 `json:"isCustomQuiz"`
	Questions            []domain.Question    `json:"questions"`
	CurrentIndex         int                  `json:"currentIndex"`
	Answers              []domain.AnswerEntry `json:"answers"`
	Score                int                  `json:"score"`
	TimeRemainingSeconds int                  `json:"timeRemainingSeconds"`
	TimerLevel           TimerLevel           `json:"timerLevel"`
	StartedAt            time.Time            `json:"startedAt"`
	Attempt              uint64               `json:"attempt"`
}

// CurrentQuestion returns the question under the cursor.
func (s Snapshot) CurrentQuestion() (domain.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// AnswerFor returns the recorded answer for question index i.
func (s Snapshot) AnswerFor(i int) (domain.AnswerEntry, bool) {
	for _, a := range s.Answers {
		if a.QuestionIndex == i {
			return a, true
		}
	}
	return domain.AnswerEntry{}, false
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithRequireAnswer makes Next refuse to leave an unanswered question.
func WithRequireAnswer(required bool) SessionOption {
	return func(s *Session) { s.requireAnswer = required }
}

// WithClock overrides time.Now for deterministic timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session owns one user's attempt. All transitions are serialized by mu and
// every successful transition is broadcast to subscribers.
type Session struct {
	userID        string
	now           func() time.Time
	requireAnswer bool

	mu          sync.Mutex
	state       State
	category    string
	quizID      string
	custom      bool
	questions   []domain.Question
	current     int
	answers     []domain.AnswerEntry
	score       int
	remaining   int
	startedAt   time.Time
	attempt     uint64
	completing  bool
	subscribers map[chan Snapshot]struct{}
}

// NewSession returns a session in the NotStarted state.
func NewSession(userID string, opts ...SessionOption) *Session {
	s := &Session{
		userID:      userID,
		now:         time.Now,
		state:       StateNotStarted,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID identifies the session owner.
func (s *Session) UserID() string {
	return s.userID
}

// Start replaces any prior attempt with a fresh one.
func (s *Session) Start(p StartParams) (Snapshot, error) {
	if len(p.Questions) == 0 {
		return Snapshot{}, domain.Validationf("cannot start a quiz without questions")
	}
	if p.TimeLimitSeconds <= 0 {
		return Snapshot{}, domain.Validationf("time limit must be positive, got %d", p.TimeLimitSeconds)
	}

	questions := make([]domain.Question, len(p.Questions))
	copy(questions, p.Questions)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateInProgress
	s.category = p.Category
	s.quizID = p.QuizID
	s.custom = p.IsCustomQuiz
	s.questions = questions
	s.current = 0
	s.answers = nil
	s.score = 0
	s.remaining = p.TimeLimitSeconds
	s.startedAt = s.now()
	s.attempt++
	s.completing = false
	return s.broadcastLocked(), nil
}

// Answer records selected for the current question, replacing any earlier
// answer to the same question.
func (s *Session) Answer(selected string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked("answer"); err != nil {
		return Snapshot{}, err
	}
	q := s.questions[s.current]
	if !q.HasOption(selected) {
		return Snapshot{}, domain.Validationf("%q is not an option of question %d", selected, s.current)
	}

	entry := domain.AnswerEntry{
		QuestionIndex: s.current,
		Answer:        selected,
		IsCorrect:     selected == q.CorrectAnswer,
	}
	replaced := false
	for i := range s.answers {
		if s.answers[i].QuestionIndex == s.current {
			if s.answers[i].IsCorrect {
				s.score--
			}
			s.answers[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.answers = append(s.answers, entry)
	}
	if entry.IsCorrect {
		s.score++
	}
	return s.broadcastLocked(), nil
}

// Next advances the cursor, or finishes the session on the last question.
func (s *Session) Next() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked("next"); err != nil {
		return Snapshot{}, err
	}
	if s.requireAnswer && !s.answeredLocked(s.current) {
		return Snapshot{}, domain.InvalidStatef("question %d has not been answered", s.current)
	}
	if s.current == len(s.questions)-1 {
		s.state = StateFinished
	} else {
		s.current++
	}
	return s.broadcastLocked(), nil
}

// Previous moves the cursor back, floored at zero.
func (s *Session) Previous() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked("previous"); err != nil {
		return Snapshot{}, err
	}
	if s.current > 0 {
		s.current--
	}
	return s.broadcastLocked(), nil
}

// Tick subtracts elapsed seconds from the remaining time, floored at zero,
// and returns what is left. Expiry does not finish the session.
func (s *Session) Tick(elapsed int) (int, error) {
	return s.TickAttempt(0, elapsed)
}

// TickAttempt is Tick guarded by an attempt number so a timer scheduled for
// an earlier attempt cannot touch a restarted session. Zero matches any attempt.
func (s *Session) TickAttempt(attempt uint64, elapsed int) (int, error) {
	if elapsed < 0 {
		return 0, domain.Validationf("elapsed seconds must not be negative, got %d", elapsed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked("tick"); err != nil {
		return 0, err
	}
	if attempt != 0 && attempt != s.attempt {
		return 0, domain.InvalidStatef("tick: attempt %d has been replaced", attempt)
	}
	s.remaining -= elapsed
	if s.remaining < 0 {
		s.remaining = 0
	}
	s.broadcastLocked()
	return s.remaining, nil
}

// SetTimeRemaining lowers the remaining time to value. Increases are ignored.
func (s *Session) SetTimeRemaining(value int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked("set time"); err != nil {
		return 0, err
	}
	if value < 0 {
		value = 0
	}
	if value < s.remaining {
		s.remaining = value
		s.broadcastLocked()
	}
	return s.remaining, nil
}

// Finish ends the attempt regardless of cursor position. Finishing a
// finished session is a no-op.
func (s *Session) Finish() (Snapshot, error) {
	return s.FinishAttempt(0)
}

// FinishAttempt is Finish guarded by an attempt number. Zero matches any attempt.
func (s *Session) FinishAttempt(attempt uint64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != 0 && attempt != s.attempt {
		return Snapshot{}, domain.InvalidStatef("finish: attempt %d has been replaced", attempt)
	}
	switch s.state {
	case StateNotStarted:
		return Snapshot{}, domain.InvalidStatef("finish: quiz has not been started")
	case StateFinished:
		return s.snapshotLocked(), nil
	}
	s.state = StateFinished
	return s.broadcastLocked(), nil
}

// Reset returns the session to the empty NotStarted state.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

// ResetAttempt resets the session only while attempt is still the current
// one. It reports whether the reset happened.
func (s *Session) ResetAttempt(attempt uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != s.attempt {
		return s.snapshotLocked(), false
	}
	return s.resetLocked(), true
}

// ClaimCompletion hands the finished attempt to exactly one completer. Later
// callers get ErrInvalidState until the claim is released or the session moves on.
func (s *Session) ClaimCompletion() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFinished {
		return Snapshot{}, domain.InvalidStatef("complete: quiz is %s", s.state)
	}
	if s.completing {
		return Snapshot{}, domain.InvalidStatef("complete: attempt %d is already being completed", s.attempt)
	}
	s.completing = true
	return s.snapshotLocked(), nil
}

// ReleaseCompletion gives up a claim taken by ClaimCompletion so the attempt
// can be completed again.
func (s *Session) ReleaseCompletion(attempt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt == s.attempt {
		s.completing = false
	}
}

// Idle reports whether nobody is watching the session and no attempt is running.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && s.state != StateInProgress
}

func (s *Session) resetLocked() Snapshot {
	s.state = StateNotStarted
	s.category = ""
	s.quizID = ""
	s.custom = false
	s.questions = nil
	s.current = 0
	s.answers = nil
	s.score = 0
	s.remaining = 0
	s.startedAt = time.Time{}
	s.attempt++
	s.completing = false
	return s.broadcastLocked()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	// ch is still empty, so this never blocks and later broadcasts queue behind it.
	ch <- s.snapshotLocked()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) requireInProgressLocked(op string) error {
	switch s.state {
	case StateNotStarted:
		return domain.InvalidStatef("%s: quiz has not been started", op)
	case StateFinished:
		return domain.InvalidStatef("%s: quiz is already finished", op)
	}
	return nil
}

func (s *Session) answeredLocked(index int) bool {
	for _, a := range s.answers {
		if a.QuestionIndex == index {
			return true
		}
	}
	return false
}

func (s *Session) broadcastLocked() Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() Snapshot {
	questions := make([]domain.Question, len(s.questions))
	copy(questions, s.questions)
	answers := make([]domain.AnswerEntry, len(s.answers))
	copy(answers, s.answers)

	return Snapshot{
		UserID:               s.userID,
		State:                s.state,
		Started:              s.state != StateNotStarted,
		Finished:             s.state == StateFinished,
		Category:             s.category,
		QuizID:               s.quizID,
		IsCustomQuiz:         s.custom,
		Questions:            questions,
		CurrentIndex:         s.current,
		Answers:              answers,
		Score:                s.score,
		TimeRemainingSeconds: s.remaining,
		TimerLevel:           timerLevel(s.remaining),
		StartedAt:            s.startedAt,
		Attempt:              s.attempt,
	}
}

func timerLevel(remaining int) TimerLevel {
	switch {
	case remaining <= 10:
		return TimerCritical
	case remaining <= 60:
		return TimerWarning
	default:
		return TimerNormal
	}
}
