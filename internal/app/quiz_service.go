package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"skillquiz-service/internal/domain"
)

const (
	sourceBuiltin   = "builtin"
	sourceCommunity = "community"
)

// QuizServiceConfig tunes play sessions.
type QuizServiceConfig struct {
	// TimeLimit applies to built-in category quizzes.
	TimeLimit time.Duration
	// QuestionLimit caps how many questions a category quiz draws.
	QuestionLimit int
	// TickInterval is how often the countdown fires; each fire counts one second.
	TickInterval time.Duration
}

func (c QuizServiceConfig) withDefaults() QuizServiceConfig {
	if c.TimeLimit <= 0 {
		c.TimeLimit = 600 * time.Second
	}
	if c.QuestionLimit <= 0 {
		c.QuestionLimit = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

// QuizService contains the play use cases: starting, navigating, finishing and completing attempts.
type QuizService struct {
	sessions SessionRepository
	provider *QuestionProvider
	results  *ResultService
	cfg      QuizServiceConfig
	deps
}

func NewQuizService(sessions SessionRepository, provider *QuestionProvider, results *ResultService, cfg QuizServiceConfig, opts ...Option) *QuizService {
	return &QuizService{
		sessions: sessions,
		provider: provider,
		results:  results,
		cfg:      cfg.withDefaults(),
		deps:     newDeps(opts),
	}
}

// StartCategory begins a timed attempt over shuffled built-in questions.
// A non-positive limit draws the configured question count.
func (s *QuizService) StartCategory(ctx context.Context, userID, category string, difficulty domain.Difficulty, limit int) (Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return Snapshot{}, domain.Validationf("user id is required")
	}
	if limit <= 0 {
		limit = s.cfg.QuestionLimit
	}
	questions, err := s.provider.GetQuestions(ctx, category, difficulty, limit)
	if err != nil {
		return Snapshot{}, err
	}
	if len(questions) == 0 {
		return Snapshot{}, domain.NotFoundf("no questions available for category %q", category)
	}

	return s.start(userID, sourceBuiltin, StartParams{
		Category:         strings.ToLower(strings.TrimSpace(category)),
		Questions:        questions,
		TimeLimitSeconds: int(s.cfg.TimeLimit / time.Second),
	})
}

// StartCommunity begins an attempt over an approved community quiz, using its own time limit.
func (s *QuizService) StartCommunity(ctx context.Context, userID, quizID string) (Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return Snapshot{}, domain.Validationf("user id is required")
	}
	quiz, err := s.provider.CommunityQuiz(ctx, quizID)
	if err != nil {
		return Snapshot{}, err
	}

	return s.start(userID, sourceCommunity, StartParams{
		Category:         quiz.Definition.Category,
		Questions:        quiz.Definition.Questions,
		TimeLimitSeconds: quiz.Definition.TimeLimitMinutes * 60,
		QuizID:           quiz.ID,
		IsCustomQuiz:     true,
	})
}

func (s *QuizService) start(userID, source string, p StartParams) (Snapshot, error) {
	var (
		session *Session
		snap    Snapshot
		err     error
	)
	for {
		session = s.sessions.GetOrCreate(userID)
		snap, err = session.Start(p)
		if err != nil {
			return Snapshot{}, err
		}
		// A running attempt is never released, so once the session is still
		// registered here it stays registered.
		if current, ok := s.sessions.Get(userID); ok && current == session {
			break
		}
	}
	s.metrics.SessionStarted(source)
	// Start bumps the attempt by exactly one; drop the replaced attempt's job.
	s.stopCountdown(userID, snap.Attempt-1)
	s.startCountdown(userID, session, snap.Attempt)
	s.logger.Info("quiz started",
		"user_id", userID,
		"category", p.Category,
		"quiz_id", p.QuizID,
		"questions", len(p.Questions),
		"time_limit_s", p.TimeLimitSeconds,
	)
	return snap, nil
}

// Answer records an answer to the current question.
func (s *QuizService) Answer(_ context.Context, userID, selected string) (Snapshot, error) {
	session, err := s.active(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Answer(selected)
}

// Next advances to the next question; on the last question it finishes the attempt.
func (s *QuizService) Next(_ context.Context, userID string) (Snapshot, error) {
	session, err := s.active(userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := session.Next()
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Finished {
		s.stopCountdown(userID, snap.Attempt)
	}
	return snap, nil
}

// Previous steps back one question.
func (s *QuizService) Previous(_ context.Context, userID string) (Snapshot, error) {
	session, err := s.active(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Previous()
}

// Finish ends the attempt early.
func (s *QuizService) Finish(_ context.Context, userID string) (Snapshot, error) {
	session, err := s.active(userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := session.Finish()
	if err != nil {
		return Snapshot{}, err
	}
	s.stopCountdown(userID, snap.Attempt)
	return snap, nil
}

// Complete persists a finished attempt and resets the session. Only one
// caller completes a given attempt; others get ErrInvalidState. When
// persistence fails the session stays finished so the caller may retry.
func (s *QuizService) Complete(ctx context.Context, userID string) (Outcome, error) {
	session, err := s.active(userID)
	if err != nil {
		return Outcome{}, err
	}
	snap, err := session.ClaimCompletion()
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := s.results.Record(ctx, snap)
	if err != nil {
		session.ReleaseCompletion(snap.Attempt)
		return Outcome{}, err
	}
	// A newer attempt started while the result was being stored keeps running.
	if _, ok := session.ResetAttempt(snap.Attempt); ok {
		s.sessions.Release(userID)
	}
	return outcome, nil
}

// Reset abandons whatever the user was doing.
func (s *QuizService) Reset(_ context.Context, userID string) Snapshot {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return NewSession(userID).Snapshot()
	}
	snap := session.Reset()
	// Reset bumps the attempt by exactly one.
	s.stopCountdown(userID, snap.Attempt-1)
	s.sessions.Release(userID)
	return snap
}

// Release forgets the user's session once nobody is subscribed to it and no
// attempt is running. It reports whether the session was dropped.
func (s *QuizService) Release(_ context.Context, userID string) bool {
	return s.sessions.Release(userID)
}

// Live reports whether userID holds a session, asking the repository when it
// can see other instances.
func (s *QuizService) Live(ctx context.Context, userID string) (bool, error) {
	if presence, ok := s.sessions.(SessionPresence); ok {
		return presence.Live(ctx, userID)
	}
	_, ok := s.sessions.Get(userID)
	return ok, nil
}

// Snapshot returns the user's current session state.
func (s *QuizService) Snapshot(_ context.Context, userID string) Snapshot {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return NewSession(userID).Snapshot()
	}
	return session.Snapshot()
}

// Subscribe returns a channel of snapshots for the user's session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, userID string) (<-chan Snapshot, func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, domain.Validationf("user id is required")
	}
	for {
		session := s.sessions.GetOrCreate(userID)
		ch, cancel := session.Subscribe()
		// A watched session is never released, so a session still registered
		// after subscribing is the one later starts will use.
		if current, ok := s.sessions.Get(userID); ok && current == session {
			return ch, cancel, nil
		}
		cancel()
	}
}

func (s *QuizService) active(userID string) (*Session, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, domain.InvalidStatef("no quiz has been started for user %s", userID)
	}
	return session, nil
}

// CountdownKey names the scheduler job that times one attempt.
func CountdownKey(userID string, attempt uint64) string {
	return userID + "#" + strconv.FormatUint(attempt, 10)
}

func (s *QuizService) startCountdown(userID string, session *Session, attempt uint64) {
	if s.scheduler == nil {
		return
	}
	err := s.scheduler.Schedule(CountdownKey(userID, attempt), s.cfg.TickInterval, func() {
		s.tick(userID, session, attempt)
	})
	if err != nil {
		s.logger.Warn("countdown not scheduled", "user_id", userID, "error", err)
	}
}

func (s *QuizService) stopCountdown(userID string, attempt uint64) {
	if s.scheduler != nil && attempt > 0 {
		s.scheduler.Cancel(CountdownKey(userID, attempt))
	}
}

// tick counts one second off the attempt it was scheduled for and finishes
// the attempt when time runs out. A job whose attempt is no longer running
// removes itself.
func (s *QuizService) tick(userID string, session *Session, attempt uint64) {
	remaining, err := session.TickAttempt(attempt, 1)
	if err != nil {
		s.stopCountdown(userID, attempt)
		return
	}
	if remaining > 0 {
		return
	}
	s.stopCountdown(userID, attempt)
	if _, err := session.FinishAttempt(attempt); err == nil {
		s.logger.Info("quiz time expired", "user_id", userID)
	}
}
