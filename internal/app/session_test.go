package app_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/domain"
)

func fiveQuestions() []domain.Question {
	qs := make([]domain.Question, 5)
	for i := range qs {
		qs[i] = domain.Question{
			ID:            string(rune('a' + i)),
			Text:          "question",
			Options:       []string{"right", "wrong", "other"},
			CorrectAnswer: "right",
		}
	}
	return qs
}

func startedSession(t *testing.T, opts ...app.SessionOption) *app.Session {
	t.Helper()
	s := app.NewSession("u1", opts...)
	if _, err := s.Start(app.StartParams{Category: "javascript", Questions: fiveQuestions(), TimeLimitSeconds: 600}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

// snapOK returns a helper that unwraps a transition result, failing the test on error.
func snapOK(t *testing.T) func(app.Snapshot, error) app.Snapshot {
	return func(snap app.Snapshot, err error) app.Snapshot {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return snap
	}
}

func TestSessionCompletesAfterLastNext(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)

	picks := []string{"right", "right", "wrong", "right", "other"}
	for i, pick := range picks {
		snap := must(s.Answer(pick))
		if snap.CurrentIndex != i {
			t.Fatalf("answer %d moved the cursor to %d", i, snap.CurrentIndex)
		}
		snap = must(s.Next())
		if i < len(picks)-1 && (snap.State != app.StateInProgress || snap.CurrentIndex != i+1) {
			t.Fatalf("after next %d: state %s index %d", i, snap.State, snap.CurrentIndex)
		}
	}

	snap := s.Snapshot()
	if snap.State != app.StateFinished || !snap.Finished {
		t.Fatalf("expected finished, got %s", snap.State)
	}
	if snap.CurrentIndex != 4 {
		t.Fatalf("last next finishes without advancing, index %d", snap.CurrentIndex)
	}
	if snap.Score != 3 || len(snap.Answers) != 5 {
		t.Fatalf("expected score 3 over 5 answers, got %d over %d", snap.Score, len(snap.Answers))
	}
}

func TestSessionFinishEarlyKeepsUnansweredQuestions(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)

	must(s.Answer("right"))
	must(s.Next())
	must(s.Answer("wrong"))

	snap := must(s.Finish())
	if snap.State != app.StateFinished || snap.Score != 1 {
		t.Fatalf("unexpected finish snapshot %+v", snap)
	}
	if len(snap.Answers) != 2 || len(snap.Questions) != 5 {
		t.Fatalf("expected 2 answers over 5 questions, got %d over %d", len(snap.Answers), len(snap.Questions))
	}
}

func TestReanswerReplacesEntry(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)

	must(s.Answer("right"))
	snap := must(s.Answer("right"))
	if snap.Score != 1 || len(snap.Answers) != 1 {
		t.Fatalf("repeating an answer must not double count: score %d, %d entries", snap.Score, len(snap.Answers))
	}

	snap = must(s.Answer("wrong"))
	if snap.Score != 0 || len(snap.Answers) != 1 {
		t.Fatalf("expected the entry replaced, got score %d, %d entries", snap.Score, len(snap.Answers))
	}
	if snap.Answers[0].Answer != "wrong" || snap.Answers[0].IsCorrect {
		t.Fatalf("unexpected entry %+v", snap.Answers[0])
	}
}

func TestScoreMatchesCorrectAnswers(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	moves := []func() (app.Snapshot, error){
		func() (app.Snapshot, error) { return s.Answer("right") },
		s.Next,
		func() (app.Snapshot, error) { return s.Answer("right") },
		s.Previous,
		func() (app.Snapshot, error) { return s.Answer("wrong") },
		s.Next,
		func() (app.Snapshot, error) { return s.Answer("other") },
		s.Next,
		func() (app.Snapshot, error) { return s.Answer("right") },
		s.Previous,
		s.Previous,
		func() (app.Snapshot, error) { return s.Answer("right") },
	}
	for i, move := range moves {
		snap := must(move())

		correct := 0
		seen := map[int]bool{}
		for _, a := range snap.Answers {
			if seen[a.QuestionIndex] {
				t.Fatalf("move %d: duplicate entry for %d", i, a.QuestionIndex)
			}
			seen[a.QuestionIndex] = true
			if a.IsCorrect {
				correct++
			}
		}
		if correct != snap.Score {
			t.Fatalf("move %d: score %d, correct entries %d", i, snap.Score, correct)
		}
	}
}

func TestPreviousIsFlooredAtZero(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	if snap := must(s.Previous()); snap.CurrentIndex != 0 {
		t.Fatalf("expected index 0, got %d", snap.CurrentIndex)
	}
}

func TestOperationsRequireInProgress(t *testing.T) {
	must := snapOK(t)
	s := app.NewSession("u1")

	fresh := map[string]func() error{
		"answer":   func() error { _, err := s.Answer("right"); return err },
		"next":     func() error { _, err := s.Next(); return err },
		"previous": func() error { _, err := s.Previous(); return err },
		"tick":     func() error { _, err := s.Tick(1); return err },
		"finish":   func() error { _, err := s.Finish(); return err },
	}
	for name, op := range fresh {
		if err := op(); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("%s before start: expected invalid state, got %v", name, err)
		}
	}

	s = startedSession(t)
	must(s.Finish())
	if _, err := s.Answer("right"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("answer after finish: expected invalid state, got %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("next after finish: expected invalid state, got %v", err)
	}
	if snap := must(s.Finish()); snap.State != app.StateFinished {
		t.Fatalf("finishing twice is a no-op, got %s", snap.State)
	}
}

func TestAnswerRejectsUnknownOption(t *testing.T) {
	s := startedSession(t)
	if _, err := s.Answer("maybe"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := len(s.Snapshot().Answers); n != 0 {
		t.Fatalf("rejected answer was recorded: %d entries", n)
	}
}

func TestStartValidatesParams(t *testing.T) {
	s := app.NewSession("u1")
	if _, err := s.Start(app.StartParams{Category: "react", TimeLimitSeconds: 60}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without questions, got %v", err)
	}
	if _, err := s.Start(app.StartParams{Category: "react", Questions: fiveQuestions()}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without time limit, got %v", err)
	}
	if s.Snapshot().State != app.StateNotStarted {
		t.Fatalf("failed start must leave the session untouched")
	}
}

func TestStartReplacesPriorAttempt(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	must(s.Answer("right"))
	first := s.Snapshot().Attempt

	snap := must(s.Start(app.StartParams{Category: "react", Questions: fiveQuestions()[:2], TimeLimitSeconds: 120, QuizID: "community-1", IsCustomQuiz: true}))
	if snap.Category != "react" || snap.Score != 0 || len(snap.Answers) != 0 || len(snap.Questions) != 2 {
		t.Fatalf("expected a clean attempt, got %+v", snap)
	}
	if !snap.IsCustomQuiz || snap.TimeRemainingSeconds != 120 {
		t.Fatalf("expected custom quiz with 120s, got %+v", snap)
	}
	if snap.Attempt <= first {
		t.Fatalf("expected attempt to advance past %d, got %d", first, snap.Attempt)
	}
}

func TestTickAndTimeRemaining(t *testing.T) {
	s := startedSession(t)

	steps := []struct {
		name  string
		run   func() (int, error)
		want  int
		level app.TimerLevel
	}{
		{"tick 30", func() (int, error) { return s.Tick(30) }, 570, app.TimerNormal},
		{"increase ignored", func() (int, error) { return s.SetTimeRemaining(900) }, 570, app.TimerNormal},
		{"lower to 55", func() (int, error) { return s.SetTimeRemaining(55) }, 55, app.TimerWarning},
		{"tick 50", func() (int, error) { return s.Tick(50) }, 5, app.TimerCritical},
		{"floored at zero", func() (int, error) { return s.Tick(10) }, 0, app.TimerCritical},
	}
	for _, step := range steps {
		left, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if left != step.want {
			t.Fatalf("%s: expected %d left, got %d", step.name, step.want, left)
		}
		if level := s.Snapshot().TimerLevel; level != step.level {
			t.Fatalf("%s: expected %s level, got %s", step.name, step.level, level)
		}
	}
	if s.Snapshot().State != app.StateInProgress {
		t.Fatalf("expiry alone does not finish")
	}
	if _, err := s.Tick(-1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for negative tick, got %v", err)
	}
}

func TestTickAttemptIgnoresStaleTimers(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	stale := s.Snapshot().Attempt
	must(s.Start(app.StartParams{Category: "dsa", Questions: fiveQuestions(), TimeLimitSeconds: 100}))

	if _, err := s.TickAttempt(stale, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := s.FinishAttempt(stale); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected stale finish refused, got %v", err)
	}
	snap := s.Snapshot()
	if snap.TimeRemainingSeconds != 100 || snap.State != app.StateInProgress {
		t.Fatalf("stale timer touched the new attempt: %+v", snap)
	}
}

func TestRequireAnswerBlocksNext(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t, app.WithRequireAnswer(true))
	if _, err := s.Next(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	must(s.Answer("wrong"))
	if snap := must(s.Next()); snap.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", snap.CurrentIndex)
	}
}

func TestResetClearsEverything(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	must(s.Answer("right"))

	snap := s.Reset()
	if snap.State != app.StateNotStarted || snap.Started {
		t.Fatalf("expected not started, got %s", snap.State)
	}
	if len(snap.Questions) != 0 || len(snap.Answers) != 0 || snap.Score != 0 || snap.TimeRemainingSeconds != 0 {
		t.Fatalf("expected empty session, got %+v", snap)
	}
	if !snap.StartedAt.IsZero() {
		t.Fatalf("expected zero start time, got %s", snap.StartedAt)
	}
}

func TestResetAttemptLeavesNewerAttemptAlone(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	must(s.Finish())
	done := s.Snapshot().Attempt

	must(s.Start(app.StartParams{Category: "dsa", Questions: fiveQuestions(), TimeLimitSeconds: 60}))
	if _, ok := s.ResetAttempt(done); ok {
		t.Fatalf("reset of a replaced attempt must be refused")
	}
	if snap := s.Snapshot(); snap.State != app.StateInProgress || snap.Category != "dsa" {
		t.Fatalf("newer attempt was wiped: %+v", snap)
	}

	current := s.Snapshot().Attempt
	snap, ok := s.ResetAttempt(current)
	if !ok || snap.State != app.StateNotStarted {
		t.Fatalf("expected current attempt reset, got %v %+v", ok, snap)
	}
}

func TestClaimCompletionIsExclusive(t *testing.T) {
	must := snapOK(t)
	s := startedSession(t)
	if _, err := s.ClaimCompletion(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("running attempt cannot be claimed, got %v", err)
	}
	must(s.Finish())

	claimed := must(s.ClaimCompletion())
	if _, err := s.ClaimCompletion(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second claim must fail, got %v", err)
	}

	s.ReleaseCompletion(claimed.Attempt)
	if _, err := s.ClaimCompletion(); err != nil {
		t.Fatalf("released attempt should be claimable again: %v", err)
	}
}

func TestIdleNeedsNoWatchersAndNoRunningAttempt(t *testing.T) {
	must := snapOK(t)
	s := app.NewSession("u1")
	if !s.Idle() {
		t.Fatalf("fresh session should be idle")
	}

	_, cancel := s.Subscribe()
	if s.Idle() {
		t.Fatalf("watched session is not idle")
	}
	cancel()

	must(s.Start(app.StartParams{Category: "dsa", Questions: fiveQuestions(), TimeLimitSeconds: 60}))
	if s.Idle() {
		t.Fatalf("running attempt is not idle")
	}
	must(s.Finish())
	if !s.Idle() {
		t.Fatalf("finished unwatched session should be idle")
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	must := snapOK(t)
	now := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	s := app.NewSession("u1", app.WithClock(func() time.Time { return now }))

	ch, cancel := s.Subscribe()
	defer cancel()

	if initial := <-ch; initial.State != app.StateNotStarted {
		t.Fatalf("expected initial not started snapshot, got %s", initial.State)
	}

	must(s.Start(app.StartParams{Category: "react", Questions: fiveQuestions(), TimeLimitSeconds: 60}))

	update := <-ch
	if update.State != app.StateInProgress || !update.StartedAt.Equal(now) || update.TimerLevel != app.TimerWarning {
		t.Fatalf("unexpected update %+v", update)
	}
}

func TestSubscriberNeverBlocksTransitions(t *testing.T) {
	s := startedSession(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 50; i++ {
		if _, err := s.Tick(1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	var last app.Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	if last.TimeRemainingSeconds != 550 {
		t.Fatalf("expected latest snapshot at 550s, got %d", last.TimeRemainingSeconds)
	}
}

func TestSubscribeDuringTicksEndsOnLatestState(t *testing.T) {
	for round := 0; round < 20; round++ {
		s := startedSession(t)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = s.Tick(1)
			}
		}()

		ch, cancel := s.Subscribe()
		wg.Wait()

		prev := -1
		var last app.Snapshot
		for len(ch) > 0 {
			last = <-ch
			if prev >= 0 && last.TimeRemainingSeconds > prev {
				t.Fatalf("round %d: older snapshot %ds arrived after %ds", round, last.TimeRemainingSeconds, prev)
			}
			prev = last.TimeRemainingSeconds
		}
		cancel()
		if last.TimeRemainingSeconds != 400 {
			t.Fatalf("round %d: subscriber ended on %ds, session is at 400s", round, last.TimeRemainingSeconds)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := startedSession(t)
	snap := s.Snapshot()
	snap.Questions[0].Text = "mutated"

	q, ok := s.Snapshot().CurrentQuestion()
	if !ok || q.Text != "question" {
		t.Fatalf("snapshot mutation leaked into the session: %+v", q)
	}
}
