package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/catalog"
	"skillquiz-service/internal/config"
	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/infra/memory"
	"skillquiz-service/internal/scoring"
	"skillquiz-service/internal/timer"
)

const localUser = "local"

var (
	errColor     = color.New(color.FgRed)
	promptColor  = color.New(color.FgYellow)
	correctColor = color.New(color.FgGreen)
)

// NewPlayCmd runs a quiz in the terminal against in-memory stores.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		category   string
		difficulty string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a built-in quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), category, d, limit)
		},
	}
	cmd.Flags().StringVar(&category, "category", "javascript", "category to play")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium or hard (default any)")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of questions (default from config)")
	return cmd
}

func runPlay(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer, category string, difficulty domain.Difficulty, limit int) error {
	cat, err := catalog.Builtin()
	if err != nil {
		return err
	}
	countdown := timer.NewCountdown()
	defer countdown.Stop()

	profiles := memory.NewProfileStore()
	provider := app.NewQuestionProvider(cat, memory.NewCommunityStore(), catalog.NewShuffler(time.Now().UnixNano()))
	results := app.NewResultService(memory.NewResultStore(), profiles)
	quizzes := app.NewQuizService(
		memory.NewSessionStore(app.WithRequireAnswer(cfg.Quiz.RequireAnswer)),
		provider, results,
		app.QuizServiceConfig{
			TimeLimit:     config.Duration(cfg.Quiz.TimeLimit, 600*time.Second),
			QuestionLimit: cfg.Quiz.QuestionLimit,
			TickInterval:  config.Duration(cfg.Quiz.TickInterval, time.Second),
		},
		app.WithScheduler(countdown),
	)

	snap, err := quizzes.StartCategory(ctx, localUser, category, difficulty, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d questions, %ds\n", snap.Category, len(snap.Questions), snap.TimeRemainingSeconds)
	fmt.Fprintln(out, "Answer with an option number, n = next, p = previous, f = finish.")

	scanner := bufio.NewScanner(in)
	for !snap.Finished {
		printQuestion(out, snap)
		promptColor.Fprint(out, "> ")
		if !scanner.Scan() {
			if _, err := quizzes.Finish(ctx, localUser); err != nil {
				return err
			}
			break
		}
		if err := playCommand(ctx, quizzes, snap, strings.TrimSpace(scanner.Text())); err != nil {
			errColor.Fprintln(out, err)
		}
		snap = quizzes.Snapshot(ctx, localUser)
	}

	outcome, err := quizzes.Complete(ctx, localUser)
	if err != nil {
		return err
	}
	printOutcome(out, outcome)
	return nil
}

func playCommand(ctx context.Context, quizzes *app.QuizService, snap app.Snapshot, input string) error {
	var err error
	switch strings.ToLower(input) {
	case "n":
		_, err = quizzes.Next(ctx, localUser)
	case "p":
		_, err = quizzes.Previous(ctx, localUser)
	case "f":
		_, err = quizzes.Finish(ctx, localUser)
	default:
		q, ok := snap.CurrentQuestion()
		if !ok {
			return domain.InvalidStatef("no current question")
		}
		n, convErr := strconv.Atoi(input)
		if convErr != nil || n < 1 || n > len(q.Options) {
			return domain.Validationf("enter a number between 1 and %d", len(q.Options))
		}
		_, err = quizzes.Answer(ctx, localUser, q.Options[n-1])
	}
	return err
}

func printQuestion(out io.Writer, snap app.Snapshot) {
	q, ok := snap.CurrentQuestion()
	if !ok {
		return
	}
	timeColor := correctColor
	switch snap.TimerLevel {
	case app.TimerWarning:
		timeColor = promptColor
	case app.TimerCritical:
		timeColor = errColor
	}
	fmt.Fprintf(out, "\n[%d/%d] %s  %s\n", snap.CurrentIndex+1, len(snap.Questions), q.Text,
		timeColor.Sprintf("%ds left", snap.TimeRemainingSeconds))

	selected, answered := snap.AnswerFor(snap.CurrentIndex)
	for i, opt := range q.Options {
		marker := " "
		if answered && selected.Answer == opt {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %d) %s\n", marker, i+1, opt)
	}
}

func printOutcome(out io.Writer, o app.Outcome) {
	band := correctColor
	switch o.Summary.Band {
	case scoring.BandPractice:
		band = errColor
	case scoring.BandAdequate:
		band = promptColor
	}
	fmt.Fprintf(out, "\nScore: %d/%d (%d%%)\n", o.Result.Score, o.Result.TotalQuestions, o.Result.Percentage)
	band.Fprintln(out, o.Summary.Message)
	fmt.Fprintf(out, "+%d XP, level %d\n", o.ExperienceGained, o.Level)
}
