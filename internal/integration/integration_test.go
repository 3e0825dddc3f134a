package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/catalog"
	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/infra/memory"
	mongostore "skillquiz-service/internal/infra/mongo"
	"skillquiz-service/internal/infra/postgres"
	infraredis "skillquiz-service/internal/infra/redis"
)

type backend struct {
	community app.CommunityQuizStore
	results   app.ResultStore
	profiles  app.ProfileStore
	sessions  app.SessionRepository
}

func TestPostgresWithRedisEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applied, err := postgres.Migrate(ctx, pgURL)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) != 3 {
		t.Fatalf("expected 3 migrations, got %v", applied)
	}
	if again, err := postgres.Migrate(ctx, pgURL); err != nil || len(again) != 0 {
		t.Fatalf("second migrate should be a no-op, got %v, %v", again, err)
	}

	pool, err := postgres.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	exercise(t, ctx, backend{
		community: infraredis.NewQuizRepository(redisClient, postgres.NewCommunityStore(pool), 5*time.Minute),
		results:   postgres.NewResultStore(pool),
		profiles:  postgres.NewProfileStore(pool),
		sessions:  infraredis.NewSessionStore(redisClient, 5*time.Minute),
	})
}

func TestMongoEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	uri, cleanup := startMongo(t, ctx)
	defer cleanup()

	client, db, err := mongostore.Connect(ctx, uri, "skillquiz_test")
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer client.Disconnect(ctx)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	exercise(t, ctx, backend{
		community: mongostore.NewCommunityStore(db),
		results:   mongostore.NewResultStore(db),
		profiles:  mongostore.NewProfileStore(db),
	})
}

// exercise runs submission, moderation, community play and completion against real stores.
func exercise(t *testing.T, ctx context.Context, b backend) {
	t.Helper()
	cat, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	sessions := b.sessions
	if sessions == nil {
		sessions = memory.NewSessionStore()
	}

	opts := []app.Option{app.WithAdmins("admin-1")}
	provider := app.NewQuestionProvider(cat, b.community, catalog.NewShuffler(11))
	results := app.NewResultService(b.results, b.profiles, opts...)
	profiles := app.NewProfileService(b.profiles, opts...)
	moderation := app.NewModerationService(b.community, b.profiles, opts...)
	quizzes := app.NewQuizService(sessions, provider, results, app.QuizServiceConfig{}, opts...)

	if _, err := profiles.Ensure(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if _, err := profiles.Ensure(ctx, "u1", "Alice again"); err != nil {
		t.Fatalf("ensure existing profile: %v", err)
	}

	quiz, err := moderation.Submit(ctx, "author-1", sampleDefinition())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := quizzes.StartCommunity(ctx, "u1", quiz.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pending quiz should not be playable, got %v", err)
	}
	if _, err := moderation.Approve(ctx, "admin-1", quiz.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := moderation.Approve(ctx, "admin-1", quiz.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second approve should be invalid, got %v", err)
	}

	listed, err := provider.CommunityQuizzes(ctx, "Go")
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one playable quiz, got %d, %v", len(listed), err)
	}

	snap, err := quizzes.StartCommunity(ctx, "u1", quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.TimeRemainingSeconds != 120 || len(snap.Questions) != 2 {
		t.Fatalf("unexpected start snapshot %+v", snap)
	}
	for i := range snap.Questions {
		q, _ := quizzes.Snapshot(ctx, "u1").CurrentQuestion()
		if _, err := quizzes.Answer(ctx, "u1", q.CorrectAnswer); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if _, err := quizzes.Next(ctx, "u1"); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}

	outcome, err := quizzes.Complete(ctx, "u1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if outcome.Result.Percentage != 100 || !outcome.Result.IsCustomQuiz || outcome.Result.QuizID != quiz.ID {
		t.Fatalf("unexpected result %+v", outcome.Result)
	}
	if outcome.TotalExperience != 20 {
		t.Fatalf("expected 20 xp, got %d", outcome.TotalExperience)
	}

	view, err := profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if view.Username != "Alice" || view.TotalScore != 2 || view.QuizzesTaken != 1 || len(view.Scores) != 1 || view.LastQuizAt == nil {
		t.Fatalf("unexpected profile %+v", view)
	}

	history, err := results.History(ctx, "u1", 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one result, got %d, %v", len(history), err)
	}

	// A completion for a user without a profile creates one.
	if err := b.profiles.ApplyQuizCompletion(ctx, "u2", domain.ProfileDelta{
		ScoreDelta:      5,
		ExperienceDelta: 50,
		Summary:         domain.ScoreSummary{Score: 5, TotalQuestions: 5, Percentage: 100, Category: "dsa", Date: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	board, err := profiles.Leaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].UserID != "u2" || board[1].UserID != "u1" {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	if _, err := moderation.Delete(ctx, "admin-1", quiz.ID, "superseded"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := quizzes.StartCommunity(ctx, "u1", quiz.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted quiz should not be playable, got %v", err)
	}
	mine, err := moderation.Mine(ctx, "author-1", domain.StatusDeleted)
	if err != nil || len(mine) != 1 || mine[0].Moderation.DeletionReason != "superseded" {
		t.Fatalf("unexpected own quizzes %+v, %v", mine, err)
	}
}

func sampleDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		Title:            "Go concurrency",
		Category:         "Go",
		TimeLimitMinutes: 2,
		Questions: []domain.Question{
			{Text: "Which keyword starts a goroutine?", Options: []string{"go", "async", "spawn"}, CorrectAnswer: "go"},
			{Text: "Unbuffered channels block the sender", Options: []string{"True", "False"}, CorrectAnswer: "True"},
		},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	container := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	addr := endpoint(t, ctx, container, "5432/tcp")
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s/quizdb?sslmode=disable", addr)
	return dsn, func() { _ = container.Terminate(ctx) }
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	container := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	})
	addr := endpoint(t, ctx, container, "6379/tcp")
	return "redis://" + addr, func() { _ = container.Terminate(ctx) }
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	container := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	})
	addr := endpoint(t, ctx, container, "27017/tcp")
	return "mongodb://" + addr, func() { _ = container.Terminate(ctx) }
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest) tc.Container {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	return container
}

// endpoint returns host:port for an exposed container port.
func endpoint(t *testing.T, ctx context.Context, container tc.Container, port string) string {
	t.Helper()
	addr, err := container.PortEndpoint(ctx, nat.Port(port), "")
	if err != nil {
		t.Fatalf("endpoint %s: %v", port, err)
	}
	return addr
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests skipped in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
