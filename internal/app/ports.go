package app

import (
	"context"
	"time"

	"skillquiz-service/internal/domain"
)

// SessionRepository abstracts where active attempts live (in-memory, Redis-marked, etc).
// There is at most one session per user.
type SessionRepository interface {
	GetOrCreate(userID string) *Session
	Get(userID string) (*Session, bool)
	// Release drops the user's session only while Session.Idle holds, checked
	// under the same lock GetOrCreate takes.
	Release(userID string) bool
}

// SessionPresence is implemented by repositories that can tell whether a
// user holds a session on any instance.
type SessionPresence interface {
	Live(ctx context.Context, userID string) (bool, error)
}

// QuestionCatalog supplies built-in questions.
type QuestionCatalog interface {
	Fetch(ctx context.Context, category string, difficulty domain.Difficulty, limit int) ([]domain.Question, error)
	Categories() []domain.Category
}

// QuizDefinitionStore reads community quiz definitions.
type QuizDefinitionStore interface {
	GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error)
	// ListApprovedByCategory returns only quizzes that are approved and active.
	ListApprovedByCategory(ctx context.Context, category string) ([]domain.CommunityQuiz, error)
}

// ModerationStore persists community quizzes and their moderation state.
type ModerationStore interface {
	Create(ctx context.Context, quiz domain.CommunityQuiz) (string, error)
	GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error)
	// ListByStatus returns newest first; an empty status matches everything.
	ListByStatus(ctx context.Context, status domain.ModerationStatus) ([]domain.CommunityQuiz, error)
	ListByAuthor(ctx context.Context, userID string) ([]domain.CommunityQuiz, error)
	// UpdateModeration replaces the record only while the stored status still equals from;
	// otherwise it fails with domain.ErrInvalidState.
	UpdateModeration(ctx context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error
}

// CommunityQuizStore is what storage backends implement for community quizzes.
type CommunityQuizStore interface {
	QuizDefinitionStore
	ModerationStore
}

// ResultStore keeps completed quiz results.
type ResultStore interface {
	Append(ctx context.Context, userID string, rec domain.ResultRecord) (string, error)
	// ListByUser returns newest first; limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.ResultRecord, error)
}

// ProfileStore keeps per-user stats.
type ProfileStore interface {
	Create(ctx context.Context, profile domain.Profile) error
	Get(ctx context.Context, userID string) (domain.Profile, error)
	// ApplyQuizCompletion increments totals and appends the summary in one
	// atomic update, creating the profile when it does not exist.
	ApplyQuizCompletion(ctx context.Context, userID string, delta domain.ProfileDelta) error
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Publisher emits domain events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Scheduler runs fn every interval under key until cancelled. Scheduling an
// existing key replaces its job. Cancelling removes only the job under key.
type Scheduler interface {
	Schedule(key string, every time.Duration, fn func()) error
	Cancel(key string)
}

// Event types published by the services.
const (
	EventQuizCompleted = "quiz.completed"
	EventQuizSubmitted = "quiz.submitted"
	EventQuizApproved  = "quiz.approved"
	EventQuizRejected  = "quiz.rejected"
	EventQuizDeleted   = "quiz.deleted"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

// Metrics records service-level counters.
type Metrics interface {
	SessionStarted(source string)
	SessionCompleted(source string, percentage int)
	ModerationTransition(status domain.ModerationStatus)
	PersistenceFailure(op string)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(string)                        {}
func (nopMetrics) SessionCompleted(string, int)                 {}
func (nopMetrics) ModerationTransition(domain.ModerationStatus) {}
func (nopMetrics) PersistenceFailure(string)                    {}
