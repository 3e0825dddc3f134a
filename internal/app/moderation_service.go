package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/moderation"
)

// ModerationEvent is published on every moderation transition.
type ModerationEvent struct {
	QuizID    string                  `json:"quizId"`
	Title     string                  `json:"title"`
	Category  string                  `json:"category"`
	CreatedBy string                  `json:"createdBy"`
	Status    domain.ModerationStatus `json:"status"`
	Actor     string                  `json:"actor"`
	Reason    string                  `json:"reason,omitempty"`
	At        time.Time               `json:"at"`
}

// ModerationService handles community submissions and admin review.
type ModerationService struct {
	store    ModerationStore
	profiles ProfileStore
	deps
}

func NewModerationService(store ModerationStore, profiles ProfileStore, opts ...Option) *ModerationService {
	return &ModerationService{store: store, profiles: profiles, deps: newDeps(opts)}
}

// Submit validates a definition and stores it as pending.
func (s *ModerationService) Submit(ctx context.Context, author string, def domain.QuizDefinition) (domain.CommunityQuiz, error) {
	now := s.now().UTC()
	quiz, err := moderation.Submit(def, author, now)
	if err != nil {
		return domain.CommunityQuiz{}, err
	}
	id, err := s.store.Create(ctx, quiz)
	if err != nil {
		s.metrics.PersistenceFailure("create_quiz")
		return domain.CommunityQuiz{}, domain.PersistenceError("create quiz", err)
	}
	quiz.ID = id

	s.metrics.ModerationTransition(domain.StatusPending)
	s.emit(ctx, EventQuizSubmitted, quiz, author, "", now)
	return quiz, nil
}

// Approve makes a pending quiz playable.
func (s *ModerationService) Approve(ctx context.Context, actor, quizID string) (domain.CommunityQuiz, error) {
	return s.transition(ctx, actor, quizID, EventQuizApproved, "", func(rec domain.ModerationRecord, at time.Time) (domain.ModerationRecord, error) {
		return moderation.Approve(rec, actor, at)
	})
}

// Reject closes a pending quiz with a reason.
func (s *ModerationService) Reject(ctx context.Context, actor, quizID, reason string) (domain.CommunityQuiz, error) {
	return s.transition(ctx, actor, quizID, EventQuizRejected, reason, func(rec domain.ModerationRecord, at time.Time) (domain.ModerationRecord, error) {
		return moderation.Reject(rec, actor, reason, at)
	})
}

// Delete retires an approved quiz with a reason.
func (s *ModerationService) Delete(ctx context.Context, actor, quizID, reason string) (domain.CommunityQuiz, error) {
	return s.transition(ctx, actor, quizID, EventQuizDeleted, reason, func(rec domain.ModerationRecord, at time.Time) (domain.ModerationRecord, error) {
		return moderation.Delete(rec, actor, reason, at)
	})
}

// List returns quizzes in a moderation status, or all of them for an empty status. Admins only.
func (s *ModerationService) List(ctx context.Context, actor string, status domain.ModerationStatus) ([]domain.CommunityQuiz, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	quizzes, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, domain.PersistenceError("list quizzes", err)
	}
	return quizzes, nil
}

// History lists every quiz that has left the pending queue. Admins only.
func (s *ModerationService) History(ctx context.Context, actor string) ([]domain.CommunityQuiz, error) {
	all, err := s.List(ctx, actor, "")
	if err != nil {
		return nil, err
	}
	reviewed := make([]domain.CommunityQuiz, 0, len(all))
	for _, q := range all {
		if q.Moderation.Status != domain.StatusPending {
			reviewed = append(reviewed, q)
		}
	}
	return reviewed, nil
}

// Mine lists the quizzes a user submitted. An empty status matches everything.
func (s *ModerationService) Mine(ctx context.Context, userID string, status domain.ModerationStatus) ([]domain.CommunityQuiz, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Validationf("user id is required")
	}
	quizzes, err := s.store.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, domain.PersistenceError("list own quizzes", err)
	}
	if status == "" {
		return quizzes, nil
	}
	filtered := make([]domain.CommunityQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Moderation.Status == status {
			filtered = append(filtered, q)
		}
	}
	return filtered, nil
}

// IsAdmin reports whether userID may moderate.
func (s *ModerationService) IsAdmin(ctx context.Context, userID string) bool {
	return s.authorize(ctx, userID) == nil
}

type transitionFunc func(domain.ModerationRecord, time.Time) (domain.ModerationRecord, error)

func (s *ModerationService) transition(ctx context.Context, actor, quizID, event, reason string, apply transitionFunc) (domain.CommunityQuiz, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return domain.CommunityQuiz{}, err
	}
	quiz, err := s.store.GetByID(ctx, quizID)
	if err != nil {
		return domain.CommunityQuiz{}, domain.PersistenceError("load quiz", err)
	}

	now := s.now().UTC()
	from := quiz.Moderation.Status
	rec, err := apply(quiz.Moderation, now)
	if err != nil {
		return domain.CommunityQuiz{}, err
	}
	if err := s.store.UpdateModeration(ctx, quizID, from, rec); err != nil {
		if !errors.Is(err, domain.ErrInvalidState) && !errors.Is(err, domain.ErrNotFound) {
			s.metrics.PersistenceFailure("update_moderation")
		}
		return domain.CommunityQuiz{}, domain.PersistenceError("update moderation", err)
	}
	quiz.Moderation = rec

	s.metrics.ModerationTransition(rec.Status)
	s.emit(ctx, event, quiz, actor, strings.TrimSpace(reason), now)
	s.logger.Info("quiz moderated",
		"quiz_id", quizID,
		"from", from,
		"to", rec.Status,
		"actor", actor,
	)
	return quiz, nil
}

func (s *ModerationService) authorize(ctx context.Context, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.Validationf("actor is required")
	}
	if _, ok := s.admins[actor]; ok {
		return nil
	}
	profile, err := s.profiles.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return forbidden(actor)
		}
		return domain.PersistenceError("load profile", err)
	}
	if !profile.IsAdmin {
		return forbidden(actor)
	}
	return nil
}

func forbidden(actor string) error {
	return domain.Forbiddenf("user %s is not an admin", actor)
}

func (s *ModerationService) emit(ctx context.Context, event string, quiz domain.CommunityQuiz, actor, reason string, at time.Time) {
	payload := ModerationEvent{
		QuizID:    quiz.ID,
		Title:     quiz.Definition.Title,
		Category:  quiz.Definition.Category,
		CreatedBy: quiz.CreatedBy,
		Status:    quiz.Moderation.Status,
		Actor:     actor,
		Reason:    reason,
		At:        at,
	}
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("publish failed", "event", event, "quiz_id", quiz.ID, "error", err)
	}
}
