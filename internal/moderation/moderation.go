// Package moderation implements the lifecycle of community-submitted quizzes:
//
//	pending -> approved -> deleted
//	pending -> rejected
//
// Rejected and deleted are terminal. Only approved quizzes are playable.
package moderation

import (
	"strconv"
	"strings"
	"time"

	"skillquiz-service/internal/domain"
)

// DefaultTimeLimitMinutes applies when a submission carries no time limit.
const DefaultTimeLimitMinutes = 10

var trueFalseOptions = []string{"True", "False"}

// Submit validates a definition and wraps it in a pending community quiz.
func Submit(def domain.QuizDefinition, author string, now time.Time) (domain.CommunityQuiz, error) {
	if strings.TrimSpace(author) == "" {
		return domain.CommunityQuiz{}, domain.Validationf("submitter is required")
	}
	normalized, err := Normalize(def)
	if err != nil {
		return domain.CommunityQuiz{}, err
	}
	return domain.CommunityQuiz{
		CreatedBy:  author,
		CreatedAt:  now,
		Definition: normalized,
		Moderation: domain.ModerationRecord{Status: domain.StatusPending, IsActive: false},
	}, nil
}

// Normalize applies submission defaults and checks definition invariants.
func Normalize(def domain.QuizDefinition) (domain.QuizDefinition, error) {
	def.Title = strings.TrimSpace(def.Title)
	def.Description = strings.TrimSpace(def.Description)
	def.Category = strings.ToLower(strings.TrimSpace(def.Category))

	if def.Title == "" {
		return def, domain.Validationf("quiz title is required")
	}
	if def.Category == "" {
		return def, domain.Validationf("quiz category is required")
	}
	if len(def.Questions) == 0 {
		return def, domain.Validationf("quiz needs at least one question")
	}
	if def.TimeLimitMinutes < 0 {
		return def, domain.Validationf("time limit must be positive, got %d", def.TimeLimitMinutes)
	}
	if def.TimeLimitMinutes == 0 {
		def.TimeLimitMinutes = DefaultTimeLimitMinutes
	}
	switch def.Difficulty {
	case "":
		def.Difficulty = domain.DifficultyMixed
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyMixed:
	default:
		return def, domain.Validationf("unknown quiz difficulty %q", def.Difficulty)
	}
	def.Tags = normalizeTags(def.Tags)

	questions := make([]domain.Question, len(def.Questions))
	for i, q := range def.Questions {
		nq, err := normalizeQuestion(q, i, def.Difficulty)
		if err != nil {
			return def, err
		}
		questions[i] = nq
	}
	def.Questions = questions
	return def, nil
}

func normalizeQuestion(q domain.Question, i int, quizDifficulty domain.Difficulty) (domain.Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, domain.Validationf("question %d has no text", i+1)
	}
	if isTrueFalse(q) {
		q.Options = append([]string(nil), trueFalseOptions...)
	}
	if len(q.Options) < 2 {
		return q, domain.Validationf("question %d needs at least two options", i+1)
	}
	options := make([]string, len(q.Options))
	for j, opt := range q.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return q, domain.Validationf("question %d option %d is blank", i+1, j+1)
		}
		options[j] = opt
	}
	q.Options = options
	if dup, ok := q.DuplicateOption(); ok {
		return q, domain.Validationf("question %d lists option %q more than once", i+1, dup)
	}
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	if q.CorrectAnswer == "" {
		return q, domain.Validationf("question %d has no correct answer", i+1)
	}
	if !q.HasOption(q.CorrectAnswer) {
		return q, domain.Validationf("question %d correct answer %q is not an option", i+1, q.CorrectAnswer)
	}
	if q.Difficulty == "" && quizDifficulty != domain.DifficultyMixed {
		q.Difficulty = quizDifficulty
	}
	if q.ID == "" {
		q.ID = "q" + strconv.Itoa(i+1)
	}
	q.Tags = normalizeTags(q.Tags)
	return q, nil
}

// A question submitted without options whose answer is True or False is a true/false question.
func isTrueFalse(q domain.Question) bool {
	if len(q.Options) != 0 {
		return false
	}
	answer := strings.TrimSpace(q.CorrectAnswer)
	return answer == trueFalseOptions[0] || answer == trueFalseOptions[1]
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Approve moves a pending record to approved and makes it playable.
func Approve(rec domain.ModerationRecord, actor string, at time.Time) (domain.ModerationRecord, error) {
	if err := requireActor(actor); err != nil {
		return rec, err
	}
	if rec.Status != domain.StatusPending {
		return rec, domain.InvalidStatef("approve: quiz is %s, not pending", rec.Status)
	}
	rec.Status = domain.StatusApproved
	rec.IsActive = true
	rec.ApprovedBy = actor
	rec.ApprovedAt = &at
	return rec, nil
}

// Reject moves a pending record to rejected. A reason is mandatory.
func Reject(rec domain.ModerationRecord, actor, reason string, at time.Time) (domain.ModerationRecord, error) {
	if err := requireActor(actor); err != nil {
		return rec, err
	}
	if rec.Status != domain.StatusPending {
		return rec, domain.InvalidStatef("reject: quiz is %s, not pending", rec.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return rec, domain.Validationf("a rejection reason is required")
	}
	rec.Status = domain.StatusRejected
	rec.IsActive = false
	rec.RejectedBy = actor
	rec.RejectedAt = &at
	rec.RejectionReason = reason
	return rec, nil
}

// Delete retires an approved record. A reason is mandatory.
func Delete(rec domain.ModerationRecord, actor, reason string, at time.Time) (domain.ModerationRecord, error) {
	if err := requireActor(actor); err != nil {
		return rec, err
	}
	if rec.Status != domain.StatusApproved {
		return rec, domain.InvalidStatef("delete: quiz is %s, not approved", rec.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return rec, domain.Validationf("a deletion reason is required")
	}
	rec.Status = domain.StatusDeleted
	rec.IsActive = false
	rec.DeletedBy = actor
	rec.DeletedAt = &at
	rec.DeletionReason = reason
	return rec, nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.Validationf("actor is required")
	}
	return nil
}
