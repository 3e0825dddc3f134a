package app

import (
	"context"
	"strings"

	"skillquiz-service/internal/domain"
)

// Shuffler reorders questions in place.
type Shuffler interface {
	Shuffle(questions []domain.Question)
}

// QuestionProvider serves questions for built-in categories and for approved community quizzes.
type QuestionProvider struct {
	catalog   QuestionCatalog
	community QuizDefinitionStore
	shuffler  Shuffler
}

func NewQuestionProvider(catalog QuestionCatalog, community QuizDefinitionStore, shuffler Shuffler) *QuestionProvider {
	return &QuestionProvider{catalog: catalog, community: community, shuffler: shuffler}
}

// Categories lists the built-in categories.
func (p *QuestionProvider) Categories() []domain.Category {
	return p.catalog.Categories()
}

// GetQuestions returns up to limit shuffled questions of a built-in category.
// An unknown category yields an empty list.
func (p *QuestionProvider) GetQuestions(ctx context.Context, category string, difficulty domain.Difficulty, limit int) ([]domain.Question, error) {
	return p.catalog.Fetch(ctx, category, difficulty, limit)
}

// CommunityQuizzes lists playable community quizzes of a category.
func (p *QuestionProvider) CommunityQuizzes(ctx context.Context, category string) ([]domain.CommunityQuiz, error) {
	quizzes, err := p.community.ListApprovedByCategory(ctx, strings.ToLower(strings.TrimSpace(category)))
	if err != nil {
		return nil, domain.PersistenceError("list community quizzes", err)
	}
	playable := make([]domain.CommunityQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Moderation.Playable() {
			playable = append(playable, q)
		}
	}
	return playable, nil
}

// CommunityQuiz returns a playable community quiz with its questions in a
// fresh random order. Quizzes that are not approved and active are reported
// as not found.
func (p *QuestionProvider) CommunityQuiz(ctx context.Context, quizID string) (domain.CommunityQuiz, error) {
	quiz, err := p.community.GetByID(ctx, quizID)
	if err != nil {
		return domain.CommunityQuiz{}, domain.PersistenceError("load community quiz", err)
	}
	if !quiz.Moderation.Playable() {
		return domain.CommunityQuiz{}, domain.NotFoundf("quiz %s is not available", quizID)
	}

	questions := make([]domain.Question, len(quiz.Definition.Questions))
	copy(questions, quiz.Definition.Questions)
	if p.shuffler != nil {
		p.shuffler.Shuffle(questions)
	}
	quiz.Definition.Questions = questions
	return quiz, nil
}
