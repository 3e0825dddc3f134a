package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"skillquiz-service/internal/domain"
)

type answerDoc struct {
	QuestionIndex int    `bson:"questionIndex"`
	Answer        string `bson:"answer"`
	IsCorrect     bool   `bson:"isCorrect"`
}

type resultDoc struct {
	ID               string      `bson:"_id"`
	UserID           string      `bson:"userId"`
	Category         string      `bson:"category"`
	Score            int         `bson:"score"`
	TotalQuestions   int         `bson:"totalQuestions"`
	Answers          []answerDoc `bson:"answers"`
	QuizID           string      `bson:"quizId,omitempty"`
	IsCustomQuiz     bool        `bson:"isCustomQuiz"`
	CompletedAt      time.Time   `bson:"completedAt"`
	Percentage       int         `bson:"percentage"`
	ExperiencePoints int         `bson:"experiencePoints"`
}

func (d resultDoc) toDomain() domain.ResultRecord {
	answers := make([]domain.AnswerEntry, 0, len(d.Answers))
	for _, a := range d.Answers {
		answers = append(answers, domain.AnswerEntry{QuestionIndex: a.QuestionIndex, Answer: a.Answer, IsCorrect: a.IsCorrect})
	}
	return domain.ResultRecord{
		ID:               d.ID,
		UserID:           d.UserID,
		Category:         d.Category,
		Score:            d.Score,
		TotalQuestions:   d.TotalQuestions,
		Answers:          answers,
		QuizID:           d.QuizID,
		IsCustomQuiz:     d.IsCustomQuiz,
		CompletedAt:      d.CompletedAt.UTC(),
		Percentage:       d.Percentage,
		ExperiencePoints: d.ExperiencePoints,
	}
}

// ResultStore appends quiz results to the quizResults collection.
type ResultStore struct {
	collection *mongo.Collection
}

func NewResultStore(db *mongo.Database) *ResultStore {
	return &ResultStore{collection: db.Collection(resultsCollection)}
}

func (s *ResultStore) Append(ctx context.Context, userID string, rec domain.ResultRecord) (string, error) {
	answers := make([]answerDoc, 0, len(rec.Answers))
	for _, a := range rec.Answers {
		answers = append(answers, answerDoc{QuestionIndex: a.QuestionIndex, Answer: a.Answer, IsCorrect: a.IsCorrect})
	}
	doc := resultDoc{
		ID:               uuid.NewString(),
		UserID:           userID,
		Category:         rec.Category,
		Score:            rec.Score,
		TotalQuestions:   rec.TotalQuestions,
		Answers:          answers,
		QuizID:           rec.QuizID,
		IsCustomQuiz:     rec.IsCustomQuiz,
		CompletedAt:      rec.CompletedAt,
		Percentage:       rec.Percentage,
		ExperiencePoints: rec.ExperiencePoints,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return "", mapErr("insert result", err)
	}
	return doc.ID, nil
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ResultRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "completedAt", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, mapErr("list results", err)
	}
	defer cursor.Close(ctx)

	var docs []resultDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapErr("decode results", err)
	}
	out := make([]domain.ResultRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
