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

type questionDoc struct {
	ID            string   `bson:"id"`
	Text          string   `bson:"text"`
	Options       []string `bson:"options"`
	CorrectAnswer string   `bson:"correctAnswer"`
	Difficulty    string   `bson:"difficulty"`
	Tags          []string `bson:"tags,omitempty"`
	Explanation   string   `bson:"explanation,omitempty"`
}

type definitionDoc struct {
	Title            string        `bson:"title"`
	Description      string        `bson:"description"`
	Category         string        `bson:"category"`
	Difficulty       string        `bson:"difficulty"`
	TimeLimitMinutes int           `bson:"timeLimitMinutes"`
	Tags             []string      `bson:"tags"`
	Questions        []questionDoc `bson:"questions"`
}

type moderationDoc struct {
	Status          string     `bson:"status"`
	IsActive        bool       `bson:"isActive"`
	ApprovedBy      string     `bson:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `bson:"approvedAt,omitempty"`
	RejectedBy      string     `bson:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `bson:"rejectedAt,omitempty"`
	RejectionReason string     `bson:"rejectionReason,omitempty"`
	DeletedBy       string     `bson:"deletedBy,omitempty"`
	DeletedAt       *time.Time `bson:"deletedAt,omitempty"`
	DeletionReason  string     `bson:"deletionReason,omitempty"`
}

type quizDoc struct {
	ID         string        `bson:"_id"`
	CreatedBy  string        `bson:"createdBy"`
	CreatedAt  time.Time     `bson:"createdAt"`
	Definition definitionDoc `bson:"definition"`
	Moderation moderationDoc `bson:"moderation"`
}

func toQuizDoc(q domain.CommunityQuiz) quizDoc {
	questions := make([]questionDoc, 0, len(q.Definition.Questions))
	for _, question := range q.Definition.Questions {
		questions = append(questions, questionDoc{
			ID:            question.ID,
			Text:          question.Text,
			Options:       question.Options,
			CorrectAnswer: question.CorrectAnswer,
			Difficulty:    string(question.Difficulty),
			Tags:          question.Tags,
			Explanation:   question.Explanation,
		})
	}
	return quizDoc{
		ID:        q.ID,
		CreatedBy: q.CreatedBy,
		CreatedAt: q.CreatedAt,
		Definition: definitionDoc{
			Title:            q.Definition.Title,
			Description:      q.Definition.Description,
			Category:         q.Definition.Category,
			Difficulty:       string(q.Definition.Difficulty),
			TimeLimitMinutes: q.Definition.TimeLimitMinutes,
			Tags:             q.Definition.Tags,
			Questions:        questions,
		},
		Moderation: toModerationDoc(q.Moderation),
	}
}

func toModerationDoc(m domain.ModerationRecord) moderationDoc {
	return moderationDoc{
		Status:          string(m.Status),
		IsActive:        m.IsActive,
		ApprovedBy:      m.ApprovedBy,
		ApprovedAt:      m.ApprovedAt,
		RejectedBy:      m.RejectedBy,
		RejectedAt:      m.RejectedAt,
		RejectionReason: m.RejectionReason,
		DeletedBy:       m.DeletedBy,
		DeletedAt:       m.DeletedAt,
		DeletionReason:  m.DeletionReason,
	}
}

func (d quizDoc) toDomain() domain.CommunityQuiz {
	questions := make([]domain.Question, 0, len(d.Definition.Questions))
	for _, q := range d.Definition.Questions {
		questions = append(questions, domain.Question{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    domain.Difficulty(q.Difficulty),
			Tags:          q.Tags,
			Explanation:   q.Explanation,
		})
	}
	m := d.Moderation
	return domain.CommunityQuiz{
		ID:        d.ID,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt.UTC(),
		Definition: domain.QuizDefinition{
			Title:            d.Definition.Title,
			Description:      d.Definition.Description,
			Category:         d.Definition.Category,
			Difficulty:       domain.Difficulty(d.Definition.Difficulty),
			TimeLimitMinutes: d.Definition.TimeLimitMinutes,
			Tags:             d.Definition.Tags,
			Questions:        questions,
		},
		Moderation: domain.ModerationRecord{
			Status:          domain.ModerationStatus(m.Status),
			IsActive:        m.IsActive,
			ApprovedBy:      m.ApprovedBy,
			ApprovedAt:      utc(m.ApprovedAt),
			RejectedBy:      m.RejectedBy,
			RejectedAt:      utc(m.RejectedAt),
			RejectionReason: m.RejectionReason,
			DeletedBy:       m.DeletedBy,
			DeletedAt:       utc(m.DeletedAt),
			DeletionReason:  m.DeletionReason,
		},
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CommunityStore keeps community quizzes in the userQuizzes collection.
type CommunityStore struct {
	collection *mongo.Collection
}

func NewCommunityStore(db *mongo.Database) *CommunityStore {
	return &CommunityStore{collection: db.Collection(quizzesCollection)}
}

func (s *CommunityStore) Create(ctx context.Context, quiz domain.CommunityQuiz) (string, error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if _, err := s.collection.InsertOne(ctx, toQuizDoc(quiz)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.InvalidStatef("quiz %s already exists", quiz.ID)
		}
		return "", mapErr("insert community quiz", err)
	}
	return quiz.ID, nil
}

func (s *CommunityStore) GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error) {
	var doc quizDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.CommunityQuiz{}, mapErr("quiz "+id, err)
	}
	return doc.toDomain(), nil
}

func (s *CommunityStore) ListApprovedByCategory(ctx context.Context, category string) ([]domain.CommunityQuiz, error) {
	return s.find(ctx, bson.M{
		"definition.category": category,
		"moderation.status":   string(domain.StatusApproved),
		"moderation.isActive": true,
	})
}

func (s *CommunityStore) ListByStatus(ctx context.Context, status domain.ModerationStatus) ([]domain.CommunityQuiz, error) {
	filter := bson.M{}
	if status != "" {
		filter["moderation.status"] = string(status)
	}
	return s.find(ctx, filter)
}

func (s *CommunityStore) ListByAuthor(ctx context.Context, userID string) ([]domain.CommunityQuiz, error) {
	return s.find(ctx, bson.M{"createdBy": userID})
}

// UpdateModeration replaces the moderation record only while the stored status still equals from.
func (s *CommunityStore) UpdateModeration(ctx context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "moderation.status": string(from)},
		bson.M{"$set": bson.M{"moderation": toModerationDoc(rec)}},
	)
	if err != nil {
		return mapErr("update moderation", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return domain.InvalidStatef("quiz %s is %s, expected %s", id, current.Moderation.Status, from)
}

func (s *CommunityStore) find(ctx context.Context, filter bson.M) ([]domain.CommunityQuiz, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr("list community quizzes", err)
	}
	defer cursor.Close(ctx)

	var docs []quizDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapErr("decode community quizzes", err)
	}
	out := make([]domain.CommunityQuiz, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
