package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"skillquiz-service/internal/domain"
)

type scoreDoc struct {
	Score          int       `bson:"score"`
	TotalQuestions int       `bson:"totalQuestions"`
	Percentage     int       `bson:"percentage"`
	Category       string    `bson:"category"`
	Date           time.Time `bson:"date"`
	QuizID         string    `bson:"quizId,omitempty"`
	IsCustomQuiz   bool      `bson:"isCustomQuiz"`
}

func toScoreDoc(s domain.ScoreSummary) scoreDoc {
	return scoreDoc{
		Score:          s.Score,
		TotalQuestions: s.TotalQuestions,
		Percentage:     s.Percentage,
		Category:       s.Category,
		Date:           s.Date,
		QuizID:         s.QuizID,
		IsCustomQuiz:   s.IsCustomQuiz,
	}
}

type profileDoc struct {
	UserID       string     `bson:"_id"`
	Username     string     `bson:"username"`
	TotalScore   int        `bson:"totalScore"`
	QuizzesTaken int        `bson:"quizzesTaken"`
	Experience   int        `bson:"experience"`
	Scores       []scoreDoc `bson:"scores"`
	IsAdmin      bool       `bson:"isAdmin"`
	LastQuizAt   *time.Time `bson:"lastQuizAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
}

func (d profileDoc) toDomain() domain.Profile {
	scores := make([]domain.ScoreSummary, 0, len(d.Scores))
	for _, s := range d.Scores {
		scores = append(scores, domain.ScoreSummary{
			Score:          s.Score,
			TotalQuestions: s.TotalQuestions,
			Percentage:     s.Percentage,
			Category:       s.Category,
			Date:           s.Date.UTC(),
			QuizID:         s.QuizID,
			IsCustomQuiz:   s.IsCustomQuiz,
		})
	}
	return domain.Profile{
		UserID:       d.UserID,
		Username:     d.Username,
		TotalScore:   d.TotalScore,
		QuizzesTaken: d.QuizzesTaken,
		Experience:   d.Experience,
		Scores:       scores,
		IsAdmin:      d.IsAdmin,
		LastQuizAt:   utc(d.LastQuizAt),
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// ProfileStore keeps per-user stats in the users collection, keyed by user id.
type ProfileStore struct {
	collection *mongo.Collection
}

func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{collection: db.Collection(profilesCollection)}
}

func (s *ProfileStore) Create(ctx context.Context, p domain.Profile) error {
	scores := make([]scoreDoc, 0, len(p.Scores))
	for _, sc := range p.Scores {
		scores = append(scores, toScoreDoc(sc))
	}
	doc := profileDoc{
		UserID:       p.UserID,
		Username:     p.Username,
		TotalScore:   p.TotalScore,
		QuizzesTaken: p.QuizzesTaken,
		Experience:   p.Experience,
		Scores:       scores,
		IsAdmin:      p.IsAdmin,
		LastQuizAt:   p.LastQuizAt,
		CreatedAt:    p.CreatedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.InvalidStatef("profile %s already exists", p.UserID)
		}
		return mapErr("insert profile", err)
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.Profile, error) {
	var doc profileDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		return domain.Profile{}, mapErr("profile "+userID, err)
	}
	return doc.toDomain(), nil
}

// ApplyQuizCompletion increments counters and appends the summary in one upsert.
func (s *ProfileStore) ApplyQuizCompletion(ctx context.Context, userID string, delta domain.ProfileDelta) error {
	update := bson.M{
		"$inc": bson.M{
			"totalScore":   delta.ScoreDelta,
			"quizzesTaken": 1,
			"experience":   delta.ExperienceDelta,
		},
		"$push": bson.M{"scores": toScoreDoc(delta.Summary)},
		"$set":  bson.M{"lastQuizAt": delta.Summary.Date},
		"$setOnInsert": bson.M{
			"username":  userID,
			"isAdmin":   false,
			"createdAt": delta.Summary.Date,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, opts); err != nil {
		return mapErr("apply quiz completion", err)
	}
	return nil
}

func (s *ProfileStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "totalScore", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"scores": 0})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mapErr("leaderboard", err)
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapErr("decode leaderboard", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.LeaderboardEntry{
			UserID:       d.UserID,
			Username:     d.Username,
			TotalScore:   d.TotalScore,
			QuizzesTaken: d.QuizzesTaken,
		})
	}
	return out, nil
}
