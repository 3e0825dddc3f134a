// Package mongo stores community quizzes, results and profiles in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"skillquiz-service/internal/domain"
)

const (
	quizzesCollection  = "userQuizzes"
	resultsCollection  = "quizResults"
	profilesCollection = "users"
)

// Connect dials MongoDB, pings it and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(60 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the indexes the stores query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(quizzesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "definition.category", Value: 1}, {Key: "moderation.status", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("quiz indexes: %w", err)
	}
	_, err = db.Collection(resultsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("result indexes: %w", err)
	}
	_, err = db.Collection(profilesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "totalScore", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("profile indexes: %w", err)
	}
	return nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFoundf("%s", op)
	}
	return domain.PersistenceError(op, err)
}
