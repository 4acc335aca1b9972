package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CoursesCollection   = "courses"
	SessionsCollection  = "sessions"
	QuestionsCollection = "questions"
)

// EnsureIndexes creates the indexes the repositories rely on.
// The partial unique index on sessions is the store-level guard for
// "one active session per course".
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	sessions := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "courseId", Value: 1}},
			Options: options.Index().
				SetName("one_active_session_per_course").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isActive": true}),
		},
		{
			Keys: bson.D{{Key: "courseId", Value: 1}, {Key: "startTime", Value: -1}},
		},
	}
	if _, err := db.Collection(SessionsCollection).Indexes().CreateMany(ctx, sessions); err != nil {
		return fmt.Errorf("sessions indexes: %w", err)
	}

	questions := []mongo.IndexModel{
		{Keys: bson.D{{Key: "courseId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "courseId", Value: 1}, {Key: "sessionId", Value: 1}}},
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection(QuestionsCollection).Indexes().CreateMany(ctx, questions); err != nil {
		return fmt.Errorf("questions indexes: %w", err)
	}
	return nil
}
