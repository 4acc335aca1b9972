package repository

import (
	"context"
	"time"

	"vidyavichar/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepo interface {
	// Start ends every active session of session.CourseID at session.StartTime and
	// inserts session as the new active one. The ended sessions are returned.
	Start(ctx context.Context, session *model.Session) ([]*model.Session, error)
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetActive(ctx context.Context, courseID string) (*model.Session, error)
	// End deactivates the session only if it is still active.
	// It returns (nil, nil) when no active session with that id exists.
	End(ctx context.Context, id string, at time.Time) (*model.Session, error)
	ListByCourse(ctx context.Context, courseID string) ([]*model.Session, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection(SessionsCollection),
	}
}

func (r *sessionRepo) Start(ctx context.Context, session *model.Session) ([]*model.Session, error) {
	active := bson.M{"courseId": session.CourseID, "isActive": true}

	cursor, err := r.collection.Find(ctx, active)
	if err != nil {
		return nil, err
	}
	var ended []*model.Session
	if err := cursor.All(ctx, &ended); err != nil {
		return nil, err
	}

	if len(ended) > 0 {
		_, err := r.collection.UpdateMany(ctx, active, bson.M{
			"$set": bson.M{"isActive": false, "endTime": session.StartTime},
		})
		if err != nil {
			return nil, err
		}
		for _, s := range ended {
			s.End(session.StartTime)
		}
	}

	if session.ID == "" {
		session.ID = primitive.NewObjectID().Hex()
	}
	session.IsActive = true
	session.EndTime = nil

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ended, ErrActiveSessionExists
		}
		return ended, err
	}
	return ended, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetActive(ctx context.Context, courseID string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"courseId": courseID, "isActive": true}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) End(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "endTime": at}},
		opts,
	).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListByCourse(ctx context.Context, courseID string) ([]*model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"courseId": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []*model.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
