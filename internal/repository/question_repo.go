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

type QuestionRepo interface {
	Create(ctx context.Context, question *model.Question) error
	GetByID(ctx context.Context, id string) (*model.Question, error)
	// Update writes the instructor-editable fields (status, pinned, answer, updatedAt)
	// only if the stored version still equals question.Version, then bumps it.
	// A stale version yields ErrVersionConflict, a missing record ErrNotFound.
	Update(ctx context.Context, question *model.Question) error
	Delete(ctx context.Context, id string) error

	// ListByCourse returns newest first.
	ListByCourse(ctx context.Context, courseID string, filter model.QuestionFilter) ([]*model.Question, error)
	ListByStudent(ctx context.Context, studentID string) ([]*model.Question, error)

	// DeleteByCourse removes the course's questions created at or before `before`,
	// restricted to `status` when it is non-empty.
	DeleteByCourse(ctx context.Context, courseID string, status model.QuestionStatus, before time.Time) (int64, error)
}

type questionRepo struct {
	collection *mongo.Collection
}

func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		collection: db.Collection(QuestionsCollection),
	}
}

func (r *questionRepo) Create(ctx context.Context, question *model.Question) error {
	if question.ID == "" {
		question.ID = primitive.NewObjectID().Hex()
	}

	_, err := r.collection.InsertOne(ctx, question)
	return err
}

func (r *questionRepo) GetByID(ctx context.Context, id string) (*model.Question, error) {
	var question model.Question
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&question)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepo) Update(ctx context.Context, question *model.Question) error {
	set := bson.M{
		"status":    question.Status,
		"pinned":    question.Pinned,
		"updatedAt": question.UpdatedAt,
		"version":   question.Version + 1,
	}
	update := bson.M{"$set": set}
	if question.Answer != "" {
		set["answer"] = question.Answer
	} else {
		update["$unset"] = bson.M{"answer": ""}
	}

	filter := bson.M{"_id": question.ID, "version": question.Version}
	if question.Version == 0 {
		// documents written before versioning have no field at all
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": question.ID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	question.Version++
	return nil
}

func (r *questionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *questionRepo) ListByCourse(ctx context.Context, courseID string, filter model.QuestionFilter) ([]*model.Question, error) {
	query := bson.M{"courseId": courseID}
	if filter.SessionID != "" {
		query["sessionId"] = filter.SessionID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return r.find(ctx, query)
}

func (r *questionRepo) ListByStudent(ctx context.Context, studentID string) ([]*model.Question, error) {
	return r.find(ctx, bson.M{"studentId": studentID})
}

func (r *questionRepo) DeleteByCourse(ctx context.Context, courseID string, status model.QuestionStatus, before time.Time) (int64, error) {
	query := bson.M{
		"courseId":  courseID,
		"createdAt": bson.M{"$lte": before},
	}
	if status != "" {
		query["status"] = status
	}

	res, err := r.collection.DeleteMany(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *questionRepo) find(ctx context.Context, query bson.M) ([]*model.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	questions := []*model.Question{}
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
