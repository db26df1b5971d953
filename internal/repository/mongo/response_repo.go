package mongo

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const responseCollectionName = "responses"

// mongoResponseRepository implements repository.ResponseRepository
type mongoResponseRepository struct {
	collection *mongo.Collection
}

// NewMongoResponseRepository creates a new Response repository backed by MongoDB.
func NewMongoResponseRepository(db *mongo.Database) repository.ResponseRepository {
	return &mongoResponseRepository{
		collection: db.Collection(responseCollectionName),
	}
}

// Create inserts a new response.
func (r *mongoResponseRepository) Create(ctx context.Context, response *domain.Response) (primitive.ObjectID, error) {
	if response.AssignmentID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("response requires assignmentId")
	}

	response.ID = primitive.NewObjectID()
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, response)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// One response per assignment, enforced by the unique index.
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted response ID")
	}
	return insertedID, nil
}

// GetByID retrieves a response by its ID.
func (r *mongoResponseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Response, error) {
	var response domain.Response
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &response, nil
}

// GetByAssignmentID retrieves the response linked to an assignment.
func (r *mongoResponseRepository) GetByAssignmentID(ctx context.Context, assignmentID primitive.ObjectID) (*domain.Response, error) {
	var response domain.Response
	err := r.collection.FindOne(ctx, bson.M{"assignmentId": assignmentID}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &response, nil
}

// EnsureResponseIndexes creates necessary indexes for the responses collection.
func EnsureResponseIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignmentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "formId", Value: 1}, {Key: "recurringWeek", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: could not create response indexes: %v", err)
	}
}
