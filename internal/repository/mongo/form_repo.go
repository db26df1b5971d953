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

const formCollectionName = "checkin_forms"

// mongoFormRepository implements repository.FormRepository
type mongoFormRepository struct {
	collection *mongo.Collection
}

// NewMongoFormRepository creates a new CheckInForm repository backed by MongoDB.
func NewMongoFormRepository(db *mongo.Database) repository.FormRepository {
	return &mongoFormRepository{
		collection: db.Collection(formCollectionName),
	}
}

// Create inserts a new check-in form.
func (r *mongoFormRepository) Create(ctx context.Context, form *domain.CheckInForm) (primitive.ObjectID, error) {
	if form.CoachID == primitive.NilObjectID || form.Title == "" {
		return primitive.NilObjectID, errors.New("form requires coachId and title")
	}

	form.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	form.CreatedAt = now
	form.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, form)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted form ID")
	}
	return insertedID, nil
}

// GetByID retrieves a form by its ID.
func (r *mongoFormRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CheckInForm, error) {
	var form domain.CheckInForm
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&form)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &form, nil
}

// GetByCoachID retrieves all forms owned by a coach, newest first.
func (r *mongoFormRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.CheckInForm, error) {
	filter := bson.M{"coachId": coachID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var forms []domain.CheckInForm
	if err = cursor.All(ctx, &forms); err != nil {
		return nil, err
	}
	return forms, cursor.Err()
}

// EnsureFormIndexes creates necessary indexes for the checkin_forms collection.
func EnsureFormIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: could not create form indexes: %v", err)
	}
}
