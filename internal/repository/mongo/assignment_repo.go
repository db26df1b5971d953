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

const assignmentCollectionName = "assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// Create inserts a new assignment into the database.
func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) (primitive.ObjectID, error) {
	if assignment.ClientID == primitive.NilObjectID ||
		assignment.FormID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires clientId and formId")
	}

	assignment.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	assignment.AssignedAt = now
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = domain.StatusPending
	}

	result, err := r.collection.InsertOne(ctx, assignment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// The partial unique index on (clientId, formId, recurringWeek)
			// rejected a second assignment for the same week.
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted assignment ID")
	}
	return insertedID, nil
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// GetSeries retrieves the full weekly series for a (client, form) pair,
// ordered by recurringWeek ascending so callers can take the first entry as
// the series template.
func (r *mongoAssignmentRepository) GetSeries(ctx context.Context, clientID, formID primitive.ObjectID) ([]domain.Assignment, error) {
	filter := bson.M{"clientId": clientID, "formId": formID}
	findOptions := options.Find().SetSort(bson.D{{Key: "recurringWeek", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []domain.Assignment
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, cursor.Err()
}

// ListRecurringTemplates returns the week-1 assignment of every recurring
// series; these are the templates the backfill job expands.
func (r *mongoAssignmentRepository) ListRecurringTemplates(ctx context.Context) ([]domain.Assignment, error) {
	filter := bson.M{"isRecurring": true, "recurringWeek": 1}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []domain.Assignment
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, cursor.Err()
}

// ListIncomplete returns all assignments that are not completed, ordered by
// due date. This is the reminder dispatcher's scan set.
func (r *mongoAssignmentRepository) ListIncomplete(ctx context.Context) ([]domain.Assignment, error) {
	filter := bson.M{"status": bson.M{"$ne": domain.StatusCompleted}}
	findOptions := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []domain.Assignment
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, cursor.Err()
}

// BulkCreate inserts assignments in chunks of repository.BatchWriteLimit.
// Inserts are unordered and duplicate-key failures are swallowed: a week that
// already exists (e.g. a concurrent backfill) simply doesn't count as
// inserted. Returns the number of documents actually created.
func (r *mongoAssignmentRepository) BulkCreate(ctx context.Context, assignments []*domain.Assignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		a.ID = primitive.NewObjectID()
		a.AssignedAt = now
		a.UpdatedAt = now
		if a.Status == "" {
			a.Status = domain.StatusPending
		}
		docs = append(docs, a)
	}

	inserted := 0
	insertOptions := options.InsertMany().SetOrdered(false)
	for _, bounds := range repository.ChunkBounds(len(docs)) {
		result, err := r.collection.InsertMany(ctx, docs[bounds[0]:bounds[1]], insertOptions)
		if result != nil {
			inserted += len(result.InsertedIDs)
		}
		if err != nil {
			var bwe mongo.BulkWriteException
			if errors.As(err, &bwe) && allDuplicateKey(bwe) {
				continue
			}
			return inserted, err
		}
	}
	return inserted, nil
}

func allDuplicateKey(bwe mongo.BulkWriteException) bool {
	for _, we := range bwe.WriteErrors {
		if !mongo.IsDuplicateKeyError(we.WriteError) {
			return false
		}
	}
	return len(bwe.WriteErrors) > 0
}

// LinkResponse marks an assignment completed with the given response. The
// responseId-unset filter makes completion idempotent: a second submission
// for the same assignment fails instead of overwriting the first.
func (r *mongoAssignmentRepository) LinkResponse(ctx context.Context, assignmentID, responseID primitive.ObjectID, completedAt time.Time) error {
	filter := bson.M{"_id": assignmentID, "responseId": nil}
	update := bson.M{"$set": bson.M{
		"responseId":  responseID,
		"status":      domain.StatusCompleted,
		"completedAt": completedAt,
		"updatedAt":   time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// UpdateStatus sets the lifecycle status of an assignment.
func (r *mongoAssignmentRepository) UpdateStatus(ctx context.Context, assignmentID primitive.ObjectID, status domain.AssignmentStatus) error {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": assignmentID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- Send-marker check-and-set ---
//
// Each acquire is a single conditional UpdateOne/FindOneAndUpdate whose
// filter encodes "marker not already claimed". Concurrent dispatcher runs
// race on the same filter and Mongo guarantees only one update matches, so
// exactly one run wins the send.

// AcquireSendMarker sets a set-once timestamp marker if it is still unset.
func (r *mongoAssignmentRepository) AcquireSendMarker(ctx context.Context, id primitive.ObjectID, field string, sentAt time.Time) (bool, error) {
	filter := bson.M{"_id": id, field: nil}
	update := bson.M{"$set": bson.M{field: sentAt, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// ClearSendMarker unsets a set-once marker after a failed send so the next
// scan retries it.
func (r *mongoAssignmentRepository) ClearSendMarker(ctx context.Context, id primitive.ObjectID, field string) error {
	update := bson.M{"$unset": bson.M{field: ""}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// AcquireDailyMarker sets a "YYYY-MM-DD" day marker unless it already holds
// day, returning the previous value for rollback.
func (r *mongoAssignmentRepository) AcquireDailyMarker(ctx context.Context, id primitive.ObjectID, field, day string) (string, bool, error) {
	filter := bson.M{"_id": id, field: bson.M{"$ne": day}}
	update := bson.M{"$set": bson.M{field: day, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before bson.M
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the assignment is gone or the marker already holds
			// today's date; both mean "not acquired".
			return "", false, nil
		}
		return "", false, err
	}

	prev, _ := before[field].(string)
	return prev, true, nil
}

// RestoreDailyMarker puts a day marker back to its pre-acquire value.
func (r *mongoAssignmentRepository) RestoreDailyMarker(ctx context.Context, id primitive.ObjectID, field, prev string) error {
	var update bson.M
	if prev == "" {
		update = bson.M{"$unset": bson.M{field: ""}}
	} else {
		update = bson.M{"$set": bson.M{field: prev}}
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// AcquireOverdueMarker advances lastOverdueEmailSentAt to sentAt when it is
// unset or older than notAfter, returning the previous value for rollback.
func (r *mongoAssignmentRepository) AcquireOverdueMarker(ctx context.Context, id primitive.ObjectID, sentAt, notAfter time.Time) (*time.Time, bool, error) {
	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{domain.MarkerLastOverdue: nil},
			{domain.MarkerLastOverdue: bson.M{"$lt": notAfter}},
		},
	}
	update := bson.M{"$set": bson.M{domain.MarkerLastOverdue: sentAt, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before struct {
		LastOverdueEmailSentAt *time.Time `bson:"lastOverdueEmailSentAt"`
	}
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return before.LastOverdueEmailSentAt, true, nil
}

// RestoreOverdueMarker puts the overdue marker back to its pre-acquire value.
func (r *mongoAssignmentRepository) RestoreOverdueMarker(ctx context.Context, id primitive.ObjectID, prev *time.Time) error {
	var update bson.M
	if prev == nil {
		update = bson.M{"$unset": bson.M{domain.MarkerLastOverdue: ""}}
	} else {
		update = bson.M{"$set": bson.M{domain.MarkerLastOverdue: *prev}}
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments
// collection. The partial unique index enforces the one-assignment-per-week
// invariant for recurring series at the storage layer.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "clientId", Value: 1},
				{Key: "formId", Value: 1},
				{Key: "recurringWeek", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isRecurring": true}),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: could not create assignment indexes: %v", err)
	}
}
