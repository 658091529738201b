package mongo

import (
	"context"
	"errors"
	"time"

	"fittrack/internal/domain"
	"fittrack/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activityLogCollectionName = "activity_logs"

// mongoActivityLogRepository implements repository.ActivityLogRepository.
// Logs are append-only: there is no update method on purpose.
type mongoActivityLogRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityLogRepository creates a new ActivityLog repository backed by MongoDB.
func NewMongoActivityLogRepository(db *mongo.Database) repository.ActivityLogRepository {
	return &mongoActivityLogRepository{
		collection: db.Collection(activityLogCollectionName),
	}
}

// Create appends a new status-transition log entry.
func (r *mongoActivityLogRepository) Create(ctx context.Context, log *domain.ActivityLog) (primitive.ObjectID, error) {
	if log.ActivityID == primitive.NilObjectID || log.NewStatus == "" {
		return primitive.NilObjectID, errors.New("activity ID and new status are required")
	}

	log.ID = primitive.NewObjectID()
	log.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByActivityID retrieves all log entries for one activity, newest first.
func (r *mongoActivityLogRepository) GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.ActivityLog, error) {
	filter := bson.M{"activityId": activityID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.ActivityLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// GetByActivityIDs retrieves log entries for a batch of activities in one
// query, grouped by activity ID with each group newest first. Used when
// shaping list responses so logs aren't fetched per row.
func (r *mongoActivityLogRepository) GetByActivityIDs(ctx context.Context, activityIDs []primitive.ObjectID) (map[primitive.ObjectID][]domain.ActivityLog, error) {
	grouped := make(map[primitive.ObjectID][]domain.ActivityLog, len(activityIDs))
	if len(activityIDs) == 0 {
		return grouped, nil
	}

	filter := bson.M{"activityId": bson.M{"$in": activityIDs}}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.ActivityLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	for _, log := range logs {
		grouped[log.ActivityID] = append(grouped[log.ActivityID], log)
	}
	return grouped, nil
}

// DeleteByActivityID removes all log entries for an activity. This is the
// cascade when the parent activity is deleted; logs are never deleted on
// their own.
func (r *mongoActivityLogRepository) DeleteByActivityID(ctx context.Context, activityID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"activityId": activityID})
	return err
}

// EnsureActivityLogIndexes creates necessary indexes for the activity_logs collection.
func EnsureActivityLogIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "activityId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
