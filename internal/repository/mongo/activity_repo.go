package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"fittrack/internal/domain"
	"fittrack/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activityCollectionName = "activities"

// Maps API ordering names to the stored field names.
var activitySortFields = map[string]string{
	repository.OrderByCreatedAt:   "createdAt",
	repository.OrderByPlannedDate: "plannedDate",
	repository.OrderByUpdatedAt:   "updatedAt",
}

// mongoActivityRepository implements repository.ActivityRepository.
type mongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new Activity repository backed by MongoDB.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection: db.Collection(activityCollectionName),
	}
}

// Create inserts a new activity into the database.
// The completed-date rule runs on every save, so an activity created directly
// in completed status gets its completion time stamped here.
func (r *mongoActivityRepository) Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error) {
	if activity.Title == "" || activity.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("activity title and user ID are required")
	}

	activity.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	if activity.Status == "" {
		activity.Status = domain.StatusPlanned
	}
	activity.EnsureCompletedDate(now)

	result, err := r.collection.InsertOne(ctx, activity)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves an activity by its ID, scoped to the owner.
// An activity belonging to another user behaves exactly like a missing one.
func (r *mongoActivityRepository) GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*domain.Activity, error) {
	var activity domain.Activity
	filter := bson.M{"_id": id, "userId": ownerID}

	err := r.collection.FindOne(ctx, filter).Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// buildListFilter translates an ActivityFilter into a Mongo filter document
// rooted at the owner. All listings are owner-scoped; the filter only narrows.
func buildListFilter(ownerID primitive.ObjectID, filter repository.ActivityFilter) bson.M {
	query := bson.M{"userId": ownerID}

	if filter.ActivityType != nil {
		query["activityType"] = *filter.ActivityType
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.Search != "" {
		// Case-insensitive substring match over title and description.
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}

	return query
}

// ListByOwner retrieves one page of a user's activities along with the total
// count of activities matching the filter.
func (r *mongoActivityRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, filter repository.ActivityFilter) ([]domain.Activity, int64, error) {
	query := buildListFilter(ownerID, filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	sortField, ok := activitySortFields[filter.OrderBy]
	if !ok {
		sortField = "createdAt"
	}
	sortDir := -1 // default listing order is descending by created_at
	if filter.Ascending {
		sortDir = 1
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDir}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var activities []domain.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, 0, err
	}
	if err = cursor.Err(); err != nil {
		return nil, 0, err
	}

	return activities, total, nil
}

// ListByIDs retrieves the subset of the given IDs that exist and belong to
// the owner. IDs that don't match are simply absent from the result.
func (r *mongoActivityRepository) ListByIDs(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID) ([]domain.Activity, error) {
	if len(ids) == 0 {
		return []domain.Activity{}, nil
	}

	filter := bson.M{
		"_id":    bson.M{"$in": ids},
		"userId": ownerID,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var activities []domain.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return activities, nil
}

// ListRecent retrieves the owner's most recently updated activities.
func (r *mongoActivityRepository) ListRecent(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{"userId": ownerID}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var activities []domain.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return activities, nil
}

// CountByOwner counts all activities belonging to the owner.
func (r *mongoActivityRepository) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": ownerID})
}

// Update modifies an existing activity's mutable fields.
// The owner and CreatedAt are never touched; UpdatedAt is refreshed and the
// completed-date rule is applied on every save.
func (r *mongoActivityRepository) Update(ctx context.Context, activity *domain.Activity) error {
	if activity.ID == primitive.NilObjectID {
		return errors.New("activity ID is required for update")
	}
	if activity.Title == "" {
		return errors.New("activity title cannot be empty")
	}

	now := time.Now().UTC()
	activity.EnsureCompletedDate(now)
	activity.UpdatedAt = now

	filter := bson.M{"_id": activity.ID, "userId": activity.UserID}
	update := bson.M{
		"$set": bson.M{
			"title":            activity.Title,
			"description":      activity.Description,
			"status":           activity.Status,
			"completedDate":    activity.CompletedDate,
			"durationMinutes":  activity.DurationMinutes,
			"caloriesBurned":   activity.CaloriesBurned,
			"caloriesConsumed": activity.CaloriesConsumed,
			"stepsCount":       activity.StepsCount,
			"notes":            activity.Notes,
			"updatedAt":        activity.UpdatedAt,
			// Note: userId, activityType, plannedDate and createdAt are
			// deliberately not set here.
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes an activity, ensuring it belongs to the specified owner.
func (r *mongoActivityRepository) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	// The filter ensures we only delete if the _id matches AND the userId
	// matches, so one user can never delete another user's activity.
	filter := bson.M{"_id": id, "userId": ownerID}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// statusCond builds a $cond expression that yields 1 when the activity's
// status equals the given value, 0 otherwise. Used to count by status within
// a single $group stage.
func statusCond(status domain.ActivityStatus) bson.M {
	return bson.M{
		"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", status}},
			1,
			0,
		},
	}
}

// metricSum builds a $sum over an optional numeric field, treating missing
// values as 0 so the sums never come back null.
func metricSum(field string) bson.M {
	return bson.M{"$sum": bson.M{"$ifNull": bson.A{"$" + field, 0}}}
}

// MonthlyRollup aggregates status counts and metric sums over activities the
// owner created at or after since. Returns a zero rollup when no rows match.
func (r *mongoActivityRepository) MonthlyRollup(ctx context.Context, ownerID primitive.ObjectID, since time.Time) (domain.MonthlyRollup, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"userId":    ownerID,
			"createdAt": bson.M{"$gte": since},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":                  nil,
			"totalActivities":      bson.M{"$sum": 1},
			"completedActivities":  bson.M{"$sum": statusCond(domain.StatusCompleted)},
			"plannedActivities":    bson.M{"$sum": statusCond(domain.StatusPlanned)},
			"inProgressActivities": bson.M{"$sum": statusCond(domain.StatusInProgress)},
			"caloriesBurned":       metricSum("caloriesBurned"),
			"caloriesConsumed":     metricSum("caloriesConsumed"),
			"steps":                metricSum("stepsCount"),
			"durationMinutes":      metricSum("durationMinutes"),
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.MonthlyRollup{}, err
	}
	defer cursor.Close(ctx)

	var results []domain.MonthlyRollup
	if err = cursor.All(ctx, &results); err != nil {
		return domain.MonthlyRollup{}, err
	}

	if len(results) == 0 {
		// No activities this month: every count and sum is zero.
		return domain.MonthlyRollup{}, nil
	}
	return results[0], nil
}

// CountByTypeSince counts the owner's activities per type, created at or
// after since. Only types with at least one activity appear in the map.
func (r *mongoActivityRepository) CountByTypeSince(ctx context.Context, ownerID primitive.ObjectID, since time.Time) (map[domain.ActivityType]int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"userId":    ownerID,
			"createdAt": bson.M{"$gte": since},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$activityType",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Type  domain.ActivityType `bson:"_id"`
		Count int64               `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	byType := make(map[domain.ActivityType]int64, len(results))
	for _, result := range results {
		byType[result.Type] = result.Count
	}
	return byType, nil
}

// EnsureActivityIndexes creates necessary indexes for the activities collection.
func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Owner-scoped listings in default order.
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			// Recent-activity listings.
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
