package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fittrack/internal/domain"
	"fittrack/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrActivityNotFound   = errors.New("activity not found")
	ErrActivityValidation = errors.New("activity validation failed")
)

// ActivityInput carries the fields accepted when creating an activity.
type ActivityInput struct {
	Title        string
	Description  string
	ActivityType domain.ActivityType
	Status       domain.ActivityStatus // optional, defaults to planned
	PlannedDate  time.Time
	Notes        string

	DurationMinutes  *int
	CaloriesBurned   *int
	CaloriesConsumed *int
	StepsCount       *int
}

// ActivityUpdate carries the fields accepted when updating an activity.
// Nil means "leave unchanged". The activity type and planned date are fixed
// at creation time.
type ActivityUpdate struct {
	Title       *string
	Description *string
	Status      *domain.ActivityStatus
	Notes       *string

	DurationMinutes  *int
	CaloriesBurned   *int
	CaloriesConsumed *int
	StepsCount       *int
}

// ActivityDetail pairs an activity with its status-transition history, the
// shape every read endpoint returns.
type ActivityDetail struct {
	Activity domain.Activity
	Logs     []domain.ActivityLog
}

// ActivityPage is one page of an owner-scoped listing.
type ActivityPage struct {
	Items    []ActivityDetail
	Total    int64
	Page     int
	PageSize int
}

// --- Service Interface ---
type ActivityService interface {
	Create(ctx context.Context, ownerID primitive.ObjectID, input ActivityInput) (*ActivityDetail, error)
	Get(ctx context.Context, ownerID, activityID primitive.ObjectID) (*ActivityDetail, error)
	List(ctx context.Context, ownerID primitive.ObjectID, filter repository.ActivityFilter) (*ActivityPage, error)
	Update(ctx context.Context, ownerID, activityID primitive.ObjectID, update ActivityUpdate) (*ActivityDetail, error)
	Delete(ctx context.Context, ownerID, activityID primitive.ObjectID) error
	Stats(ctx context.Context, ownerID primitive.ObjectID) (*domain.ActivityStats, error)
	// BulkUpdateStatus moves every owned, differently-statused activity in ids
	// to status and returns how many actually changed.
	BulkUpdateStatus(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, status domain.ActivityStatus) (int, error)
	Recent(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]ActivityDetail, error)
	// Dashboard returns the owner's total activity count and their five most
	// recently created activities.
	Dashboard(ctx context.Context, ownerID primitive.ObjectID) (int64, []ActivityDetail, error)
}

// --- Service Implementation ---

// activityService implements the ActivityService interface.
type activityService struct {
	activityRepo repository.ActivityRepository
	logRepo      repository.ActivityLogRepository
}

// NewActivityService creates a new instance of activityService.
func NewActivityService(activityRepo repository.ActivityRepository, logRepo repository.ActivityLogRepository) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		logRepo:      logRepo,
	}
}

// Create validates and persists a new activity for the owner.
func (s *activityService) Create(ctx context.Context, ownerID primitive.ObjectID, input ActivityInput) (*ActivityDetail, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required to create an activity")
	}
	if input.Title == "" || input.PlannedDate.IsZero() {
		return nil, ErrActivityValidation
	}
	if !input.ActivityType.IsValid() {
		return nil, ErrActivityValidation
	}
	status := input.Status
	if status == "" {
		status = domain.StatusPlanned
	}
	if !status.IsValid() {
		return nil, ErrActivityValidation
	}
	if hasNegativeMetric(input.DurationMinutes, input.CaloriesBurned, input.CaloriesConsumed, input.StepsCount) {
		return nil, ErrActivityValidation
	}

	activity := &domain.Activity{
		UserID:           ownerID,
		Title:            input.Title,
		Description:      input.Description,
		ActivityType:     input.ActivityType,
		Status:           status,
		PlannedDate:      input.PlannedDate,
		Notes:            input.Notes,
		DurationMinutes:  input.DurationMinutes,
		CaloriesBurned:   input.CaloriesBurned,
		CaloriesConsumed: input.CaloriesConsumed,
		StepsCount:       input.StepsCount,
	}

	activityID, err := s.activityRepo.Create(ctx, activity)
	if err != nil {
		return nil, err
	}
	activity.ID = activityID

	// A brand-new activity has no transition history yet.
	return &ActivityDetail{Activity: *activity, Logs: []domain.ActivityLog{}}, nil
}

// Get retrieves one owner-scoped activity with its logs.
func (s *activityService) Get(ctx context.Context, ownerID, activityID primitive.ObjectID) (*ActivityDetail, error) {
	activity, err := s.activityRepo.GetByID(ctx, activityID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}

	logs, err := s.logRepo.GetByActivityID(ctx, activityID)
	if err != nil {
		return nil, err
	}

	return &ActivityDetail{Activity: *activity, Logs: logs}, nil
}

// List retrieves one page of the owner's activities, logs attached in a
// single batch query.
func (s *activityService) List(ctx context.Context, ownerID primitive.ObjectID, filter repository.ActivityFilter) (*ActivityPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	activities, total, err := s.activityRepo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	items, err := s.attachLogs(ctx, activities)
	if err != nil {
		return nil, err
	}

	return &ActivityPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Update applies a partial update to one owner-scoped activity. A status
// change is recorded in the activity log before the new state is persisted;
// saving the same status twice records nothing.
func (s *activityService) Update(ctx context.Context, ownerID, activityID primitive.ObjectID, update ActivityUpdate) (*ActivityDetail, error) {
	activity, err := s.activityRepo.GetByID(ctx, activityID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}

	if update.Title != nil && *update.Title == "" {
		return nil, ErrActivityValidation
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, ErrActivityValidation
	}
	if hasNegativeMetric(update.DurationMinutes, update.CaloriesBurned, update.CaloriesConsumed, update.StepsCount) {
		return nil, ErrActivityValidation
	}

	if update.Status != nil && *update.Status != activity.Status {
		oldStatus := activity.Status
		_, err := s.logRepo.Create(ctx, &domain.ActivityLog{
			ActivityID: activity.ID,
			OldStatus:  &oldStatus,
			NewStatus:  *update.Status,
			Notes:      fmt.Sprintf("Status changed from %s to %s", oldStatus, *update.Status),
		})
		if err != nil {
			return nil, err
		}
		activity.Status = *update.Status
	}

	if update.Title != nil {
		activity.Title = *update.Title
	}
	if update.Description != nil {
		activity.Description = *update.Description
	}
	if update.Notes != nil {
		activity.Notes = *update.Notes
	}
	if update.DurationMinutes != nil {
		activity.DurationMinutes = update.DurationMinutes
	}
	if update.CaloriesBurned != nil {
		activity.CaloriesBurned = update.CaloriesBurned
	}
	if update.CaloriesConsumed != nil {
		activity.CaloriesConsumed = update.CaloriesConsumed
	}
	if update.StepsCount != nil {
		activity.StepsCount = update.StepsCount
	}

	if err := s.activityRepo.Update(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}

	logs, err := s.logRepo.GetByActivityID(ctx, activity.ID)
	if err != nil {
		return nil, err
	}

	return &ActivityDetail{Activity: *activity, Logs: logs}, nil
}

// Delete removes an owner-scoped activity and cascades to its logs.
func (s *activityService) Delete(ctx context.Context, ownerID, activityID primitive.ObjectID) error {
	err := s.activityRepo.Delete(ctx, activityID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrActivityNotFound
		}
		return err
	}

	return s.logRepo.DeleteByActivityID(ctx, activityID)
}

// Stats assembles the owner's statistics for the current calendar month:
// from the first instant of the month through now, not a trailing 30 days.
func (s *activityService) Stats(ctx context.Context, ownerID primitive.ObjectID) (*domain.ActivityStats, error) {
	since := domain.MonthStart(time.Now().UTC())

	rollup, err := s.activityRepo.MonthlyRollup(ctx, ownerID, since)
	if err != nil {
		return nil, err
	}

	byType, err := s.activityRepo.CountByTypeSince(ctx, ownerID, since)
	if err != nil {
		return nil, err
	}
	// Types with a zero count never appear in the mapping.
	for activityType, count := range byType {
		if count == 0 {
			delete(byType, activityType)
		}
	}
	if byType == nil {
		byType = map[domain.ActivityType]int64{}
	}

	return &domain.ActivityStats{
		Rollup:         rollup,
		CompletionRate: completionRate(rollup.CompletedActivities, rollup.TotalActivities),
		ByType:         byType,
	}, nil
}

// BulkUpdateStatus applies one target status to a set of the owner's
// activities. IDs that don't exist, aren't owned by the caller, or already
// carry the target status are skipped and don't count. Each real change is
// logged before it is persisted.
func (s *activityService) BulkUpdateStatus(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, status domain.ActivityStatus) (int, error) {
	if len(ids) == 0 || !status.IsValid() {
		return 0, ErrActivityValidation
	}

	activities, err := s.activityRepo.ListByIDs(ctx, ownerID, ids)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range activities {
		activity := &activities[i]
		if activity.Status == status {
			continue
		}

		oldStatus := activity.Status
		_, err := s.logRepo.Create(ctx, &domain.ActivityLog{
			ActivityID: activity.ID,
			OldStatus:  &oldStatus,
			NewStatus:  status,
			Notes:      fmt.Sprintf("Bulk status update from %s to %s", oldStatus, status),
		})
		if err != nil {
			return updated, err
		}

		activity.Status = status
		if err := s.activityRepo.Update(ctx, activity); err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}

// Recent retrieves the owner's most recently updated activities.
// limit <= 0 falls back to the default of 10.
func (s *activityService) Recent(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]ActivityDetail, error) {
	if limit <= 0 {
		limit = 10
	}

	activities, err := s.activityRepo.ListRecent(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	return s.attachLogs(ctx, activities)
}

// Dashboard returns the owner's all-time activity count plus the five most
// recently created activities.
func (s *activityService) Dashboard(ctx context.Context, ownerID primitive.ObjectID) (int64, []ActivityDetail, error) {
	total, err := s.activityRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return 0, nil, err
	}

	activities, _, err := s.activityRepo.ListByOwner(ctx, ownerID, repository.ActivityFilter{
		OrderBy:  repository.OrderByCreatedAt,
		Page:     1,
		PageSize: 5,
	})
	if err != nil {
		return 0, nil, err
	}

	items, err := s.attachLogs(ctx, activities)
	if err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

// attachLogs fetches the logs for a batch of activities in one query and
// pairs them up.
func (s *activityService) attachLogs(ctx context.Context, activities []domain.Activity) ([]ActivityDetail, error) {
	ids := make([]primitive.ObjectID, len(activities))
	for i, activity := range activities {
		ids[i] = activity.ID
	}

	grouped, err := s.logRepo.GetByActivityIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]ActivityDetail, len(activities))
	for i, activity := range activities {
		logs := grouped[activity.ID]
		if logs == nil {
			logs = []domain.ActivityLog{}
		}
		items[i] = ActivityDetail{Activity: activity, Logs: logs}
	}
	return items, nil
}

// completionRate computes completed/total*100 rounded to 2 decimal places,
// 0 when total is 0.
func completionRate(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(completed) / float64(total) * 100
	return math.Round(rate*100) / 100
}

// hasNegativeMetric reports whether any provided metric is negative.
// The metrics are counts and cannot go below zero.
func hasNegativeMetric(metrics ...*int) bool {
	for _, metric := range metrics {
		if metric != nil && *metric < 0 {
			return true
		}
	}
	return false
}
