package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityType classifies what kind of event an activity tracks.
type ActivityType string

const (
	ActivityTypeWorkout   ActivityType = "workout"
	ActivityTypeMeal      ActivityType = "meal"
	ActivityTypeSteps     ActivityType = "steps"
	ActivityTypeSleep     ActivityType = "sleep"
	ActivityTypeHydration ActivityType = "hydration"
	ActivityTypeOther     ActivityType = "other"
)

// ActivityTypes lists every recognized activity type.
var ActivityTypes = []ActivityType{
	ActivityTypeWorkout,
	ActivityTypeMeal,
	ActivityTypeSteps,
	ActivityTypeSleep,
	ActivityTypeHydration,
	ActivityTypeOther,
}

// IsValid reports whether t is one of the recognized activity types.
func (t ActivityType) IsValid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ActivityStatus tracks where an activity is in its lifecycle.
type ActivityStatus string

const (
	StatusPlanned    ActivityStatus = "planned"
	StatusInProgress ActivityStatus = "in_progress"
	StatusCompleted  ActivityStatus = "completed"
	StatusCancelled  ActivityStatus = "cancelled"
)

// ActivityStatuses lists every recognized status value.
var ActivityStatuses = []ActivityStatus{
	StatusPlanned,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// IsValid reports whether s is one of the recognized status values.
func (s ActivityStatus) IsValid() bool {
	for _, known := range ActivityStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Activity represents a single trackable fitness/health event owned by a user.
type Activity struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"-"` // Owner; activities are never shared
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	ActivityType  ActivityType       `bson:"activityType" json:"activity_type"`
	Status        ActivityStatus     `bson:"status" json:"status"`
	PlannedDate   time.Time          `bson:"plannedDate" json:"planned_date"`
	CompletedDate *time.Time         `bson:"completedDate,omitempty" json:"completed_date,omitempty"`

	// Optional numeric metrics, all non-negative when present.
	DurationMinutes  *int `bson:"durationMinutes,omitempty" json:"duration_minutes,omitempty"`
	CaloriesBurned   *int `bson:"caloriesBurned,omitempty" json:"calories_burned,omitempty"`
	CaloriesConsumed *int `bson:"caloriesConsumed,omitempty" json:"calories_consumed,omitempty"`
	StepsCount       *int `bson:"stepsCount,omitempty" json:"steps_count,omitempty"`

	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// EnsureCompletedDate stamps CompletedDate with now when the activity is
// completed and no completion time has been recorded yet. The repository
// layer calls this on every save, not just on the completing transition.
func (a *Activity) EnsureCompletedDate(now time.Time) {
	if a.Status == StatusCompleted && a.CompletedDate == nil {
		completed := now
		a.CompletedDate = &completed
	}
}

// ActivityLog is an immutable audit record of one status transition on an
// activity. Logs are append-only and are removed only when their parent
// activity is deleted.
type ActivityLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID primitive.ObjectID `bson:"activityId" json:"-"`
	OldStatus  *ActivityStatus    `bson:"oldStatus,omitempty" json:"old_status"` // nil for the very first entry
	NewStatus  ActivityStatus     `bson:"newStatus" json:"new_status"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"created_at"`
}

// MonthStart returns the first instant of the calendar month containing t,
// in t's location. The statistics window runs from here through "now" rather
// than a trailing 30-day window.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
