package repository

import (
	"context"
	"time"

	"fittrack/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate entry")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Allowed ordering fields for activity listings.
const (
	OrderByCreatedAt   = "created_at"
	OrderByPlannedDate = "planned_date"
	OrderByUpdatedAt   = "updated_at"
)

// ActivityFilter narrows and orders an owner-scoped activity listing.
// Zero values mean "no constraint"; OrderBy defaults to created_at descending.
type ActivityFilter struct {
	ActivityType *domain.ActivityType
	Status       *domain.ActivityStatus
	Search       string // case-insensitive substring match on title/description
	OrderBy      string // one of the OrderBy* constants
	Ascending    bool
	Page         int
	PageSize     int
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// ActivityRepository defines the interface for interacting with activity data.
// Every read and mutation that takes an owner ID filters by it at query time;
// another user's activity behaves exactly like a missing one.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*domain.Activity, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID, filter ActivityFilter) ([]domain.Activity, int64, error)
	ListByIDs(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID) ([]domain.Activity, error)
	ListRecent(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]domain.Activity, error)
	CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error)
	Update(ctx context.Context, activity *domain.Activity) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error

	// MonthlyRollup aggregates status counts and metric sums over activities
	// created at or after since.
	MonthlyRollup(ctx context.Context, ownerID primitive.ObjectID, since time.Time) (domain.MonthlyRollup, error)
	// CountByTypeSince counts activities per type created at or after since.
	// Types with no activities do not appear in the result.
	CountByTypeSince(ctx context.Context, ownerID primitive.ObjectID, since time.Time) (map[domain.ActivityType]int64, error)
}

// ActivityLogRepository defines the interface for the append-only status
// transition log. Logs are never updated; they are deleted only together
// with their parent activity.
type ActivityLogRepository interface {
	Create(ctx context.Context, log *domain.ActivityLog) (primitive.ObjectID, error)
	GetByActivityID(ctx context.Context, activityID primitive.ObjectID) ([]domain.ActivityLog, error)
	GetByActivityIDs(ctx context.Context, activityIDs []primitive.ObjectID) (map[primitive.ObjectID][]domain.ActivityLog, error)
	DeleteByActivityID(ctx context.Context, activityID primitive.ObjectID) error
}

// TokenRepository tracks revoked refresh tokens by their JWT ID until the
// token would have expired anyway.
type TokenRepository interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
