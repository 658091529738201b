package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fittrack/internal/domain"
	"fittrack/internal/repository"
	"fittrack/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityHandler holds the activity service dependency.
type ActivityHandler struct {
	activityService service.ActivityService
	authService     service.AuthService // to embed the owner in responses
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityService service.ActivityService, authService service.AuthService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, authService: authService}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateActivityRequest defines the expected JSON for creating an activity.
type CreateActivityRequest struct {
	Title        string    `json:"title" binding:"required,max=200"`
	Description  string    `json:"description"`
	ActivityType string    `json:"activity_type" binding:"required,oneof=workout meal steps sleep hydration other"`
	Status       string    `json:"status" binding:"omitempty,oneof=planned in_progress completed cancelled"`
	PlannedDate  time.Time `json:"planned_date" binding:"required"`
	Notes        string    `json:"notes"`

	DurationMinutes  *int `json:"duration_minutes" binding:"omitempty,min=0"`
	CaloriesBurned   *int `json:"calories_burned" binding:"omitempty,min=0"`
	CaloriesConsumed *int `json:"calories_consumed" binding:"omitempty,min=0"`
	StepsCount       *int `json:"steps_count" binding:"omitempty,min=0"`
}

// UpdateActivityRequest defines the expected JSON for updating an activity.
// Omitted fields are left unchanged; the activity type and planned date are
// fixed at creation.
type UpdateActivityRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Status      *string `json:"status" binding:"omitempty,oneof=planned in_progress completed cancelled"`
	Notes       *string `json:"notes"`

	DurationMinutes  *int `json:"duration_minutes" binding:"omitempty,min=0"`
	CaloriesBurned   *int `json:"calories_burned" binding:"omitempty,min=0"`
	CaloriesConsumed *int `json:"calories_consumed" binding:"omitempty,min=0"`
	StepsCount       *int `json:"steps_count" binding:"omitempty,min=0"`
}

// BulkUpdateRequest defines the expected JSON for a bulk status update.
type BulkUpdateRequest struct {
	ActivityIDs []string `json:"activity_ids" binding:"required,min=1"`
	Status      string   `json:"status" binding:"required,oneof=planned in_progress completed cancelled"`
}

// ActivityLogResponse is the DTO for one status-transition log entry.
type ActivityLogResponse struct {
	ID        string    `json:"id"`
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityResponse is the DTO for returning activity details, owner and
// transition history embedded.
type ActivityResponse struct {
	ID            string       `json:"id"`
	User          UserResponse `json:"user"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	ActivityType  string       `json:"activity_type"`
	Status        string       `json:"status"`
	PlannedDate   time.Time    `json:"planned_date"`
	CompletedDate *time.Time   `json:"completed_date,omitempty"`

	DurationMinutes  *int `json:"duration_minutes,omitempty"`
	CaloriesBurned   *int `json:"calories_burned,omitempty"`
	CaloriesConsumed *int `json:"calories_consumed,omitempty"`
	StepsCount       *int `json:"steps_count,omitempty"`

	Notes     string                `json:"notes,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Logs      []ActivityLogResponse `json:"logs"`
}

// ActivityListResponse is one page of activities.
type ActivityListResponse struct {
	Count    int64              `json:"count"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Results  []ActivityResponse `json:"results"`
}

// MonthlyStatsResponse mirrors the statistics endpoint's monthly_stats block.
type MonthlyStatsResponse struct {
	TotalActivities      int64   `json:"total_activities"`
	CompletedActivities  int64   `json:"completed_activities"`
	PlannedActivities    int64   `json:"planned_activities"`
	InProgressActivities int64   `json:"in_progress_activities"`
	CompletionRate       float64 `json:"completion_rate"`
}

// TotalsResponse mirrors the statistics endpoint's totals block.
// Every sum is 0, never null, when nothing matched.
type TotalsResponse struct {
	CaloriesBurned   int64 `json:"calories_burned"`
	CaloriesConsumed int64 `json:"calories_consumed"`
	Steps            int64 `json:"steps"`
	DurationMinutes  int64 `json:"duration_minutes"`
}

// StatsResponse is the full statistics payload.
type StatsResponse struct {
	MonthlyStats     MonthlyStatsResponse `json:"monthly_stats"`
	Totals           TotalsResponse       `json:"totals"`
	ActivitiesByType map[string]int64     `json:"activities_by_type"`
}

// MapActivityLogToResponse converts a domain.ActivityLog to its DTO.
func MapActivityLogToResponse(log *domain.ActivityLog) ActivityLogResponse {
	resp := ActivityLogResponse{
		ID:        log.ID.Hex(),
		NewStatus: string(log.NewStatus),
		Notes:     log.Notes,
		CreatedAt: log.CreatedAt,
	}
	if log.OldStatus != nil {
		old := string(*log.OldStatus)
		resp.OldStatus = &old
	}
	return resp
}

// MapActivityDetailToResponse converts a service.ActivityDetail to the DTO,
// embedding the owning user.
func MapActivityDetailToResponse(detail *service.ActivityDetail, owner *domain.User) ActivityResponse {
	if detail == nil {
		return ActivityResponse{}
	}

	activity := detail.Activity
	logs := make([]ActivityLogResponse, len(detail.Logs))
	for i := range detail.Logs {
		logs[i] = MapActivityLogToResponse(&detail.Logs[i])
	}

	return ActivityResponse{
		ID:               activity.ID.Hex(),
		User:             MapUserToResponse(owner),
		Title:            activity.Title,
		Description:      activity.Description,
		ActivityType:     string(activity.ActivityType),
		Status:           string(activity.Status),
		PlannedDate:      activity.PlannedDate,
		CompletedDate:    activity.CompletedDate,
		DurationMinutes:  activity.DurationMinutes,
		CaloriesBurned:   activity.CaloriesBurned,
		CaloriesConsumed: activity.CaloriesConsumed,
		StepsCount:       activity.StepsCount,
		Notes:            activity.Notes,
		CreatedAt:        activity.CreatedAt,
		UpdatedAt:        activity.UpdatedAt,
		Logs:             logs,
	}
}

// MapActivityDetailsToResponse converts a slice of details to DTOs.
func MapActivityDetailsToResponse(details []service.ActivityDetail, owner *domain.User) []ActivityResponse {
	responses := make([]ActivityResponse, len(details))
	for i := range details {
		responses[i] = MapActivityDetailToResponse(&details[i], owner)
	}
	return responses
}

// --- Handler Methods ---

// requestUser resolves the authenticated user's ID and profile, used to
// embed the owner in every activity response.
func (h *ActivityHandler) requestUser(c *gin.Context) (primitive.ObjectID, *domain.User, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return primitive.NilObjectID, nil, false
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve user")
		return primitive.NilObjectID, nil, false
	}

	return userID, user, true
}

// activityIDParam parses the :id path parameter.
func activityIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, "Activity not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreateActivity godoc
// @Summary Create a new activity
// @Description Creates a new activity for the authenticated user.
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activity body CreateActivityRequest true "Activity details"
// @Success 201 {object} ActivityResponse "Activity created successfully"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /activities [post]
func (h *ActivityHandler) CreateActivity(c *gin.Context) {
	var req CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, user, ok := h.requestUser(c)
	if !ok {
		return
	}

	detail, err := h.activityService.Create(c.Request.Context(), userID, service.ActivityInput{
		Title:            req.Title,
		Description:      req.Description,
		ActivityType:     domain.ActivityType(req.ActivityType),
		Status:           domain.ActivityStatus(req.Status),
		PlannedDate:      req.PlannedDate,
		Notes:            req.Notes,
		DurationMinutes:  req.DurationMinutes,
		CaloriesBurned:   req.CaloriesBurned,
		CaloriesConsumed: req.CaloriesConsumed,
		StepsCount:       req.StepsCount,
	})
	if err != nil {
		if errors.Is(err, service.ErrActivityValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create activity")
		}
		return
	}

	c.JSON(http.StatusCreated, MapActivityDetailToResponse(detail, user))
}

// parseListFilter translates list query parameters into a repository filter.
// Unknown ordering fields are ignored; invalid enum filters are an error.
func parseListFilter(c *gin.Context) (repository.ActivityFilter, error) {
	var filter repository.ActivityFilter

	if raw := c.Query("activity_type"); raw != "" {
		activityType := domain.ActivityType(raw)
		if !activityType.IsValid() {
			return filter, fmt.Errorf("invalid activity_type %q", raw)
		}
		filter.ActivityType = &activityType
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.ActivityStatus(raw)
		if !status.IsValid() {
			return filter, fmt.Errorf("invalid status %q", raw)
		}
		filter.Status = &status
	}

	filter.Search = c.Query("search")

	ordering := c.DefaultQuery("ordering", "-"+repository.OrderByCreatedAt)
	field := strings.TrimPrefix(ordering, "-")
	switch field {
	case repository.OrderByCreatedAt, repository.OrderByPlannedDate, repository.OrderByUpdatedAt:
		filter.OrderBy = field
		filter.Ascending = !strings.HasPrefix(ordering, "-")
	default:
		// Unknown ordering falls back to the default order.
		filter.OrderBy = repository.OrderByCreatedAt
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil && pageSize > 0 && pageSize <= 100 {
		filter.PageSize = pageSize
	}

	return filter, nil
}

// ListActivities godoc
// @Summary List the authenticated user's activities
// @Description Owner-scoped listing with filtering, search, ordering and pagination.
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param activity_type query string false "Filter by activity type"
// @Param status query string false "Filter by status"
// @Param search query string false "Case-insensitive search over title/description"
// @Param ordering query string false "created_at|planned_date|updated_at, '-' prefix for descending"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} ActivityListResponse
// @Failure 400 {object} gin.H "Invalid filter value"
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /activities [get]
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, user, ok := h.requestUser(c)
	if !ok {
		return
	}

	page, err := h.activityService.List(c.Request.Context(), userID, filter)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve activities")
		return
	}

	c.JSON(http.StatusOK, ActivityListResponse{
		Count:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Results:  MapActivityDetailsToResponse(page.Items, user),
	})
}

// GetActivity godoc
// @Summary Retrieve a single activity
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 200 {object} ActivityResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found (including other users' activities)"
// @Router /activities/{id} [get]
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	activityID, ok := activityIDParam(c)
	if !ok {
		return
	}

	userID, user, ok := h.requestUser(c)
	if !ok {
		return
	}

	detail, err := h.activityService.Get(c.Request.Context(), userID, activityID)
	if err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve activity")
		}
		return
	}

	c.JSON(http.StatusOK, MapActivityDetailToResponse(detail, user))
}

// UpdateActivity godoc
// @Summary Update an activity
// @Description Partial update; a status change is recorded in the activity log.
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Param activity body UpdateActivityRequest true "Fields to update"
// @Success 200 {object} ActivityResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found"
// @Router /activities/{id} [patch]
func (h *ActivityHandler) UpdateActivity(c *gin.Context) {
	activityID, ok := activityIDParam(c)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, user, ok := h.requestUser(c)
	if !ok {
		return
	}

	var status *domain.ActivityStatus
	if req.Status != nil {
		converted := domain.ActivityStatus(*req.Status)
		status = &converted
	}

	detail, err := h.activityService.Update(c.Request.Context(), userID, activityID, service.ActivityUpdate{
		Title:            req.Title,
		Description:      req.Description,
		Status:           status,
		Notes:            req.Notes,
		DurationMinutes:  req.DurationMinutes,
		CaloriesBurned:   req.CaloriesBurned,
		CaloriesConsumed: req.CaloriesConsumed,
		StepsCount:       req.StepsCount,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrActivityValidation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update activity")
		}
		return
	}

	c.JSON(http.StatusOK, MapActivityDetailToResponse(detail, user))
}

// DeleteActivity godoc
// @Summary Delete an activity
// @Description Deletes an owner-scoped activity and its logs.
// @Tags Activities
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 204 "Deleted"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Not found"
// @Router /activities/{id} [delete]
func (h *ActivityHandler) DeleteActivity(c *gin.Context) {
	activityID, ok := activityIDParam(c)
	if !ok {
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.activityService.Delete(c.Request.Context(), userID, activityID); err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to delete activity")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ActivityStats godoc
// @Summary Monthly activity statistics
// @Description Statistics for the calendar month containing now.
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /activities/stats [get]
func (h *ActivityHandler) ActivityStats(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	stats, err := h.activityService.Stats(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	byType := make(map[string]int64, len(stats.ByType))
	for activityType, count := range stats.ByType {
		byType[string(activityType)] = count
	}

	c.JSON(http.StatusOK, StatsResponse{
		MonthlyStats: MonthlyStatsResponse{
			TotalActivities:      stats.Rollup.TotalActivities,
			CompletedActivities:  stats.Rollup.CompletedActivities,
			PlannedActivities:    stats.Rollup.PlannedActivities,
			InProgressActivities: stats.Rollup.InProgressActivities,
			CompletionRate:       stats.CompletionRate,
		},
		Totals: TotalsResponse{
			CaloriesBurned:   stats.Rollup.CaloriesBurned,
			CaloriesConsumed: stats.Rollup.CaloriesConsumed,
			Steps:            stats.Rollup.Steps,
			DurationMinutes:  stats.Rollup.DurationMinutes,
		},
		ActivitiesByType: byType,
	})
}

// BulkUpdateStatus godoc
// @Summary Bulk status update
// @Description Moves every owned activity in the set to the target status, logging each real change.
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkUpdateRequest true "Activity IDs and target status"
// @Success 200 {object} gin.H "updated_count and message"
// @Failure 400 {object} gin.H "Empty ID set, missing or invalid status"
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /activities/bulk-update [post]
func (h *ActivityHandler) BulkUpdateStatus(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "activity_ids and status are required")
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	// Malformed IDs can't belong to the caller; they are skipped like any
	// other unknown ID rather than failing the batch.
	ids := make([]primitive.ObjectID, 0, len(req.ActivityIDs))
	for _, raw := range req.ActivityIDs {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			ids = append(ids, id)
		}
	}

	updated := 0
	if len(ids) > 0 {
		updated, err = h.activityService.BulkUpdateStatus(c.Request.Context(), userID, ids, domain.ActivityStatus(req.Status))
		if err != nil {
			if errors.Is(err, service.ErrActivityValidation) {
				abortWithError(c, http.StatusBadRequest, err.Error())
			} else {
				abortWithError(c, http.StatusInternalServerError, "Failed to update activities")
			}
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("Updated %d activities", updated),
		"updated_count": updated,
	})
}

// RecentActivities godoc
// @Summary Most recently updated activities
// @Description Returns the caller's most recently updated activities; a non-numeric limit falls back to 10.
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param limit query string false "Maximum number of activities (default 10)"
// @Success 200 {array} ActivityResponse
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /activities/recent [get]
func (h *ActivityHandler) RecentActivities(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		limit = 10
	}

	userID, user, ok := h.requestUser(c)
	if !ok {
		return
	}

	recent, err := h.activityService.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve recent activities")
		return
	}

	c.JSON(http.StatusOK, MapActivityDetailsToResponse(recent, user))
}
