package domain

// MonthlyRollup is the raw output of the monthly aggregation over a user's
// activities: status counts plus metric sums. Sums are zero (never null)
// when no rows match.
type MonthlyRollup struct {
	TotalActivities      int64 `bson:"totalActivities"`
	CompletedActivities  int64 `bson:"completedActivities"`
	PlannedActivities    int64 `bson:"plannedActivities"`
	InProgressActivities int64 `bson:"inProgressActivities"`

	CaloriesBurned   int64 `bson:"caloriesBurned"`
	CaloriesConsumed int64 `bson:"caloriesConsumed"`
	Steps            int64 `bson:"steps"`
	DurationMinutes  int64 `bson:"durationMinutes"`
}

// ActivityStats is the assembled statistics result for one user's current
// calendar month.
type ActivityStats struct {
	Rollup MonthlyRollup
	// CompletionRate is completed/total*100 rounded to 2 decimal places,
	// 0 when the month has no activities.
	CompletionRate float64
	// ByType maps activity type to count; zero-count types are omitted.
	ByType map[ActivityType]int64
}
