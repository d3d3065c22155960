/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are deliberately
  separate from domain types so the wire format can stay stable while the
  domain evolves.

CONVENTIONS:
  - camelCase JSON fields (what the frontend expects)
  - Timestamps as RFC3339 strings
  - Error responses always use ErrorResponse

SEE ALSO:
  - handlers.go: Where these are populated
*/
package api

// =============================================================================
// USER / ACCOUNT
// =============================================================================

// UserStatsDTO is the account summary returned by GET /api/users/{fid}.
type UserStatsDTO struct {
	FID            int64  `json:"fid"`
	DisplayName    string `json:"displayName"`
	Points         int64  `json:"points"`
	Rank           int    `json:"rank"`
	Streak         int    `json:"streak"`
	WeeklyPoints   int64  `json:"weeklyPoints"`
	TotalReferrals int    `json:"totalReferrals"`
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// ActivityDTO is one catalog entry joined with the account's claim state.
type ActivityDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
	Icon        string `json:"icon"`
	Action      string `json:"action,omitempty"`
	Completed   bool   `json:"completed"`
	Claimable   bool   `json:"claimable"`
}

// ActivitiesResponse wraps the activity list for GET /api/activities/{fid}.
type ActivitiesResponse struct {
	FID        int64         `json:"fid"`
	Activities []ActivityDTO `json:"activities"`
}

// ClaimRequest is the body of POST /api/claim-points.
type ClaimRequest struct {
	FID        int64  `json:"fid"`
	ActivityID string `json:"activityId"`
}

// ClaimResponse confirms a successful claim.
type ClaimResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	PointsAwarded int64  `json:"pointsAwarded"`
	TotalPoints   int64  `json:"totalPoints"`
	Streak        int    `json:"streak"`
	Timestamp     string `json:"timestamp"`
}

// =============================================================================
// LEADERBOARD
// =============================================================================

// LeaderboardEntryDTO is one row of the leaderboard.
type LeaderboardEntryDTO struct {
	FID          int64  `json:"fid"`
	DisplayName  string `json:"displayName"`
	Points       int64  `json:"points"`
	WeeklyPoints int64  `json:"weeklyPoints"`
	Streak       int    `json:"streak"`
	Rank         int    `json:"rank"`
}

// LeaderboardResponse wraps the ranked entries for GET /api/leaderboard.
type LeaderboardResponse struct {
	Entries   []LeaderboardEntryDTO `json:"entries"`
	Period    string                `json:"period"`
	UpdatedAt string                `json:"updatedAt"`
}

// =============================================================================
// REWARDS
// =============================================================================

// RewardDTO is one entry of the reward catalog.
type RewardDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Icon        string `json:"icon"`
	Tier        string `json:"tier"`
	Available   bool   `json:"available"`
}

// RewardsResponse wraps the catalog for GET /api/rewards.
type RewardsResponse struct {
	Rewards []RewardDTO `json:"rewards"`
}

// RedeemRequest is the body of POST /api/redeem-reward.
type RedeemRequest struct {
	FID      int64  `json:"fid"`
	RewardID string `json:"rewardId"`
}

// RedeemResponse confirms a successful redemption.
type RedeemResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RewardID       string `json:"rewardId"`
	RewardTitle    string `json:"rewardTitle"`
	PointsDeducted int64  `json:"pointsDeducted"`
	PointsLeft     int64  `json:"pointsLeft"`
	Timestamp      string `json:"timestamp"`
}

// =============================================================================
// ADMIN
// =============================================================================

// StatsDTO is the aggregate view returned by GET /api/stats.
type StatsDTO struct {
	Accounts          int64  `json:"accounts"`
	Claims            int64  `json:"claims"`
	Redemptions       int64  `json:"redemptions"`
	PointsIssued      int64  `json:"pointsIssued"`
	PointsSpent       int64  `json:"pointsSpent"`
	PointsOutstanding int64  `json:"pointsOutstanding"`
	AveragePoints     string `json:"averagePoints"`
}

// WeeklyResetResponse reports the outcome of POST /api/admin/reset-weekly.
type WeeklyResetResponse struct {
	WeekKey       string `json:"weekKey"`
	AccountsReset int64  `json:"accountsReset"`
	AlreadyDone   bool   `json:"alreadyDone"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Required  int64  `json:"required,omitempty"`
	Available int64  `json:"available,omitempty"`
	RetryAt   string `json:"retryAt,omitempty"`
}
