/*
handlers.go - HTTP API handlers for the points ledger service

PURPOSE:
  Exposes the ledger engine and ranking service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users/{fid}       Account stats with rank
    GET    /api/activities/{fid}  Activity catalog with claim state

  Points:
    POST   /api/claim-points      Claim an activity's points
    POST   /api/redeem-reward     Spend points on a reward

  Catalog:
    GET    /api/rewards           Reward catalog
    GET    /api/leaderboard       Ranked accounts (all-time | weekly)

  Admin:
    GET    /api/stats             Ledger-wide aggregates
    POST   /api/admin/reset-weekly Manual weekly score reset

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, ranking)
  4. Serialize response
  5. Map domain errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient points
  - 404: Unknown activity or reward
  - 409: Claim not currently eligible
  - 500: Storage/internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Automated weekly reset
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fayed99/base-app/ledger"
	"github.com/Fayed99/base-app/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *ledger.Engine
	Ranking *ledger.RankingService
	Store   ledger.Store

	// LeaderboardLimit is served when a request carries no ?limit. Zero
	// falls back to ledger.DefaultLeaderboardLimit.
	LeaderboardLimit int
}

// NewHandler creates a new handler around the engine and ranking service.
func NewHandler(engine *ledger.Engine, ranking *ledger.RankingService, store ledger.Store) *Handler {
	return &Handler{
		Engine:  engine,
		Ranking: ranking,
		Store:   store,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GetUser returns an account's stats including its current all-time rank.
// GET /api/users/{fid}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	acct, err := h.Engine.GetAccount(r.Context(), fid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rank, err := h.Ranking.Rank(r.Context(), fid, ledger.PeriodAllTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserStatsDTO{
		FID:            int64(acct.ID),
		DisplayName:    acct.DisplayName,
		Points:         acct.TotalPoints,
		Rank:           rank,
		Streak:         acct.Streak,
		WeeklyPoints:   acct.WeeklyPoints,
		TotalReferrals: acct.ReferralCount,
	})
}

// GetActivities returns the activity catalog joined with the account's
// claim state.
// GET /api/activities/{fid}
func (h *Handler) GetActivities(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	views, err := h.Engine.ListActivities(r.Context(), fid)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ActivityDTO, len(views))
	for i, v := range views {
		dtos[i] = ActivityDTO{
			ID:          string(v.ID),
			Title:       v.Title,
			Description: v.Description,
			Points:      v.Points,
			Icon:        v.Icon,
			Action:      v.Action,
			Completed:   v.Completed,
			Claimable:   v.Claimable,
		}
	}

	writeJSON(w, http.StatusOK, ActivitiesResponse{
		FID:        int64(fid),
		Activities: dtos,
	})
}

// =============================================================================
// CLAIM / REDEEM HANDLERS
// =============================================================================

// ClaimPoints credits an activity's points to an account.
// POST /api/claim-points
func (h *Handler) ClaimPoints(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FID <= 0 || req.ActivityID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: fid, activityId", nil)
		return
	}

	acct, awarded, err := h.Engine.ClaimActivity(
		r.Context(), ledger.AccountID(req.FID), ledger.ActivityID(req.ActivityID))
	if err != nil {
		metrics.ClaimsRejected.WithLabelValues(rejectReason(err)).Inc()
		writeDomainError(w, err)
		return
	}

	metrics.ClaimsTotal.WithLabelValues(req.ActivityID).Inc()
	metrics.PointsIssued.Add(float64(awarded))
	h.Ranking.Invalidate()

	writeJSON(w, http.StatusOK, ClaimResponse{
		Success:       true,
		Message:       "Claimed " + strconv.FormatInt(awarded, 10) + " points for activity " + req.ActivityID,
		PointsAwarded: awarded,
		TotalPoints:   acct.TotalPoints,
		Streak:        acct.Streak,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// RedeemReward spends an account's points on a catalog reward.
// POST /api/redeem-reward
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FID <= 0 || req.RewardID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: fid, rewardId", nil)
		return
	}

	acct, spent, err := h.Engine.RedeemReward(
		r.Context(), ledger.AccountID(req.FID), ledger.RewardID(req.RewardID))
	if err != nil {
		metrics.RedemptionsRejected.WithLabelValues(rejectReason(err)).Inc()
		writeDomainError(w, err)
		return
	}

	metrics.RedemptionsTotal.WithLabelValues(req.RewardID).Inc()
	metrics.PointsSpent.Add(float64(spent))

	reward, _ := h.Engine.Rewards.Reward(ledger.RewardID(req.RewardID))
	writeJSON(w, http.StatusOK, RedeemResponse{
		Success:        true,
		Message:        "Reward " + reward.Title + " redeemed successfully",
		RewardID:       req.RewardID,
		RewardTitle:    reward.Title,
		PointsDeducted: spent,
		PointsLeft:     acct.TotalPoints,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// GetRewards returns the reward catalog.
// GET /api/rewards
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.Engine.Rewards.Rewards()
	dtos := make([]RewardDTO, len(rewards))
	for i, rw := range rewards {
		dtos[i] = RewardDTO{
			ID:          string(rw.ID),
			Title:       rw.Title,
			Description: rw.Description,
			Cost:        rw.Cost,
			Icon:        rw.Icon,
			Tier:        string(rw.Tier),
			Available:   rw.Available,
		}
	}
	writeJSON(w, http.StatusOK, RewardsResponse{Rewards: dtos})
}

// GetLeaderboard returns the ranked accounts for the requested period.
// GET /api/leaderboard?period=all-time|weekly&limit=N
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := ledger.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = ledger.PeriodAllTime
	}
	if !period.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid period (use all-time or weekly)", nil)
		return
	}

	limit := h.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Ranking.Leaderboard(r.Context(), period, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{
			FID:          int64(e.AccountID),
			DisplayName:  e.DisplayName,
			Points:       e.Score,
			WeeklyPoints: e.WeeklyPoints,
			Streak:       e.Streak,
			Rank:         e.Rank,
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Entries:   dtos,
		Period:    string(period),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetStats returns ledger-wide aggregates.
// GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		Accounts:          int64(stats.Accounts),
		Claims:            stats.Claims,
		Redemptions:       stats.Redemptions,
		PointsIssued:      stats.PointsIssued,
		PointsSpent:       stats.PointsSpent,
		PointsOutstanding: stats.PointsOutstanding,
		AveragePoints:     stats.AveragePoints.StringFixed(2),
	})
}

// ResetWeekly zeroes all weekly scores for the current ISO week, if not
// already done.
// POST /api/admin/reset-weekly
func (h *Handler) ResetWeekly(w http.ResponseWriter, r *http.Request) {
	weekKey := ledger.WeekKey(time.Now().UTC())

	// The store claims the week key and zeroes scores as one atomic unit,
	// so a concurrent resetter (the scheduler, another instance) cannot
	// reset the same week twice.
	n, applied, err := h.Store.ResetWeeklyPoints(r.Context(), weekKey)
	if err != nil {
		writeDomainError(w, ledger.NewStorageError("weekly reset", err))
		return
	}
	if !applied {
		writeJSON(w, http.StatusOK, WeeklyResetResponse{
			WeekKey:     weekKey,
			AlreadyDone: true,
		})
		return
	}

	metrics.WeeklyResets.Inc()
	h.Ranking.Invalidate()

	writeJSON(w, http.StatusOK, WeeklyResetResponse{
		WeekKey:       weekKey,
		AccountsReset: n,
	})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseFID(w http.ResponseWriter, r *http.Request) (ledger.AccountID, bool) {
	raw := chi.URLParam(r, "fid")
	fid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fid <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid FID", err)
		return 0, false
	}
	return ledger.AccountID(fid), true
}

// writeDomainError maps ledger errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownActivity):
		writeError(w, http.StatusNotFound, "Unknown activity", err)
	case errors.Is(err, ledger.ErrUnknownReward):
		writeError(w, http.StatusNotFound, "Unknown reward", err)
	case errors.Is(err, ledger.ErrNotEligible):
		resp := ErrorResponse{Error: "Activity not currently claimable", Details: err.Error()}
		var ne *ledger.NotEligibleError
		if errors.As(err, &ne) && !ne.RetryAt.IsZero() {
			resp.RetryAt = ne.RetryAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, ledger.ErrInsufficientPoints):
		resp := ErrorResponse{Error: "Insufficient points", Details: err.Error()}
		var ip *ledger.InsufficientPointsError
		if errors.As(err, &ip) {
			resp.Required = ip.Required
			resp.Available = ip.Available
		}
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// rejectReason labels an error for the rejection counters.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnknownActivity), errors.Is(err, ledger.ErrUnknownReward):
		return "unknown"
	case errors.Is(err, ledger.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ledger.ErrInsufficientPoints):
		return "insufficient_points"
	default:
		return "storage"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
