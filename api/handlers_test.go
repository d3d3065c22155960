package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fayed99/base-app/api"
	"github.com/Fayed99/base-app/ledger"
	"github.com/Fayed99/base-app/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.TxMemory) {
	t.Helper()

	mem := store.NewTxMemory()
	engine := ledger.NewEngine(mem, ledger.DefaultActivityCatalog(), ledger.DefaultRewardCatalog())
	ranking := ledger.NewRankingService(mem, time.Minute)
	handler := api.NewHandler(engine, ranking, mem)

	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, mem
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

func TestAPI_GetUser_CreatesOnFirstTouch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, float64(42), body["fid"])
	assert.Equal(t, "User42", body["displayName"])
	assert.Equal(t, float64(0), body["points"])
	assert.Equal(t, float64(1), body["rank"], "nobody scores above zero")
}

func TestAPI_GetUser_InvalidFID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetActivities_ReflectsClaimState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "daily-login"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/activities/42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	activities := body["activities"].([]any)
	require.Len(t, activities, 6)

	for _, raw := range activities {
		a := raw.(map[string]any)
		if a["id"] == "daily-login" {
			assert.Equal(t, true, a["completed"])
			assert.Equal(t, false, a["claimable"])
		}
		if a["id"] == "share-profile" {
			assert.Equal(t, false, a["completed"])
			assert.Equal(t, true, a["claimable"])
		}
	}
}

// =============================================================================
// CLAIM ENDPOINT
// =============================================================================

func TestAPI_ClaimPoints_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "daily-login"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(10), body["pointsAwarded"])
	assert.Equal(t, float64(10), body["totalPoints"])
}

func TestAPI_ClaimPoints_DuplicateDailyRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "daily-login"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "daily-login"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["retryAt"], "windowed rejection carries the reopen time")
}

func TestAPI_ClaimPoints_UnknownActivity(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "free-money"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ClaimPoints_MissingFields(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REDEEM ENDPOINT
// =============================================================================

func TestAPI_RedeemReward_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	// 100 points via a referral.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 42, ActivityID: "refer-friend"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/redeem-reward",
		api.RedeemRequest{FID: 42, RewardID: "discount-5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "5% Discount", body["rewardTitle"])
	assert.Equal(t, float64(100), body["pointsDeducted"])
	assert.Equal(t, float64(0), body["pointsLeft"])
}

func TestAPI_RedeemReward_InsufficientPoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/redeem-reward",
		api.RedeemRequest{FID: 42, RewardID: "discount-5"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, float64(100), body["required"])
	assert.Nil(t, body["available"], "zero available is omitted")
}

func TestAPI_RedeemReward_UnknownReward(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/redeem-reward",
		api.RedeemRequest{FID: 42, RewardID: "moon-ticket"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// LEADERBOARD / REWARDS
// =============================================================================

func TestAPI_Leaderboard_RanksAndPeriods(t *testing.T) {
	srv, _ := newTestServer(t)

	// fid 1 earns 100, fid 2 earns 200.
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 1, ActivityID: "refer-friend"})
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 2, ActivityID: "refer-friend"})
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 2, ActivityID: "refer-friend"})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "all-time", body["period"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	assert.Equal(t, float64(2), first["fid"])
	assert.Equal(t, float64(200), first["points"])
	assert.Equal(t, float64(1), first["rank"])
}

func TestAPI_Leaderboard_ConfiguredDefaultLimit(t *testing.T) {
	mem := store.NewTxMemory()
	engine := ledger.NewEngine(mem, ledger.DefaultActivityCatalog(), ledger.DefaultRewardCatalog())
	ranking := ledger.NewRankingService(mem, 0)
	handler := api.NewHandler(engine, ranking, mem)
	handler.LeaderboardLimit = 1

	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)

	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 1, ActivityID: "refer-friend"})
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 2, ActivityID: "refer-friend"})

	// No ?limit: the configured default applies.
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"].([]any), 1)

	// An explicit ?limit still wins.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/leaderboard?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"].([]any), 2)
}

func TestAPI_Leaderboard_InvalidPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/leaderboard?period=fortnightly", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Rewards_FullCatalog(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/rewards", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rewards := body["rewards"].([]any)
	assert.Len(t, rewards, 6, "catalog lists unavailable rewards too")
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_ResetWeekly_Idempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 1, ActivityID: "refer-friend"})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/admin/reset-weekly", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["accountsReset"])

	// Points earned after the reset, still within the same week.
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 1, ActivityID: "daily-login"})

	// Same week again: nothing to do, and the fresh points survive.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/admin/reset-weekly", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["alreadyDone"])

	_, user := doJSON(t, http.MethodGet, srv.URL+"/api/users/1", nil)
	assert.Equal(t, float64(10), user["weeklyPoints"])
	assert.Equal(t, float64(110), user["points"])
}

func TestAPI_Stats(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 1, ActivityID: "refer-friend"})
	doJSON(t, http.MethodPost, srv.URL+"/api/claim-points",
		api.ClaimRequest{FID: 2, ActivityID: "refer-friend"})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, float64(2), body["accounts"])
	assert.Equal(t, float64(200), body["pointsIssued"])
	assert.Equal(t, "100.00", body["averagePoints"])
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
