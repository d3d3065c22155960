package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fayed99/base-app/ledger"
	"github.com/Fayed99/base-app/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testClock is a settable clock for driving window-based rules.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Wednesday, mid-week, mid-day: windows won't roll over by accident.
var testEpoch = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*ledger.Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: testEpoch}
	engine := ledger.NewEngine(store.NewTxMemory(),
		ledger.DefaultActivityCatalog(), ledger.DefaultRewardCatalog())
	engine.Now = clock.Now
	return engine, clock
}

// =============================================================================
// CLAIM TESTS
// =============================================================================

func TestEngine_Claim_CreditsPoints(t *testing.T) {
	// GIVEN: A fresh account
	// WHEN: Claiming daily-login
	// THEN: 10 points land on both the all-time and weekly balances

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	acct, awarded, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	assert.Equal(t, int64(10), awarded)
	assert.Equal(t, int64(10), acct.TotalPoints)
	assert.Equal(t, int64(10), acct.WeeklyPoints)
	assert.Equal(t, 1, acct.Streak)
	assert.Equal(t, "User42", acct.DisplayName)
}

func TestEngine_Claim_UnknownActivity(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, _, err := engine.ClaimActivity(context.Background(), 42, "free-money")
	assert.ErrorIs(t, err, ledger.ErrUnknownActivity)

	// Nothing was created for the account.
	acct, err := engine.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.TotalPoints)
}

func TestEngine_ClaimHistory_KeepsClaimTimeCatalogValue(t *testing.T) {
	// GIVEN: daily-login claimed while the catalog awards 10 points
	// WHEN: The catalog value changes and a new day's claim lands
	// THEN: The stored record and the credited balance keep the claim-time value

	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, awarded, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)
	require.Equal(t, int64(10), awarded)

	engine.Activities = ledger.NewStaticActivityCatalog([]ledger.Activity{{
		ID: "daily-login", Title: "Daily Login", Points: 99,
		Recurrence: ledger.RecurrenceDaily, Action: "Daily",
	}})

	clock.Advance(24 * time.Hour)
	acct, awarded, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)
	assert.Equal(t, int64(99), awarded)
	assert.Equal(t, int64(109), acct.TotalPoints, "already-credited points are untouched")

	history, err := engine.Store.ClaimsByActivity(ctx, 42, "daily-login")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(10), history[0].PointsAwarded,
		"a catalog change never rewrites recorded claims")
	assert.Equal(t, int64(99), history[1].PointsAwarded)
}

func TestEngine_DailyClaim_SecondSameDayRejected(t *testing.T) {
	// GIVEN: daily-login already claimed today
	// WHEN: Claiming again the same UTC day
	// THEN: Rejected with RetryAt at next midnight; balance unchanged

	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, _, err = engine.ClaimActivity(ctx, 42, "daily-login")
	assert.ErrorIs(t, err, ledger.ErrNotEligible)

	var ne *ledger.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), ne.RetryAt)

	acct, err := engine.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acct.TotalPoints)
}

func TestEngine_DailyClaim_NextDayExtendsStreak(t *testing.T) {
	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	acct, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	assert.Equal(t, 2, acct.Streak)
	assert.Equal(t, int64(20), acct.TotalPoints)
}

func TestEngine_Streak_GapResets(t *testing.T) {
	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, _, err = engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	// Skip a day.
	clock.Advance(48 * time.Hour)
	acct, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	assert.Equal(t, 1, acct.Streak, "a missed day restarts the streak")
}

func TestEngine_OnceClaim_SecondRejectedEvenLater(t *testing.T) {
	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "share-profile")
	require.NoError(t, err)

	clock.Advance(30 * 24 * time.Hour)
	_, _, err = engine.ClaimActivity(ctx, 42, "share-profile")
	assert.ErrorIs(t, err, ledger.ErrNotEligible)
}

func TestEngine_WeeklyClaim_NewISOWeekAllowed(t *testing.T) {
	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "complete-task")
	require.NoError(t, err)

	// Friday, same ISO week: still blocked.
	clock.Set(time.Date(2026, time.March, 6, 12, 0, 0, 0, time.UTC))
	_, _, err = engine.ClaimActivity(ctx, 42, "complete-task")
	require.ErrorIs(t, err, ledger.ErrNotEligible)

	var ne *ledger.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), ne.RetryAt,
		"retry opens on Monday")

	// Monday next week: allowed.
	clock.Set(time.Date(2026, time.March, 9, 0, 0, 1, 0, time.UTC))
	acct, _, err := engine.ClaimActivity(ctx, 42, "complete-task")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.TotalPoints)
}

func TestEngine_PerReferral_RepeatableAndCounted(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := engine.ClaimActivity(ctx, 42, "refer-friend")
		require.NoError(t, err)
	}

	acct, err := engine.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.ReferralCount)
	assert.Equal(t, int64(300), acct.TotalPoints)
}

func TestEngine_StreakBonus_GatedOnStreakLength(t *testing.T) {
	// GIVEN: An account with a six-day streak
	// WHEN: Claiming streak-bonus
	// THEN: Rejected until the streak reaches seven days, then claimable once

	engine, clock := newTestEngine(t)
	ctx := context.Background()

	for day := 0; day < 6; day++ {
		_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}

	_, _, err := engine.ClaimActivity(ctx, 42, "streak-bonus")
	assert.ErrorIs(t, err, ledger.ErrNotEligible, "six days is not enough")

	// Seventh consecutive day.
	_, _, err = engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	acct, awarded, err := engine.ClaimActivity(ctx, 42, "streak-bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(200), awarded)
	assert.Equal(t, 7, acct.Streak)

	// One-shot: a second streak bonus is never granted.
	_, _, err = engine.ClaimActivity(ctx, 42, "streak-bonus")
	assert.ErrorIs(t, err, ledger.ErrNotEligible)
}

func TestEngine_ConcurrentDailyClaims_ExactlyOneSucceeds(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = engine.ClaimActivity(ctx, 42, "daily-login")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrNotEligible)
		}
	}
	assert.Equal(t, 1, successes)

	acct, err := engine.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acct.TotalPoints, "only one claim may credit points")
}

// =============================================================================
// REDEEM TESTS
// =============================================================================

func earnPoints(t *testing.T, engine *ledger.Engine, id ledger.AccountID, referrals int) {
	t.Helper()
	for i := 0; i < referrals; i++ {
		_, _, err := engine.ClaimActivity(context.Background(), id, "refer-friend")
		require.NoError(t, err)
	}
}

func TestEngine_Redeem_DeductsPointsButNotWeeklyScore(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	earnPoints(t, engine, 42, 1) // 100 points

	acct, spent, err := engine.RedeemReward(ctx, 42, "discount-5")
	require.NoError(t, err)

	assert.Equal(t, int64(100), spent)
	assert.Equal(t, int64(0), acct.TotalPoints)
	assert.Equal(t, int64(100), acct.WeeklyPoints, "redemption must not erase weekly earnings")
}

func TestEngine_Redeem_InsufficientPoints(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	earnPoints(t, engine, 42, 1) // 100 points

	_, _, err := engine.RedeemReward(ctx, 42, "nft-drop") // costs 250
	require.ErrorIs(t, err, ledger.ErrInsufficientPoints)

	var ip *ledger.InsufficientPointsError
	require.ErrorAs(t, err, &ip)
	assert.Equal(t, int64(250), ip.Required)
	assert.Equal(t, int64(100), ip.Available)

	// Failed redemption leaves the balance untouched.
	acct, err := engine.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.TotalPoints)
}

func TestEngine_Redeem_UnknownReward(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, _, err := engine.RedeemReward(context.Background(), 42, "moon-ticket")
	assert.ErrorIs(t, err, ledger.ErrUnknownReward)
}

func TestEngine_Redeem_UnavailableReward(t *testing.T) {
	engine, _ := newTestEngine(t)
	earnPoints(t, engine, 42, 5)

	// early-access exists in the catalog but is not available.
	_, _, err := engine.RedeemReward(context.Background(), 42, "early-access")
	assert.ErrorIs(t, err, ledger.ErrUnknownReward)
}

func TestEngine_ConcurrentRedemptions_BalanceNeverGoesNegative(t *testing.T) {
	// GIVEN: 500 points, two concurrent redemptions of a 500-point reward
	// WHEN: Both race for the balance
	// THEN: Exactly one wins; the loser sees the post-deduction balance

	engine, _ := newTestEngine(t)
	ctx := context.Background()
	earnPoints(t, engine, 42, 5) // 500 points

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = engine.RedeemReward(ctx, 42, "base-usdc")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			var ip *ledger.InsufficientPointsError
			require.ErrorAs(t, err, &ip)
			assert.Equal(t, int64(500), ip.Required)
			assert.Equal(t, int64(0), ip.Available)
		}
	}
	assert.Equal(t, 1, successes)

	acct, err := engine.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.TotalPoints)
}

// =============================================================================
// ACTIVITY VIEW TESTS
// =============================================================================

func TestEngine_ListActivities_ClaimState(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	views, err := engine.ListActivities(ctx, 42)
	require.NoError(t, err)
	require.Len(t, views, 6)

	byID := make(map[ledger.ActivityID]ledger.ActivityView)
	for _, v := range views {
		byID[v.ID] = v
	}

	assert.True(t, byID["daily-login"].Completed)
	assert.False(t, byID["daily-login"].Claimable, "already claimed today")

	assert.False(t, byID["share-profile"].Completed)
	assert.True(t, byID["share-profile"].Claimable)

	assert.False(t, byID["streak-bonus"].Claimable, "streak of 1 is too short")

	assert.True(t, byID["refer-friend"].Claimable, "referrals are always claimable")
}

func TestEngine_ListActivities_DailyResetsNextDay(t *testing.T) {
	engine, clock := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	views, err := engine.ListActivities(ctx, 42)
	require.NoError(t, err)

	for _, v := range views {
		if v.ID == "daily-login" {
			assert.False(t, v.Completed, "yesterday's claim is outside today's window")
			assert.True(t, v.Claimable)
		}
	}
}

// =============================================================================
// LEGACY ONE-SHOT MODE
// =============================================================================

func TestEngine_OneShotRules_DailyBecomesOnce(t *testing.T) {
	engine, clock := newTestEngine(t)
	engine.Rules = ledger.OneShotRules()
	ctx := context.Background()

	_, _, err := engine.ClaimActivity(ctx, 42, "daily-login")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, _, err = engine.ClaimActivity(ctx, 42, "daily-login")
	assert.ErrorIs(t, err, ledger.ErrNotEligible, "legacy mode never reopens a claim")
}

// =============================================================================
// STATS
// =============================================================================

func TestEngine_Stats_Aggregates(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	earnPoints(t, engine, 1, 2) // 200
	earnPoints(t, engine, 2, 1) // 100
	_, _, err := engine.RedeemReward(ctx, 1, "discount-5")
	require.NoError(t, err)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Accounts)
	assert.Equal(t, int64(3), stats.Claims)
	assert.Equal(t, int64(1), stats.Redemptions)
	assert.Equal(t, int64(300), stats.PointsIssued)
	assert.Equal(t, int64(100), stats.PointsSpent)
	assert.Equal(t, int64(200), stats.PointsOutstanding)
	assert.Equal(t, "100.00", stats.AveragePoints.StringFixed(2))
}
