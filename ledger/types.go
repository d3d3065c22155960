/*
Package ledger provides the points ledger and ranking engine.

PURPOSE:
  This package contains the core domain logic for the loyalty backend:
  accounts accrue points by claiming activities, spend them redeeming
  rewards, and compete on a ranked leaderboard. The engine records every
  point-earning event exactly once per eligible action, mutates balances
  atomically, and enforces sufficient-balance on redemption.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Per-user persistent record of points and engagement stats
  - ClaimRecord: An immutable ledger entry for a points-awarding claim
  - RedemptionRecord: An immutable ledger entry for a points-spending redemption
  - Period: Scoring window for leaderboard ranking (all-time vs weekly)
  - LeaderboardEntry: Derived ranking projection, never persisted as truth

DESIGN PRINCIPLES:
  1. Immutability: Claim and redemption records are never modified
  2. Snapshot: Records carry the catalog value at claim/redeem time, so
     later catalog changes never rewrite history
  3. Atomicity: Balance mutation and ledger append happen as one unit
  4. Non-negativity: TotalPoints and WeeklyPoints never go below zero

SEE ALSO:
  - engine.go: Claim and redemption orchestration
  - eligibility.go: Recurrence rules deciding when a claim is allowed
  - ranking.go: Leaderboard ordering and rank computation
  - catalog.go: Activity and reward catalog providers
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AccountID is the verified numeric user identifier (a Farcaster fid in the
// original deployment). It is externally assigned and stable.
type AccountID int64

type ActivityID string
type RewardID string

// =============================================================================
// ACCOUNT - One record per user
// =============================================================================

// Account holds the balances and engagement stats for one user.
//
// INVARIANTS:
//   - TotalPoints >= 0 and WeeklyPoints >= 0 at all times, even under
//     concurrent mutation.
//   - UpdatedAt is monotonic non-decreasing.
//
// Accounts are created lazily on first reference and never deleted.
type Account struct {
	ID            AccountID
	DisplayName   string
	TotalPoints   int64
	WeeklyPoints  int64
	Streak        int
	ReferralCount int

	// LastClaimAt is the time of the most recent successful claim.
	// Zero value means the account has never claimed. Drives streak logic.
	LastClaimAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultDisplayName derives the deterministic initial display name for a
// fresh account.
func DefaultDisplayName(id AccountID) string {
	return fmt.Sprintf("User%d", id)
}

// Score returns the account's score under the given period.
func (a Account) Score(p Period) int64 {
	if p == PeriodWeekly {
		return a.WeeklyPoints
	}
	return a.TotalPoints
}

// =============================================================================
// LEDGER RECORDS - Append-only, immutable once written
// =============================================================================

// ClaimRecord is one successful activity claim. PointsAwarded snapshots the
// catalog value at claim time; catalog changes never alter history.
type ClaimRecord struct {
	ID            string
	AccountID     AccountID
	ActivityID    ActivityID
	PointsAwarded int64
	ClaimedAt     time.Time
}

// RedemptionRecord is one successful reward redemption. PointsSpent snapshots
// the catalog cost at redemption time. There is no reversal or refund path.
type RedemptionRecord struct {
	ID          string
	AccountID   AccountID
	RewardID    RewardID
	PointsSpent int64
	RedeemedAt  time.Time
}

// =============================================================================
// PERIOD - Leaderboard scoring window
// =============================================================================

type Period string

const (
	PeriodAllTime Period = "all-time"
	PeriodWeekly  Period = "weekly"
)

// Valid reports whether p is a known scoring period.
func (p Period) Valid() bool {
	return p == PeriodAllTime || p == PeriodWeekly
}

// WeekKey returns the ISO-week identifier for t, e.g. "2026-W35". Weekly
// claim windows and the weekly points reset both key on this value.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// =============================================================================
// LEADERBOARD ENTRY - Derived projection, never persisted as ground truth
// =============================================================================

// LeaderboardEntry is a read-only ranking projection.
//
// Rank is dense and count-based: 1 + the number of accounts with a strictly
// greater score. Ties therefore share a rank, and the order within a tie is
// fixed by ascending AccountID so reads never flap.
type LeaderboardEntry struct {
	AccountID    AccountID
	DisplayName  string
	Score        int64
	Rank         int
	WeeklyPoints int64
	Streak       int
}
