/*
engine.go - The points ledger engine

PURPOSE:
  Orchestrates account mutation and ledger append as a single atomic unit
  for both claim and redemption flows. This is the only component allowed
  to mutate accounts or append ledger rows.

THE CENTRAL CORRECTNESS PROPERTY:
  The eligibility check (or balance check) and the write that follows it
  must be atomic per account. Two concurrent claims of a one-shot activity
  must not both succeed; two concurrent redemptions must not both pass the
  balance check against points neither has reserved.

HOW ATOMICITY IS ENFORCED:
  1. A keyed per-account mutex serializes every mutation of one account.
     Mutations to different accounts never block each other.
  2. When the store implements TxStore, the check+append+update sequence
     additionally runs inside one storage transaction, so a mid-sequence
     failure leaves no partial state.

CANCELLATION:
  Context cancellation before commit aborts the operation. Once the store
  transaction has committed, the effect is final; there is no compensating
  rollback path.

SEE ALSO:
  - eligibility.go: The rules evaluated inside the critical section
  - store.go: The persistence contract
  - ranking.go: Leaderboard and rank reads (lock-free)
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the points ledger engine.
type Engine struct {
	Store      Store
	Activities ActivityCatalog
	Rewards    RewardCatalog
	Rules      RuleSet

	// Now supplies the engine's clock. Tests override it to pin recurrence
	// windows; production uses time.Now.
	Now func() time.Time

	locks accountLocks
}

// NewEngine creates an engine with the default rule set and wall clock.
func NewEngine(store Store, activities ActivityCatalog, rewards RewardCatalog) *Engine {
	return &Engine{
		Store:      store,
		Activities: activities,
		Rewards:    rewards,
		Rules:      DefaultRules(),
		Now:        time.Now,
	}
}

// withTx runs fn inside a storage transaction when the store supports it,
// and directly against the store otherwise. Callers must already hold the
// account lock.
func (e *Engine) withTx(ctx context.Context, fn func(Store) error) error {
	if tx, ok := e.Store.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(e.Store)
}

// =============================================================================
// ACCOUNT
// =============================================================================

// GetAccount returns the account for id, creating it if absent.
func (e *Engine) GetAccount(ctx context.Context, id AccountID) (Account, error) {
	acct, err := e.Store.GetOrCreateAccount(ctx, id)
	if err != nil {
		return Account{}, NewStorageError("get account", err)
	}
	return acct, nil
}

// =============================================================================
// CLAIM
// =============================================================================

// ClaimActivity records a points-awarding claim of activity by account id.
//
// The eligibility check, ledger append, and balance increment run as one
// atomic unit per account. On success it returns the updated account and the
// points awarded (the catalog value snapshotted at this instant).
func (e *Engine) ClaimActivity(ctx context.Context, id AccountID, activityID ActivityID) (Account, int64, error) {
	activity, ok := e.Activities.Activity(activityID)
	if !ok {
		return Account{}, 0, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	now := e.Now().UTC()
	var updated Account

	err := e.withTx(ctx, func(s Store) error {
		acct, err := s.GetOrCreateAccount(ctx, id)
		if err != nil {
			return NewStorageError("get account", err)
		}

		history, err := s.ClaimsByActivity(ctx, id, activityID)
		if err != nil {
			return NewStorageError("load claims", err)
		}

		if err := e.Rules.For(activity.Recurrence).Eligible(acct, history, now); err != nil {
			return err
		}

		rec := ClaimRecord{
			ID:            uuid.NewString(),
			AccountID:     id,
			ActivityID:    activityID,
			PointsAwarded: activity.Points,
			ClaimedAt:     now,
		}
		if err := s.AppendClaim(ctx, rec); err != nil {
			return NewStorageError("append claim", err)
		}

		advanceStreak(&acct, now)
		acct.TotalPoints += activity.Points
		acct.WeeklyPoints += activity.Points
		if activity.Recurrence == RecurrencePerReferral {
			acct.ReferralCount++
		}
		acct.LastClaimAt = now
		acct.UpdatedAt = now

		if err := s.UpdateAccount(ctx, acct); err != nil {
			return NewStorageError("update account", err)
		}
		updated = acct
		return nil
	})
	if err != nil {
		return Account{}, 0, err
	}
	return updated, activity.Points, nil
}

// advanceStreak updates the consecutive-day streak for a claim happening now.
// Same-day claims leave the streak unchanged; a claim on the day after the
// last one extends it; anything else restarts at 1.
func advanceStreak(acct *Account, now time.Time) {
	switch {
	case acct.LastClaimAt.IsZero():
		acct.Streak = 1
	case SameDay(acct.LastClaimAt, now):
		// unchanged
	case SameDay(acct.LastClaimAt.AddDate(0, 0, 1), now):
		acct.Streak++
	default:
		acct.Streak = 1
	}
}

// =============================================================================
// REDEEM
// =============================================================================

// RedeemReward spends points on a catalog reward.
//
// The balance check, ledger append, and deduction run as one atomic unit per
// account, so the check can never be satisfied by points a concurrent
// redemption is about to spend. WeeklyPoints is unaffected: redemption does
// not undo weekly earning history.
func (e *Engine) RedeemReward(ctx context.Context, id AccountID, rewardID RewardID) (Account, int64, error) {
	reward, ok := e.Rewards.Reward(rewardID)
	if !ok || !reward.Available {
		return Account{}, 0, fmt.Errorf("%w: %s", ErrUnknownReward, rewardID)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	now := e.Now().UTC()
	var updated Account

	err := e.withTx(ctx, func(s Store) error {
		acct, err := s.GetOrCreateAccount(ctx, id)
		if err != nil {
			return NewStorageError("get account", err)
		}

		if acct.TotalPoints < reward.Cost {
			return &InsufficientPointsError{
				AccountID: id,
				RewardID:  rewardID,
				Required:  reward.Cost,
				Available: acct.TotalPoints,
			}
		}

		rec := RedemptionRecord{
			ID:          uuid.NewString(),
			AccountID:   id,
			RewardID:    rewardID,
			PointsSpent: reward.Cost,
			RedeemedAt:  now,
		}
		if err := s.AppendRedemption(ctx, rec); err != nil {
			return NewStorageError("append redemption", err)
		}

		acct.TotalPoints -= reward.Cost
		acct.UpdatedAt = now

		if err := s.UpdateAccount(ctx, acct); err != nil {
			return NewStorageError("update account", err)
		}
		updated = acct
		return nil
	})
	if err != nil {
		return Account{}, 0, err
	}
	return updated, reward.Cost, nil
}

// =============================================================================
// ACTIVITY VIEWS
// =============================================================================

// ActivityView joins a catalog entry with one account's claim state.
type ActivityView struct {
	Activity
	Completed bool
	Claimable bool
}

// ListActivities annotates the activity catalog with the account's completed
// and claimable state under the engine's rule set.
func (e *Engine) ListActivities(ctx context.Context, id AccountID) ([]ActivityView, error) {
	acct, err := e.Store.GetOrCreateAccount(ctx, id)
	if err != nil {
		return nil, NewStorageError("get account", err)
	}
	claims, err := e.Store.ClaimsByAccount(ctx, id)
	if err != nil {
		return nil, NewStorageError("load claims", err)
	}

	byActivity := make(map[ActivityID][]ClaimRecord)
	for _, rec := range claims {
		byActivity[rec.ActivityID] = append(byActivity[rec.ActivityID], rec)
	}

	now := e.Now().UTC()
	activities := e.Activities.Activities()
	views := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		rule := e.Rules.For(activity.Recurrence)
		history := byActivity[activity.ID]
		views = append(views, ActivityView{
			Activity:  activity,
			Completed: rule.Completed(history, now),
			Claimable: rule.Eligible(acct, history, now) == nil,
		})
	}
	return views, nil
}

// =============================================================================
// AGGREGATE STATS
// =============================================================================

// Stats summarizes ledger-wide totals for operators.
type Stats struct {
	Accounts          int
	Claims            int64
	Redemptions       int64
	PointsIssued      int64
	PointsSpent       int64
	PointsOutstanding int64
	AveragePoints     decimal.Decimal // outstanding points per account
}

// Stats computes ledger-wide aggregates with a full scan of the totals.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	accounts, err := e.Store.CountAccounts(ctx)
	if err != nil {
		return Stats{}, NewStorageError("count accounts", err)
	}
	claims, issued, err := e.Store.ClaimTotals(ctx)
	if err != nil {
		return Stats{}, NewStorageError("claim totals", err)
	}
	redemptions, spent, err := e.Store.RedemptionTotals(ctx)
	if err != nil {
		return Stats{}, NewStorageError("redemption totals", err)
	}

	s := Stats{
		Accounts:          accounts,
		Claims:            claims,
		Redemptions:       redemptions,
		PointsIssued:      issued,
		PointsSpent:       spent,
		PointsOutstanding: issued - spent,
	}
	if accounts > 0 {
		s.AveragePoints = decimal.NewFromInt(s.PointsOutstanding).
			Div(decimal.NewFromInt(int64(accounts))).Round(2)
	}
	return s, nil
}

// =============================================================================
// PER-ACCOUNT LOCKS
// =============================================================================

// accountLocks hands out one mutex per account id. Entries are kept for the
// process lifetime; the map is bounded by the number of distinct accounts
// the process has touched.
type accountLocks struct {
	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

func (l *accountLocks) lock(id AccountID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[AccountID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
