/*
ranking.go - Leaderboard ordering and rank computation

PURPOSE:
  Computes leaderboard order from account store snapshots. The correctness
  baseline is a full scan: the store returns accounts sorted by
  (score desc, id asc) and the service assigns dense count-based ranks.
  Accounts with a zero score in the chosen period never appear in ranked
  lists.

RANK FORMULA:
  rank = 1 + count(accounts with strictly greater score)

  Tied accounts share a rank, and the account after a tie of size n gets
  rank position+1, e.g. scores [100,100,50] rank as [1,1,3].

CACHING:
  The top-N window may be served from a TTL-bounded cache. The TTL is the
  cache's declared staleness bound and comes from configuration, never a
  hidden constant. Rank() for an arbitrary account always performs a fresh
  count so an individual's rank is never staler than the store.

SEE ALSO:
  - store.go: TopAccounts / CountScoreAbove queries
  - config: leaderboard.cache_ttl
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLeaderboardLimit is the top-window size served when callers do not
// ask for a specific limit.
const DefaultLeaderboardLimit = 50

// =============================================================================
// RANKING SERVICE
// =============================================================================

// RankingService computes leaderboards and per-account ranks.
type RankingService struct {
	Store Store

	// CacheTTL bounds leaderboard staleness. Zero disables caching and every
	// read scans the store.
	CacheTTL time.Duration

	// OnRefresh, when set, is called each time the cache is rebuilt from a
	// fresh scan. Wired to a metrics counter in production.
	OnRefresh func()

	Now func() time.Time

	mu    sync.Mutex
	cache map[Period]cachedBoard
}

type cachedBoard struct {
	entries []LeaderboardEntry
	limit   int
	at      time.Time
}

// NewRankingService creates a ranking service with the given staleness bound.
func NewRankingService(store Store, cacheTTL time.Duration) *RankingService {
	return &RankingService{
		Store:    store,
		CacheTTL: cacheTTL,
		Now:      time.Now,
		cache:    make(map[Period]cachedBoard),
	}
}

// Leaderboard returns the top limit accounts for the period with dense ranks.
// A limit <= 0 uses DefaultLeaderboardLimit.
func (r *RankingService) Leaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	if r.CacheTTL > 0 {
		r.mu.Lock()
		cached, ok := r.cache[period]
		if ok && cached.limit == limit && r.Now().Sub(cached.at) < r.CacheTTL {
			entries := cached.entries
			r.mu.Unlock()
			return entries, nil
		}
		r.mu.Unlock()
	}

	entries, err := r.scan(ctx, period, limit)
	if err != nil {
		return nil, err
	}

	if r.CacheTTL > 0 {
		r.mu.Lock()
		r.cache[period] = cachedBoard{entries: entries, limit: limit, at: r.Now()}
		r.mu.Unlock()
		if r.OnRefresh != nil {
			r.OnRefresh()
		}
	}
	return entries, nil
}

// scan is the correctness baseline: sorted store snapshot + dense ranks.
func (r *RankingService) scan(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, error) {
	accounts, err := r.Store.TopAccounts(ctx, period, limit)
	if err != nil {
		return nil, NewStorageError("top accounts", err)
	}

	entries := make([]LeaderboardEntry, len(accounts))
	for i, acct := range accounts {
		score := acct.Score(period)
		rank := i + 1
		if i > 0 && score == entries[i-1].Score {
			rank = entries[i-1].Rank
		}
		entries[i] = LeaderboardEntry{
			AccountID:    acct.ID,
			DisplayName:  acct.DisplayName,
			Score:        score,
			Rank:         rank,
			WeeklyPoints: acct.WeeklyPoints,
			Streak:       acct.Streak,
		}
	}
	return entries, nil
}

// Rank returns the 1-based dense rank of one account, computed fresh even for
// accounts outside the top window.
func (r *RankingService) Rank(ctx context.Context, id AccountID, period Period) (int, error) {
	if !period.Valid() {
		return 0, fmt.Errorf("invalid period %q", period)
	}
	acct, err := r.Store.GetOrCreateAccount(ctx, id)
	if err != nil {
		return 0, NewStorageError("get account", err)
	}
	above, err := r.Store.CountScoreAbove(ctx, period, acct.Score(period))
	if err != nil {
		return 0, NewStorageError("count score above", err)
	}
	return above + 1, nil
}

// Invalidate drops any cached leaderboards. Callers that just wrote a burst
// of claims can use it to publish results ahead of TTL expiry.
func (r *RankingService) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[Period]cachedBoard)
	r.mu.Unlock()
}
