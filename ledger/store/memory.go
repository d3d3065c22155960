// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Fayed99/base-app/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	accounts    map[ledger.AccountID]ledger.Account
	claims      map[ledger.AccountID][]ledger.ClaimRecord
	redemptions map[ledger.AccountID][]ledger.RedemptionRecord
	lastReset   string
}

// Compile-time interface checks.
var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.TxStore = (*TxMemory)(nil)
	_ ledger.Store   = (*txMemoryView)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[ledger.AccountID]ledger.Account),
		claims:      make(map[ledger.AccountID][]ledger.ClaimRecord),
		redemptions: make(map[ledger.AccountID][]ledger.RedemptionRecord),
	}
}

func (m *Memory) GetOrCreateAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(id), nil
}

func (m *Memory) getOrCreateLocked(id ledger.AccountID) ledger.Account {
	if acct, ok := m.accounts[id]; ok {
		return acct
	}
	acct := ledger.Account{
		ID:          id,
		DisplayName: ledger.DefaultDisplayName(id),
	}
	m.accounts[id] = acct
	return acct
}

func (m *Memory) UpdateAccount(_ context.Context, acct ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
	return nil
}

func (m *Memory) AppendClaim(_ context.Context, rec ledger.ClaimRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[rec.AccountID] = append(m.claims[rec.AccountID], rec)
	return nil
}

func (m *Memory) AppendRedemption(_ context.Context, rec ledger.RedemptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redemptions[rec.AccountID] = append(m.redemptions[rec.AccountID], rec)
	return nil
}

func (m *Memory) ClaimsByActivity(_ context.Context, id ledger.AccountID, activity ledger.ActivityID) ([]ledger.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.ClaimRecord
	for _, rec := range m.claims[id] {
		if rec.ActivityID == activity {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *Memory) ClaimsByAccount(_ context.Context, id ledger.AccountID) ([]ledger.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.ClaimRecord, len(m.claims[id]))
	copy(result, m.claims[id])
	return result, nil
}

func (m *Memory) RedemptionsByAccount(_ context.Context, id ledger.AccountID) ([]ledger.RedemptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.RedemptionRecord, len(m.redemptions[id]))
	copy(result, m.redemptions[id])
	return result, nil
}

func (m *Memory) TopAccounts(_ context.Context, period ledger.Period, limit int) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ranked []ledger.Account
	for _, acct := range m.accounts {
		if acct.Score(period) > 0 {
			ranked = append(ranked, acct)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score(period), ranked[j].Score(period)
		if si != sj {
			return si > sj
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (m *Memory) CountScoreAbove(_ context.Context, period ledger.Period, score int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, acct := range m.accounts {
		if acct.Score(period) > score {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountAccounts(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts), nil
}

func (m *Memory) ClaimTotals(_ context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count, points int64
	for _, recs := range m.claims {
		for _, rec := range recs {
			count++
			points += rec.PointsAwarded
		}
	}
	return count, points, nil
}

func (m *Memory) RedemptionTotals(_ context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count, points int64
	for _, recs := range m.redemptions {
		for _, rec := range recs {
			count++
			points += rec.PointsSpent
		}
	}
	return count, points, nil
}

func (m *Memory) LastWeeklyReset(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReset, nil
}

func (m *Memory) ResetWeeklyPoints(_ context.Context, weekKey string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetWeeklyLocked(weekKey)
}

// resetWeeklyLocked claims weekKey and zeroes weekly points under the lock
// already held by the caller. A key that was already claimed is a no-op, so
// a duplicate reset cannot wipe points earned after the first one.
func (m *Memory) resetWeeklyLocked(weekKey string) (int64, bool, error) {
	if m.lastReset == weekKey {
		return 0, false, nil
	}

	var touched int64
	for id, acct := range m.accounts {
		if acct.WeeklyPoints != 0 {
			acct.WeeklyPoints = 0
			m.accounts[id] = acct
			touched++
		}
	}
	m.lastReset = weekKey
	return touched, true, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a transactional view. For the memory store this
// is simulated with a snapshot + rollback on error. The view's methods touch
// parent state without re-locking, so fn must not call the outer store.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts    map[ledger.AccountID]ledger.Account
	claims      map[ledger.AccountID][]ledger.ClaimRecord
	redemptions map[ledger.AccountID][]ledger.RedemptionRecord
	lastReset   string
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts:    make(map[ledger.AccountID]ledger.Account, len(tm.accounts)),
		claims:      make(map[ledger.AccountID][]ledger.ClaimRecord, len(tm.claims)),
		redemptions: make(map[ledger.AccountID][]ledger.RedemptionRecord, len(tm.redemptions)),
		lastReset:   tm.lastReset,
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.claims {
		s.claims[k] = append([]ledger.ClaimRecord{}, v...)
	}
	for k, v := range tm.redemptions {
		s.redemptions[k] = append([]ledger.RedemptionRecord{}, v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.claims = s.claims
	tm.redemptions = s.redemptions
	tm.lastReset = s.lastReset
}

// txMemoryView exposes the parent's state without taking its lock; the lock
// is held by WithTx for the duration of the transaction.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetOrCreateAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	return tv.parent.getOrCreateLocked(id), nil
}

func (tv *txMemoryView) UpdateAccount(_ context.Context, acct ledger.Account) error {
	tv.parent.accounts[acct.ID] = acct
	return nil
}

func (tv *txMemoryView) AppendClaim(_ context.Context, rec ledger.ClaimRecord) error {
	tv.parent.claims[rec.AccountID] = append(tv.parent.claims[rec.AccountID], rec)
	return nil
}

func (tv *txMemoryView) AppendRedemption(_ context.Context, rec ledger.RedemptionRecord) error {
	tv.parent.redemptions[rec.AccountID] = append(tv.parent.redemptions[rec.AccountID], rec)
	return nil
}

func (tv *txMemoryView) ClaimsByActivity(_ context.Context, id ledger.AccountID, activity ledger.ActivityID) ([]ledger.ClaimRecord, error) {
	var result []ledger.ClaimRecord
	for _, rec := range tv.parent.claims[id] {
		if rec.ActivityID == activity {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (tv *txMemoryView) ClaimsByAccount(_ context.Context, id ledger.AccountID) ([]ledger.ClaimRecord, error) {
	return tv.parent.claims[id], nil
}

func (tv *txMemoryView) RedemptionsByAccount(_ context.Context, id ledger.AccountID) ([]ledger.RedemptionRecord, error) {
	return tv.parent.redemptions[id], nil
}

func (tv *txMemoryView) TopAccounts(ctx context.Context, period ledger.Period, limit int) ([]ledger.Account, error) {
	var ranked []ledger.Account
	for _, acct := range tv.parent.accounts {
		if acct.Score(period) > 0 {
			ranked = append(ranked, acct)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score(period), ranked[j].Score(period)
		if si != sj {
			return si > sj
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (tv *txMemoryView) CountScoreAbove(_ context.Context, period ledger.Period, score int64) (int, error) {
	count := 0
	for _, acct := range tv.parent.accounts {
		if acct.Score(period) > score {
			count++
		}
	}
	return count, nil
}

func (tv *txMemoryView) CountAccounts(_ context.Context) (int, error) {
	return len(tv.parent.accounts), nil
}

func (tv *txMemoryView) ClaimTotals(_ context.Context) (int64, int64, error) {
	var count, points int64
	for _, recs := range tv.parent.claims {
		for _, rec := range recs {
			count++
			points += rec.PointsAwarded
		}
	}
	return count, points, nil
}

func (tv *txMemoryView) RedemptionTotals(_ context.Context) (int64, int64, error) {
	var count, points int64
	for _, recs := range tv.parent.redemptions {
		for _, rec := range recs {
			count++
			points += rec.PointsSpent
		}
	}
	return count, points, nil
}

func (tv *txMemoryView) LastWeeklyReset(_ context.Context) (string, error) {
	return tv.parent.lastReset, nil
}

func (tv *txMemoryView) ResetWeeklyPoints(_ context.Context, weekKey string) (int64, bool, error) {
	return tv.parent.resetWeeklyLocked(weekKey)
}
