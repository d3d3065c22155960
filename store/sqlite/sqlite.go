/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for accounts and the claim/redemption ledgers.
  The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the claims or redemptions tables
  - No DELETE statements on the claims or redemptions tables
  The accounts table is the only mutable surface, and CHECK constraints
  keep both point balances non-negative even if an engine bug slipped a
  bad write through.

KEY TABLES:
  accounts:      One row per fid, balances and engagement stats
  claims:        Immutable ledger of points-awarding claims
  redemptions:   Immutable ledger of points-spending redemptions
  weekly_resets: Record of completed weekly resets (idempotency by week key)

CONCURRENCY:
  Uses sync.RWMutex for writer serialization plus WAL mode:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  Transient lock errors on writes are retried with bounded exponential
  backoff (see retry.go) before surfacing as a storage failure.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, activities, rewards)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Fayed99/base-app/ledger"
)

// Store implements ledger.Store and ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time interface checks.
var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.TxStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and :memory:
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (the only mutable table)
	CREATE TABLE IF NOT EXISTS accounts (
		fid INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL,
		total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
		weekly_points INTEGER NOT NULL DEFAULT 0 CHECK (weekly_points >= 0),
		streak INTEGER NOT NULL DEFAULT 0,
		referral_count INTEGER NOT NULL DEFAULT 0,
		last_claim_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Ranking scans order by score descending, fid ascending
	CREATE INDEX IF NOT EXISTS idx_accounts_total_points
		ON accounts(total_points DESC, fid ASC);
	CREATE INDEX IF NOT EXISTS idx_accounts_weekly_points
		ON accounts(weekly_points DESC, fid ASC);

	-- Claims (append-only ledger)
	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		fid INTEGER NOT NULL,
		activity_id TEXT NOT NULL,
		points_awarded INTEGER NOT NULL,
		claimed_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (fid) REFERENCES accounts(fid)
	);

	-- Eligibility checks load one account's history for one activity (hot path)
	CREATE INDEX IF NOT EXISTS idx_claims_fid_activity
		ON claims(fid, activity_id, claimed_at);
	CREATE INDEX IF NOT EXISTS idx_claims_fid
		ON claims(fid, claimed_at);

	-- Redemptions (append-only ledger)
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		fid INTEGER NOT NULL,
		reward_id TEXT NOT NULL,
		points_spent INTEGER NOT NULL,
		redeemed_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (fid) REFERENCES accounts(fid)
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_fid
		ON redemptions(fid, redeemed_at);

	-- Weekly resets (one row per completed reset, keyed by ISO week)
	CREATE TABLE IF NOT EXISTS weekly_resets (
		week_key TEXT PRIMARY KEY,
		accounts_touched INTEGER NOT NULL,
		reset_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so the same statements serve both
// direct calls and WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) GetOrCreateAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateAccount(ctx, s.db, id)
}

func getOrCreateAccount(ctx context.Context, q querier, id ledger.AccountID) (ledger.Account, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryWrite(func() error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO accounts (fid, display_name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(fid) DO NOTHING
		`, id, ledger.DefaultDisplayName(id), now, now)
		return err
	})
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	row := q.QueryRowContext(ctx, `
		SELECT fid, display_name, total_points, weekly_points, streak,
		       referral_count, last_claim_at, created_at, updated_at
		FROM accounts WHERE fid = ?
	`, id)
	return scanAccount(row)
}

func (s *Store) UpdateAccount(ctx context.Context, acct ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccount(ctx, s.db, acct)
}

func updateAccount(ctx context.Context, q querier, acct ledger.Account) error {
	err := retryWrite(func() error {
		_, err := q.ExecContext(ctx, `
			UPDATE accounts
			SET display_name = ?, total_points = ?, weekly_points = ?, streak = ?,
			    referral_count = ?, last_claim_at = ?, updated_at = ?
			WHERE fid = ?
		`,
			acct.DisplayName,
			acct.TotalPoints,
			acct.WeeklyPoints,
			acct.Streak,
			acct.ReferralCount,
			nullTime(acct.LastClaimAt),
			acct.UpdatedAt.UTC().Format(time.RFC3339Nano),
			acct.ID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER APPENDS
// =============================================================================

func (s *Store) AppendClaim(ctx context.Context, rec ledger.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendClaim(ctx, s.db, rec)
}

func appendClaim(ctx context.Context, q querier, rec ledger.ClaimRecord) error {
	err := retryWrite(func() error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO claims (id, fid, activity_id, points_awarded, claimed_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.AccountID,
			rec.ActivityID,
			rec.PointsAwarded,
			rec.ClaimedAt.UTC().Format(time.RFC3339Nano),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to append claim: %w", err)
	}
	return nil
}

func (s *Store) AppendRedemption(ctx context.Context, rec ledger.RedemptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRedemption(ctx, s.db, rec)
}

func appendRedemption(ctx context.Context, q querier, rec ledger.RedemptionRecord) error {
	err := retryWrite(func() error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO redemptions (id, fid, reward_id, points_spent, redeemed_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.AccountID,
			rec.RewardID,
			rec.PointsSpent,
			rec.RedeemedAt.UTC().Format(time.RFC3339Nano),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to append redemption: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER QUERIES
// =============================================================================

func (s *Store) ClaimsByActivity(ctx context.Context, id ledger.AccountID, activity ledger.ActivityID) ([]ledger.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claimsByActivity(ctx, s.db, id, activity)
}

func claimsByActivity(ctx context.Context, q querier, id ledger.AccountID, activity ledger.ActivityID) ([]ledger.ClaimRecord, error) {
	return queryClaims(ctx, q, `
		SELECT id, fid, activity_id, points_awarded, claimed_at
		FROM claims
		WHERE fid = ? AND activity_id = ?
		ORDER BY claimed_at ASC, created_at ASC
	`, id, activity)
}

func (s *Store) ClaimsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claimsByAccount(ctx, s.db, id)
}

func claimsByAccount(ctx context.Context, q querier, id ledger.AccountID) ([]ledger.ClaimRecord, error) {
	return queryClaims(ctx, q, `
		SELECT id, fid, activity_id, points_awarded, claimed_at
		FROM claims
		WHERE fid = ?
		ORDER BY claimed_at ASC, created_at ASC
	`, id)
}

func queryClaims(ctx context.Context, q querier, query string, args ...any) ([]ledger.ClaimRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var records []ledger.ClaimRecord
	for rows.Next() {
		var rec ledger.ClaimRecord
		var claimedAt string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.ActivityID, &rec.PointsAwarded, &claimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		if rec.ClaimedAt, err = parseTime(claimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) RedemptionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.RedemptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return redemptionsByAccount(ctx, s.db, id)
}

func redemptionsByAccount(ctx context.Context, q querier, id ledger.AccountID) ([]ledger.RedemptionRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, fid, reward_id, points_spent, redeemed_at
		FROM redemptions
		WHERE fid = ?
		ORDER BY redeemed_at ASC, created_at ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var records []ledger.RedemptionRecord
	for rows.Next() {
		var rec ledger.RedemptionRecord
		var redeemedAt string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.RewardID, &rec.PointsSpent, &redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		if rec.RedeemedAt, err = parseTime(redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// RANKING QUERIES
// =============================================================================

// scoreColumn maps a validated period to its column. Periods never come from
// raw request strings; the API layer validates them first.
func scoreColumn(period ledger.Period) string {
	if period == ledger.PeriodWeekly {
		return "weekly_points"
	}
	return "total_points"
}

func (s *Store) TopAccounts(ctx context.Context, period ledger.Period, limit int) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topAccounts(ctx, s.db, period, limit)
}

func topAccounts(ctx context.Context, q querier, period ledger.Period, limit int) ([]ledger.Account, error) {
	col := scoreColumn(period)
	query := fmt.Sprintf(`
		SELECT fid, display_name, total_points, weekly_points, streak,
		       referral_count, last_claim_at, created_at, updated_at
		FROM accounts
		WHERE %s > 0
		ORDER BY %s DESC, fid ASC
		LIMIT ?
	`, col, col)

	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

func (s *Store) CountScoreAbove(ctx context.Context, period ledger.Period, score int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countScoreAbove(ctx, s.db, period, score)
}

func countScoreAbove(ctx context.Context, q querier, period ledger.Period, score int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM accounts WHERE %s > ?", scoreColumn(period)),
		score,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countAccounts(ctx, s.db)
}

func countAccounts(ctx context.Context, q querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (s *Store) ClaimTotals(ctx context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerTotals(ctx, s.db, "SELECT COUNT(*), COALESCE(SUM(points_awarded), 0) FROM claims")
}

func (s *Store) RedemptionTotals(ctx context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerTotals(ctx, s.db, "SELECT COUNT(*), COALESCE(SUM(points_spent), 0) FROM redemptions")
}

func ledgerTotals(ctx context.Context, q querier, query string) (int64, int64, error) {
	var count, points int64
	if err := q.QueryRowContext(ctx, query).Scan(&count, &points); err != nil {
		return 0, 0, fmt.Errorf("failed to query ledger totals: %w", err)
	}
	return count, points, nil
}

// =============================================================================
// WEEKLY RESET
// =============================================================================

func (s *Store) LastWeeklyReset(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastWeeklyReset(ctx, s.db)
}

func lastWeeklyReset(ctx context.Context, q querier) (string, error) {
	var key string
	err := q.QueryRowContext(ctx,
		"SELECT week_key FROM weekly_resets ORDER BY reset_at DESC LIMIT 1",
	).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last weekly reset: %w", err)
	}
	return key, nil
}

func (s *Store) ResetWeeklyPoints(ctx context.Context, weekKey string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Runs in its own transaction so claiming the week key and zeroing the
	// scores commit together even for callers outside WithTx.
	var touched int64
	var applied bool
	err := retryWrite(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		touched, applied, err = resetWeeklyPoints(ctx, tx, weekKey)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to reset weekly points: %w", err)
	}
	return touched, applied, nil
}

func resetWeeklyPoints(ctx context.Context, q querier, weekKey string) (int64, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	// Claim the week key first. The insert takes effect at most once per
	// key; a caller whose insert conflicts skips the zeroing entirely, so
	// points earned after the winning reset survive.
	res, err := q.ExecContext(ctx, `
		INSERT INTO weekly_resets (week_key, accounts_touched, reset_at)
		VALUES (?, 0, ?)
		ON CONFLICT(week_key) DO NOTHING
	`, weekKey, now)
	if err != nil {
		return 0, false, err
	}
	claimed, _ := res.RowsAffected()
	if claimed == 0 {
		return 0, false, nil
	}

	res, err = q.ExecContext(ctx, `
		UPDATE accounts SET weekly_points = 0, updated_at = ? WHERE weekly_points > 0
	`, now)
	if err != nil {
		return 0, false, err
	}
	touched, _ := res.RowsAffected()

	if _, err := q.ExecContext(ctx, `
		UPDATE weekly_resets SET accounts_touched = ? WHERE week_key = ?
	`, touched, weekKey); err != nil {
		return 0, false, err
	}
	return touched, true, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a single SQL transaction. The engine relies on
// this to make eligibility check, ledger append, and balance mutation
// all-or-nothing.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txView routes ledger.Store calls through an open *sql.Tx. The Store's
// mutex is held by WithTx for the duration, so no further locking here.
type txView struct {
	tx *sql.Tx
}

var _ ledger.Store = (*txView)(nil)

func (v *txView) GetOrCreateAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return getOrCreateAccount(ctx, v.tx, id)
}

func (v *txView) UpdateAccount(ctx context.Context, acct ledger.Account) error {
	return updateAccount(ctx, v.tx, acct)
}

func (v *txView) AppendClaim(ctx context.Context, rec ledger.ClaimRecord) error {
	return appendClaim(ctx, v.tx, rec)
}

func (v *txView) AppendRedemption(ctx context.Context, rec ledger.RedemptionRecord) error {
	return appendRedemption(ctx, v.tx, rec)
}

func (v *txView) ClaimsByActivity(ctx context.Context, id ledger.AccountID, activity ledger.ActivityID) ([]ledger.ClaimRecord, error) {
	return claimsByActivity(ctx, v.tx, id, activity)
}

func (v *txView) ClaimsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.ClaimRecord, error) {
	return claimsByAccount(ctx, v.tx, id)
}

func (v *txView) RedemptionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.RedemptionRecord, error) {
	return redemptionsByAccount(ctx, v.tx, id)
}

func (v *txView) TopAccounts(ctx context.Context, period ledger.Period, limit int) ([]ledger.Account, error) {
	return topAccounts(ctx, v.tx, period, limit)
}

func (v *txView) CountScoreAbove(ctx context.Context, period ledger.Period, score int64) (int, error) {
	return countScoreAbove(ctx, v.tx, period, score)
}

func (v *txView) CountAccounts(ctx context.Context) (int, error) {
	return countAccounts(ctx, v.tx)
}

func (v *txView) ClaimTotals(ctx context.Context) (int64, int64, error) {
	return ledgerTotals(ctx, v.tx, "SELECT COUNT(*), COALESCE(SUM(points_awarded), 0) FROM claims")
}

func (v *txView) RedemptionTotals(ctx context.Context) (int64, int64, error) {
	return ledgerTotals(ctx, v.tx, "SELECT COUNT(*), COALESCE(SUM(points_spent), 0) FROM redemptions")
}

func (v *txView) LastWeeklyReset(ctx context.Context) (string, error) {
	return lastWeeklyReset(ctx, v.tx)
}

func (v *txView) ResetWeeklyPoints(ctx context.Context, weekKey string) (int64, bool, error) {
	return resetWeeklyPoints(ctx, v.tx, weekKey)
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var acct ledger.Account
	var lastClaim sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&acct.ID, &acct.DisplayName, &acct.TotalPoints, &acct.WeeklyPoints,
		&acct.Streak, &acct.ReferralCount, &lastClaim, &createdAt, &updatedAt)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}

	if lastClaim.Valid {
		if acct.LastClaimAt, err = parseTime(lastClaim.String); err != nil {
			return ledger.Account{}, fmt.Errorf("failed to scan account: %w", err)
		}
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	return acct, nil
}

// parseTime rejects malformed stored timestamps instead of flattening them
// to the zero time; a zero LastClaimAt reads as "never claimed" and would
// silently restart streaks.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
