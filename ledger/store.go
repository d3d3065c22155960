/*
store.go - Persistence interface for accounts and the two ledgers

PURPOSE:
  Defines the contract between the engine and the database. The claim and
  redemption tables are APPEND-ONLY: records are inserted, never updated or
  deleted. The accounts table is the only mutable surface, and every
  mutation to it travels through the engine's per-account atomic section.

KEY INTERFACES:
  Store:   Account CRUD, ledger appends, ranking queries
  TxStore: Optional all-or-nothing transaction wrapper

APPEND-ONLY CONTRACT:
  - AppendClaim(), AppendRedemption(): the ONLY ledger writes
  - No update or delete methods exist for ledger rows

RANKING QUERIES:
  TopAccounts and CountScoreAbove back the ranking service's scan-based
  baseline; both exclude/compare on the chosen period's score column.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL, bounded retry on transient errors)
  - ledger/store: In-memory for tests and development

SEE ALSO:
  - engine.go: Consumes Store inside per-account critical sections
  - ranking.go: Consumes the ranking queries
*/
package ledger

import "context"

// =============================================================================
// STORE - Persistence contract
// =============================================================================

// Store persists accounts and the claim/redemption ledgers.
//
// IMPORTANT: ledger rows are append-only. Corrections in this system do not
// exist; claims and redemptions are final once durably committed.
type Store interface {
	// GetOrCreateAccount returns the account for id, creating it with zeroed
	// fields and the deterministic default display name if absent. The
	// get-or-create must be atomic with respect to concurrent callers.
	GetOrCreateAccount(ctx context.Context, id AccountID) (Account, error)

	// UpdateAccount persists a mutated account record.
	UpdateAccount(ctx context.Context, acct Account) error

	// AppendClaim inserts a claim record. Append-only.
	AppendClaim(ctx context.Context, rec ClaimRecord) error

	// AppendRedemption inserts a redemption record. Append-only.
	AppendRedemption(ctx context.Context, rec RedemptionRecord) error

	// ClaimsByActivity returns the account's claims of one activity in
	// chronological order.
	ClaimsByActivity(ctx context.Context, id AccountID, activity ActivityID) ([]ClaimRecord, error)

	// ClaimsByAccount returns all of the account's claims in chronological order.
	ClaimsByAccount(ctx context.Context, id AccountID) ([]ClaimRecord, error)

	// RedemptionsByAccount returns the account's redemptions in chronological order.
	RedemptionsByAccount(ctx context.Context, id AccountID) ([]RedemptionRecord, error)

	// TopAccounts returns up to limit accounts with a positive score in the
	// period, ordered by (score desc, id asc).
	TopAccounts(ctx context.Context, period Period, limit int) ([]Account, error)

	// CountScoreAbove returns how many accounts have a period score strictly
	// greater than score.
	CountScoreAbove(ctx context.Context, period Period, score int64) (int, error)

	// CountAccounts returns the total number of accounts.
	CountAccounts(ctx context.Context) (int, error)

	// ClaimTotals returns the number of claim records and the sum of points awarded.
	ClaimTotals(ctx context.Context) (count int64, points int64, err error)

	// RedemptionTotals returns the number of redemption records and the sum of points spent.
	RedemptionTotals(ctx context.Context) (count int64, points int64, err error)

	// LastWeeklyReset returns the week key of the most recent weekly reset,
	// or "" if none has run.
	LastWeeklyReset(ctx context.Context) (string, error)

	// ResetWeeklyPoints zeroes every account's weekly points and records
	// weekKey as the latest reset, unless a reset for weekKey is already
	// recorded. The week-key check and the zeroing are one atomic unit:
	// of two concurrent callers with the same key exactly one applies, and
	// the loser must not zero points earned after the winner's reset.
	// Returns the number of accounts touched and whether a reset ran.
	ResetWeeklyPoints(ctx context.Context, weekKey string) (touched int64, applied bool, err error)
}

// =============================================================================
// TRANSACTIONAL STORE - All-or-nothing multi-write support
// =============================================================================

// TxStore extends Store with transaction support. The engine uses it, when
// available, to make eligibility check, ledger append, and balance mutation
// a single all-or-nothing unit.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
