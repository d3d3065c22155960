/*
eligibility.go - Pluggable per-activity claim eligibility rules

PURPOSE:
  Decides whether an account may claim an activity right now, given its
  prior ClaimRecords. Rules are a strategy keyed by recurrence kind, so
  claim policy can change without touching engine internals.

RULES:
  once:          At most one claim, ever.
  daily:         At most one claim per UTC calendar day.
  weekly:        At most one claim per ISO week.
  per-referral:  One claim per referral event; never blocked by history.
  streak:        One claim ever, and only once the account's streak has
                 reached the configured length (7 days in production).

LEGACY MODE:
  The system this engine replaces computed "claimable" as "never claimed",
  which silently made every recurring activity one-shot. OneShotRules()
  reproduces that behavior for operators who want bug-for-bug parity; it is
  selectable via config without code changes.

COMPLETED vs CLAIMABLE:
  Claimable means Eligible() returns nil. Completed means the activity has a
  claim counted in the current window: for windowed rules that is a claim in
  today's/this week's window, for everything else any claim at all. Both
  flags annotate ListActivities views.

SEE ALSO:
  - engine.go: Evaluates rules inside the per-account atomic section
  - catalog.go: Recurrence kinds
*/
package ledger

import "time"

// =============================================================================
// RULE - Eligibility strategy for one recurrence kind
// =============================================================================

// Rule decides claim eligibility for one recurrence kind.
//
// History contains the account's prior claims of the activity in
// chronological order. Implementations return nil when a claim is allowed
// now, or a *NotEligibleError explaining why not.
type Rule interface {
	Eligible(acct Account, history []ClaimRecord, now time.Time) error

	// Completed reports whether the activity counts as done in the current
	// window (see package comment).
	Completed(history []ClaimRecord, now time.Time) bool
}

// RuleSet maps recurrence kinds to rules.
type RuleSet map[Recurrence]Rule

// For returns the rule for kind. Unknown kinds fall back to once-per-lifetime,
// the most restrictive policy, so a catalog typo can never mint extra points.
func (rs RuleSet) For(kind Recurrence) Rule {
	if r, ok := rs[kind]; ok {
		return r
	}
	return OnceRule{}
}

// DefaultRules returns the production rule set with real recurrence windows.
func DefaultRules() RuleSet {
	return RuleSet{
		RecurrenceOnce:        OnceRule{},
		RecurrenceDaily:       DailyRule{},
		RecurrenceWeekly:      WeeklyRule{},
		RecurrencePerReferral: PerReferralRule{},
		RecurrenceStreak:      StreakRule{MinStreak: 7},
	}
}

// OneShotRules returns a rule set where every recurrence kind behaves as
// once-per-lifetime, matching the legacy system's observed behavior.
func OneShotRules() RuleSet {
	return RuleSet{
		RecurrenceOnce:        OnceRule{},
		RecurrenceDaily:       OnceRule{},
		RecurrenceWeekly:      OnceRule{},
		RecurrencePerReferral: OnceRule{},
		RecurrenceStreak:      StreakRule{MinStreak: 7},
	}
}

// =============================================================================
// RULE IMPLEMENTATIONS
// =============================================================================

// OnceRule allows at most one claim for the lifetime of the account.
type OnceRule struct{}

func (OnceRule) Eligible(acct Account, history []ClaimRecord, _ time.Time) error {
	if len(history) > 0 {
		return &NotEligibleError{
			AccountID:  acct.ID,
			ActivityID: history[0].ActivityID,
			Reason:     "already claimed",
		}
	}
	return nil
}

func (OnceRule) Completed(history []ClaimRecord, _ time.Time) bool {
	return len(history) > 0
}

// DailyRule allows one claim per UTC calendar day.
type DailyRule struct{}

func (DailyRule) Eligible(acct Account, history []ClaimRecord, now time.Time) error {
	for _, rec := range history {
		if SameDay(rec.ClaimedAt, now) {
			return &NotEligibleError{
				AccountID:  acct.ID,
				ActivityID: rec.ActivityID,
				Reason:     "already claimed today",
				RetryAt:    startOfNextDay(now),
			}
		}
	}
	return nil
}

func (DailyRule) Completed(history []ClaimRecord, now time.Time) bool {
	for _, rec := range history {
		if SameDay(rec.ClaimedAt, now) {
			return true
		}
	}
	return false
}

// WeeklyRule allows one claim per ISO week.
type WeeklyRule struct{}

func (WeeklyRule) Eligible(acct Account, history []ClaimRecord, now time.Time) error {
	week := WeekKey(now)
	for _, rec := range history {
		if WeekKey(rec.ClaimedAt) == week {
			return &NotEligibleError{
				AccountID:  acct.ID,
				ActivityID: rec.ActivityID,
				Reason:     "already claimed this week",
				RetryAt:    startOfNextISOWeek(now),
			}
		}
	}
	return nil
}

func (WeeklyRule) Completed(history []ClaimRecord, now time.Time) bool {
	week := WeekKey(now)
	for _, rec := range history {
		if WeekKey(rec.ClaimedAt) == week {
			return true
		}
	}
	return false
}

// PerReferralRule never blocks on history: each referral event is a fresh
// claim. The engine increments the account's referral count on success.
type PerReferralRule struct{}

func (PerReferralRule) Eligible(Account, []ClaimRecord, time.Time) error { return nil }

func (PerReferralRule) Completed(history []ClaimRecord, _ time.Time) bool {
	return len(history) > 0
}

// StreakRule allows one claim ever, gated on the account's streak having
// reached MinStreak consecutive days.
type StreakRule struct {
	MinStreak int
}

func (r StreakRule) Eligible(acct Account, history []ClaimRecord, _ time.Time) error {
	if len(history) > 0 {
		return &NotEligibleError{
			AccountID:  acct.ID,
			ActivityID: history[0].ActivityID,
			Reason:     "already claimed",
		}
	}
	if acct.Streak < r.MinStreak {
		return &NotEligibleError{
			AccountID: acct.ID,
			Reason:    "streak too short",
		}
	}
	return nil
}

func (StreakRule) Completed(history []ClaimRecord, _ time.Time) bool {
	return len(history) > 0
}

// =============================================================================
// WINDOW BOUNDARIES
// =============================================================================

func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func startOfNextISOWeek(t time.Time) time.Time {
	u := t.UTC()
	// Walk forward to the next Monday.
	days := (8 - int(u.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := u.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}
