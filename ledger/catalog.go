/*
catalog.go - Activity and reward catalog providers

PURPOSE:
  Catalogs are injected read-only providers, not package globals, so they
  can be swapped or faked in tests without touching engine logic. The engine
  snapshots catalog values into ledger records at claim/redeem time, so a
  catalog change never retroactively alters history.

CATALOGS:
  ActivityCatalog: id -> {title, points, recurrence, icon, action}
  RewardCatalog:   id -> {title, cost, tier, icon, availability}

RECURRENCE:
  Each activity carries a recurrence kind. The engine itself never inspects
  the kind; it looks up the matching eligibility rule in its RuleSet
  (see eligibility.go), which keeps claim policy pluggable.

SEE ALSO:
  - eligibility.go: Rules keyed by recurrence kind
  - engine.go: Snapshot semantics at claim/redeem time
*/
package ledger

// =============================================================================
// RECURRENCE - How often an activity may be claimed
// =============================================================================

type Recurrence string

const (
	RecurrenceOnce        Recurrence = "once"
	RecurrenceDaily       Recurrence = "daily"
	RecurrenceWeekly      Recurrence = "weekly"
	RecurrencePerReferral Recurrence = "per-referral"
	RecurrenceStreak      Recurrence = "streak"
)

// =============================================================================
// ACTIVITY CATALOG
// =============================================================================

// Activity is one entry in the static activity catalog.
type Activity struct {
	ID          ActivityID
	Title       string
	Description string
	Points      int64
	Icon        string
	Recurrence  Recurrence
	Action      string // short UI label, e.g. "Daily", "Once"
}

// ActivityCatalog resolves activity ids. Read-only.
type ActivityCatalog interface {
	// Activity returns the catalog entry for id, or ok=false if absent.
	Activity(id ActivityID) (Activity, bool)

	// Activities returns all entries in display order.
	Activities() []Activity
}

// StaticActivityCatalog is an in-memory ActivityCatalog.
type StaticActivityCatalog struct {
	entries []Activity
	byID    map[ActivityID]Activity
}

func NewStaticActivityCatalog(entries []Activity) *StaticActivityCatalog {
	c := &StaticActivityCatalog{
		entries: entries,
		byID:    make(map[ActivityID]Activity, len(entries)),
	}
	for _, a := range entries {
		c.byID[a.ID] = a
	}
	return c
}

func (c *StaticActivityCatalog) Activity(id ActivityID) (Activity, bool) {
	a, ok := c.byID[id]
	return a, ok
}

func (c *StaticActivityCatalog) Activities() []Activity {
	out := make([]Activity, len(c.entries))
	copy(out, c.entries)
	return out
}

// DefaultActivityCatalog returns the production activity catalog.
func DefaultActivityCatalog() *StaticActivityCatalog {
	return NewStaticActivityCatalog([]Activity{
		{ID: "daily-login", Title: "Daily Login", Description: "Open the app and check in",
			Points: 10, Icon: "📱", Recurrence: RecurrenceDaily, Action: "Daily"},
		{ID: "share-profile", Title: "Share Profile", Description: "Share your profile with friends",
			Points: 50, Icon: "📤", Recurrence: RecurrenceOnce, Action: "Once"},
		{ID: "refer-friend", Title: "Refer Friend", Description: "Invite a friend who joins",
			Points: 100, Icon: "👥", Recurrence: RecurrencePerReferral, Action: "Per referral"},
		{ID: "complete-task", Title: "Complete Task", Description: "Finish the weekly task",
			Points: 25, Icon: "✅", Recurrence: RecurrenceWeekly, Action: "Weekly"},
		{ID: "streak-bonus", Title: "7-Day Streak", Description: "Check in seven days in a row",
			Points: 200, Icon: "🔥", Recurrence: RecurrenceStreak, Action: "Streak"},
		{ID: "leaderboard-top10", Title: "Top 10 Rank", Description: "Reach the leaderboard top 10",
			Points: 150, Icon: "🏆", Recurrence: RecurrenceOnce, Action: "Once"},
	})
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

type RewardTier string

const (
	TierBronze RewardTier = "bronze"
	TierSilver RewardTier = "silver"
	TierGold   RewardTier = "gold"
)

// Reward is one entry in the static reward catalog.
type Reward struct {
	ID          RewardID
	Title       string
	Description string
	Cost        int64
	Icon        string
	Tier        RewardTier
	Available   bool
}

// RewardCatalog resolves reward ids. Read-only.
type RewardCatalog interface {
	// Reward returns the catalog entry for id, or ok=false if absent.
	Reward(id RewardID) (Reward, bool)

	// Rewards returns all entries in display order, including unavailable ones.
	Rewards() []Reward
}

// StaticRewardCatalog is an in-memory RewardCatalog.
type StaticRewardCatalog struct {
	entries []Reward
	byID    map[RewardID]Reward
}

func NewStaticRewardCatalog(entries []Reward) *StaticRewardCatalog {
	c := &StaticRewardCatalog{
		entries: entries,
		byID:    make(map[RewardID]Reward, len(entries)),
	}
	for _, r := range entries {
		c.byID[r.ID] = r
	}
	return c
}

func (c *StaticRewardCatalog) Reward(id RewardID) (Reward, bool) {
	r, ok := c.byID[id]
	return r, ok
}

func (c *StaticRewardCatalog) Rewards() []Reward {
	out := make([]Reward, len(c.entries))
	copy(out, c.entries)
	return out
}

// DefaultRewardCatalog returns the production reward catalog.
func DefaultRewardCatalog() *StaticRewardCatalog {
	return NewStaticRewardCatalog([]Reward{
		{ID: "discount-5", Title: "5% Discount", Description: "5% off on next purchase",
			Cost: 100, Icon: "🏷️", Tier: TierBronze, Available: true},
		{ID: "nft-drop", Title: "Exclusive NFT", Description: "Limited edition NFT collectible",
			Cost: 250, Icon: "🖼️", Tier: TierSilver, Available: true},
		{ID: "base-usdc", Title: "100 USDC", Description: "Crypto reward on Base",
			Cost: 500, Icon: "💰", Tier: TierGold, Available: true},
		{ID: "vip-badge", Title: "VIP Badge", Description: "Exclusive VIP status",
			Cost: 300, Icon: "⭐", Tier: TierSilver, Available: true},
		{ID: "early-access", Title: "Early Access", Description: "First access to new features",
			Cost: 200, Icon: "🚀", Tier: TierBronze, Available: false},
		{ID: "premium-badge", Title: "Premium Member", Description: "Lifetime premium status",
			Cost: 1000, Icon: "👑", Tier: TierGold, Available: true},
	})
}
