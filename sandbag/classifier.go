package sandbag

import (
	"fmt"
	"time"

	"github.com/arenawatch/arenawatch/lichess"
	"github.com/arenawatch/arenawatch/pgnscan"
)

type Tier int

const (
	TierNone Tier = iota
	// score alone is far above what the category usually sees
	TierA
	TierB
	TierC
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierA:
		return "A"
	case TierB:
		return "B"
	case TierC:
		return "C"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

type Input struct {
	Arena  lichess.Arena
	Player lichess.Player
	// lost or drawn games, shortest first
	Suspicious []pgnscan.GameResult
	// nil if the account lookup failed
	User *lichess.User
}

type Verdict struct {
	Tier    Tier
	Reasons []string
}

func (v Verdict) Flagged() bool {
	return v.Tier != TierNone
}

// rule is one of the account-based tiers. A player matches if any one of the
// conditions holds.
type rule struct {
	tier          Tier
	veryNew       bool
	maxSuspicious int
	ratingMargin  int
	perfMargin    int
}

var accountRules = []rule{
	{tier: TierB, veryNew: false, maxSuspicious: 25, ratingMargin: 200, perfMargin: 500},
	{tier: TierC, veryNew: true, maxSuspicious: 30, ratingMargin: 300, perfMargin: 400},
}

type Classifier struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewClassifier(thresholds Thresholds, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		thresholds: thresholds,
		now:        now,
	}
}

func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify evaluates the tiers in order and stops at the first match, so at
// most one tier is ever reported for a player.
func (c *Classifier) Classify(in Input) Verdict {
	if high, ok := c.thresholds.High.Lookup(in.Arena.Perf.Key); ok && in.Player.Score >= high {
		return Verdict{
			Tier:    TierA,
			Reasons: []string{fmt.Sprintf("score %d at or above %d", in.Player.Score, high)},
		}
	}

	for _, r := range accountRules {
		if reasons := c.match(r, in); len(reasons) > 0 {
			return Verdict{Tier: r.tier, Reasons: reasons}
		}
	}
	return Verdict{Tier: TierNone}
}

func (c *Classifier) match(r rule, in Input) []string {
	var reasons []string

	if in.User != nil {
		now := c.now()
		if r.veryNew && in.User.IsVeryNew(now) {
			reasons = append(reasons, fmt.Sprintf("account created %s", in.User.CreatedAt.Format(time.DateOnly)))
		} else if !r.veryNew && in.User.IsNew(now) {
			reasons = append(reasons, fmt.Sprintf("account created %s", in.User.CreatedAt.Format(time.DateOnly)))
		}
	}

	if len(in.Suspicious) > r.maxSuspicious {
		reasons = append(reasons, fmt.Sprintf("%d games lost or drawn", len(in.Suspicious)))
	}

	ceiling, ok := in.Arena.RatingLimit()
	if ok && in.Player.Performance != nil {
		perf := *in.Player.Performance
		if floor := subFloor(ceiling, r.ratingMargin); in.Player.Rating < floor {
			reasons = append(reasons, fmt.Sprintf("rating %d below %d", in.Player.Rating, floor))
		}
		if perf > ceiling+r.perfMargin {
			reasons = append(reasons, fmt.Sprintf("performance %d above %d", perf, ceiling+r.perfMargin))
		}
	}
	return reasons
}

// subFloor subtracts, clamping at zero.
func subFloor(a, b int) int {
	if a <= b {
		return 0
	}
	return a - b
}
