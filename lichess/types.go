package lichess

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rivo/uniseg"
)

type Schedule struct {
	Freq  string `json:"freq"`
	Speed string `json:"speed"`
}

type Perf struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// Arena is one tournament entry from the catalog.
type Arena struct {
	ID           string   `json:"id"`
	FullName     string   `json:"fullName"`
	HasMaxRating bool     `json:"hasMaxRating"`
	Schedule     Schedule `json:"schedule"`
	Perf         Perf     `json:"perf"`
}

// RatingLimit returns the rating ceiling of a capped arena, parsed from its
// display name ("≤1500 Blitz Arena" gives 1500). The second return value is
// false when the arena is uncapped or the name does not have a four digit
// ceiling right after its first character.
func (a Arena) RatingLimit() (int, bool) {
	if !a.HasMaxRating {
		return 0, false
	}
	// the lead character is a symbol like "≤", which may span several runes
	gr := uniseg.NewGraphemes(a.FullName)
	if !gr.Next() {
		return 0, false
	}
	_, end := gr.Positions()
	digits := []rune(a.FullName[end:])
	if len(digits) < 4 {
		return 0, false
	}
	for _, r := range digits[:4] {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	limit, err := strconv.Atoi(string(digits[:4]))
	if err != nil {
		return 0, false
	}
	return limit, true
}

type Catalog struct {
	Created  []Arena `json:"created"`
	Started  []Arena `json:"started"`
	Finished []Arena `json:"finished"`
}

// EligibleArenas returns the finished arenas which have a rating ceiling, in
// catalog order.
func EligibleArenas(c *Catalog) []Arena {
	if c == nil {
		return nil
	}
	var out []Arena
	for _, a := range c.Finished {
		if a.HasMaxRating {
			out = append(out, a)
		}
	}
	return out
}

// Player is one leaderboard record, eg:
//
//	{"rank":2,"score":57,"rating":2611,"username":"xxx","performance":2462}
type Player struct {
	Rank        int    `json:"rank"`
	Score       int    `json:"score"`
	Rating      int    `json:"rating"`
	Username    string `json:"username"`
	Performance *int   `json:"performance,omitempty"`
}

const (
	newAccountAge     = 20 * 24 * time.Hour
	veryNewAccountAge = 10 * 24 * time.Hour
)

type User struct {
	ID           string
	Username     string
	TOSViolation bool
	CreatedAt    time.Time
}

type userJSON struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	TOSViolation bool   `json:"tosViolation"`
	CreatedAt    int64  `json:"createdAt"`
}

// createdAt is in epoch milliseconds
func (u *User) UnmarshalJSON(b []byte) error {
	var raw userJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	u.Username = raw.Username
	u.TOSViolation = raw.TOSViolation
	u.CreatedAt = time.UnixMilli(raw.CreatedAt).UTC()
	return nil
}

func (u *User) IsNew(now time.Time) bool {
	return now.Sub(u.CreatedAt) < newAccountAge
}

func (u *User) IsVeryNew(now time.Time) bool {
	return now.Sub(u.CreatedAt) < veryNewAccountAge
}
