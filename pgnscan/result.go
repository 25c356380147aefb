package pgnscan

import (
	"sort"
)

// GameResult holds the facts extracted from one game, from the point of view
// of the examined player.
type GameResult struct {
	ID      string
	Plies   int
	Won     bool
	IsWhite bool
}

// Color is the examined player's side, as used in game URLs.
func (g GameResult) Color() string {
	if g.IsWhite {
		return "white"
	}
	return "black"
}

// accumulator collects header and movetext facts for the game currently
// being scanned. Fields stay nil until the corresponding input is seen.
type accumulator struct {
	id      *string
	plies   int
	won     *bool
	isWhite *bool
	outcome *string
}

// resolve fills in 'won' once both the player's color and the outcome are
// known. Draws and unfinished outcomes count as not won.
func (a *accumulator) resolve() {
	if a.won != nil || a.isWhite == nil || a.outcome == nil {
		return
	}
	won := (*a.isWhite && *a.outcome == "1-0") || (!*a.isWhite && *a.outcome == "0-1")
	a.won = &won
}

// finish converts the accumulator to a GameResult. It returns false if any
// of id, won or color never resolved.
func (a accumulator) finish() (GameResult, bool) {
	if a.id == nil || a.won == nil || a.isWhite == nil {
		return GameResult{}, false
	}
	return GameResult{
		ID:      *a.id,
		Plies:   a.plies,
		Won:     *a.won,
		IsWhite: *a.isWhite,
	}, true
}

// SortedSuspicious returns the games the player did not win, shortest first.
// Games of equal length keep their input order.
func SortedSuspicious(games []GameResult) []GameResult {
	out := make([]GameResult, 0, len(games))
	for _, g := range games {
		if !g.Won {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Plies < out[j].Plies
	})
	return out
}
