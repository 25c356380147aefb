package sandbag

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arenawatch/arenawatch/lichess"
)

// ScoreTable maps a performance category key ("blitz", "superBlitz", ...) to
// an arena score.
type ScoreTable map[string]int

func (t ScoreTable) Lookup(perf string) (int, bool) {
	v, ok := t[perf]
	return v, ok
}

// Thresholds are the arena scores above which a player is worth a closer
// look (Low), mentioned as notable in reports (Medium), or reported on score
// alone (High).
type Thresholds struct {
	Low    ScoreTable `json:"low"`
	Medium ScoreTable `json:"medium"`
	High   ScoreTable `json:"high"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Low: ScoreTable{
			"bullet":     30,
			"superBlitz": 30,
			"blitz":      25,
			"rapid":      20,
		},
		Medium: ScoreTable{
			"bullet":     35,
			"superBlitz": 35,
			"blitz":      30,
			"rapid":      25,
		},
		High: ScoreTable{
			"bullet":     45,
			"superBlitz": 45,
			"blitz":      40,
			"rapid":      35,
		},
	}
}

// LoadThresholds reads a JSON threshold table from disk, eg:
//
//	{"low": {"blitz": 25}, "medium": {"blitz": 30}, "high": {"blitz": 40}}
func LoadThresholds(path string) (Thresholds, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("reading thresholds: %w", err)
	}
	var t Thresholds
	if err := json.Unmarshal(b, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parsing thresholds %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return t, nil
}

// Validate checks that every category has a low threshold, and that the tiers
// are ordered where they are defined.
func (t Thresholds) Validate() error {
	if len(t.Low) == 0 {
		return fmt.Errorf("no low thresholds defined")
	}
	for perf, low := range t.Low {
		if med, ok := t.Medium[perf]; ok && med < low {
			return fmt.Errorf("%s: medium threshold %d below low threshold %d", perf, med, low)
		}
		if high, ok := t.High[perf]; ok && high < low {
			return fmt.Errorf("%s: high threshold %d below low threshold %d", perf, high, low)
		}
	}
	for perf := range t.High {
		if _, ok := t.Low[perf]; !ok {
			return fmt.Errorf("%s: high threshold without low threshold", perf)
		}
	}
	return nil
}

// Preselect is the cheap first pass over leaderboard records: only players
// scoring at least the low threshold are worth fetching games for. Unknown
// categories never pass.
func (t Thresholds) Preselect(arena lichess.Arena, player lichess.Player) bool {
	low, ok := t.Low.Lookup(arena.Perf.Key)
	return ok && player.Score >= low
}
