package notify

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// number of shortest losses linked from a report
const maxLinkedGames = 6

// game search only supports a few categories, by numeric index
var perfIndex = map[string]int{
	"bullet":    1,
	"blitz":     2,
	"classical": 3,
	"rapid":     6,
}

// PerfIndex returns the search index of a performance category, or "?" if
// the category has none.
func PerfIndex(perf string) string {
	if idx, ok := perfIndex[perf]; ok {
		return strconv.Itoa(idx)
	}
	return "?"
}

// Formatter renders reports as markdown with links into the site.
type Formatter struct {
	Site string
}

func (f Formatter) site() string {
	if f.Site == "" {
		return "https://lichess.org"
	}
	return strings.TrimSuffix(f.Site, "/")
}

func (f Formatter) ProfileURL(username string) string {
	return f.site() + "/@/" + url.PathEscape(username)
}

func (f Formatter) TournamentURL(id string) string {
	return f.site() + "/tournament/" + url.PathEscape(id)
}

// GameURL links to the given ply of a game, from the given side.
func (f Formatter) GameURL(id, color string, ply int) string {
	return fmt.Sprintf("%s/%s/%s#%d", f.site(), url.PathEscape(id), color, ply)
}

// LossesURL is a game search for the user's losses in a category, shortest
// first. A positive maxTurns limits the search to games of at most that
// many moves.
func (f Formatter) LossesURL(username, perf string, maxTurns int) string {
	u := fmt.Sprintf("%s/@/%s/search?perf=%s&mode=1&players.loser=%s&sort.field=t&sort.order=asc",
		f.site(), url.PathEscape(username), PerfIndex(perf), url.QueryEscape(username))
	if maxTurns > 0 {
		u += "&turnsMax=" + strconv.Itoa(maxTurns)
	}
	return u
}

func (f Formatter) Format(r Report) string {
	p := r.Player
	perf := r.Arena.Perf.Key

	var b strings.Builder
	fmt.Fprintf(&b, "**[%s](%s)** flagged, tier %s\n", p.Username, f.ProfileURL(p.Username), r.Verdict.Tier)
	fmt.Fprintf(&b, "Score **%d** (rank %d) in [%s](%s)", p.Score, p.Rank, r.Arena.FullName, f.TournamentURL(r.Arena.ID))
	if low, ok := r.Thresholds.Low.Lookup(perf); ok {
		fmt.Fprintf(&b, ", thresholds %s: %d", perf, low)
		if med, ok := r.Thresholds.Medium.Lookup(perf); ok {
			fmt.Fprintf(&b, " / %d", med)
		}
		if high, ok := r.Thresholds.High.Lookup(perf); ok {
			fmt.Fprintf(&b, " / %d", high)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Rating %d", p.Rating)
	if p.Performance != nil {
		fmt.Fprintf(&b, ", performance %d", *p.Performance)
	}
	if r.User != nil {
		fmt.Fprintf(&b, ", account created %s", r.User.CreatedAt.Format(time.DateOnly))
		if r.User.TOSViolation {
			b.WriteString(", **ToS violation**")
		}
	}
	b.WriteString("\n")

	if len(r.Verdict.Reasons) > 0 {
		fmt.Fprintf(&b, "Reasons: %s\n", strings.Join(r.Verdict.Reasons, "; "))
	}

	if len(r.Suspicious) > 0 {
		n := min(len(r.Suspicious), maxLinkedGames)
		links := make([]string, 0, n)
		for _, g := range r.Suspicious[:n] {
			links = append(links, fmt.Sprintf("[%d](%s)", g.Plies, f.GameURL(g.ID, g.Color(), g.Plies)))
		}
		fmt.Fprintf(&b, "Shortest of %d losses (plies): %s\n", len(r.Suspicious), strings.Join(links, " "))
	}

	fmt.Fprintf(&b, "[all losses](%s) | [losses under 20 moves](%s)",
		f.LossesURL(p.Username, perf, 0), f.LossesURL(p.Username, perf, 20))
	return b.String()
}
