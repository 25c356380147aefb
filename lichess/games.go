package lichess

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/arenawatch/arenawatch/netclient"
	"github.com/arenawatch/arenawatch/pgnscan"

	"github.com/google/go-querystring/query"
	"go.opentelemetry.io/otel/attribute"
)

const maxGamesPerUser = 100

type gamesQuery struct {
	Max      int    `url:"max"`
	Rated    bool   `url:"rated"`
	PerfType string `url:"perfType"`
	Ongoing  bool   `url:"ongoing"`
	Finished bool   `url:"finished"`
	// epoch milliseconds
	Since int64 `url:"since"`
}

func (c *Client) userGamesURL(username, perf string) (string, error) {
	params, err := query.Values(gamesQuery{
		Max:      maxGamesPerUser,
		Rated:    true,
		PerfType: perf,
		Ongoing:  false,
		Finished: true,
		Since:    c.Now().Add(-c.GamesWindow).UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return c.Host + "/api/games/user/" + url.PathEscape(username) + "?" + params.Encode(), nil
}

// UserGames fetches up to 100 recent rated, finished games of one user in
// one performance category and scans them. The whole fetch, including
// retries and reading the body, is bounded by the client's games timeout.
func (c *Client) UserGames(ctx context.Context, username, perf string) ([]pgnscan.GameResult, error) {
	ctx, span := tracer.Start(ctx, "UserGames")
	defer span.End()
	span.SetAttributes(attribute.String("user", username), attribute.String("perf", perf))

	ctx, cancel := context.WithTimeout(ctx, c.GamesTimeout)
	defer cancel()

	u, err := c.userGamesURL(username, perf)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, netclient.Request{
		Method: http.MethodGet,
		URL:    u,
		Accept: "application/x-chess-pgn",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching games of %s: %w", username, err)
	}
	defer resp.Body.Close()

	games, err := pgnscan.Analyze(resp.Body, username)
	if err != nil {
		return games, fmt.Errorf("scanning games of %s: %w", username, err)
	}
	span.SetAttributes(attribute.Int("games", len(games)))
	return games, nil
}
