package lichess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/arenawatch/arenawatch/cachestore"
	"github.com/arenawatch/arenawatch/netclient"
	"github.com/arenawatch/arenawatch/util"

	"github.com/stretchr/testify/assert"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	bc := util.BackoffConfig{Min: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 10, MaxAttempts: 3}
	nc := netclient.NewClient(util.RetryingHTTPClient(nil, bc))
	return NewClient(nc, cachestore.NewMemCacheStore(100, time.Hour), Config{
		Host:  srv.URL,
		Token: "lip_test",
	})
}

func TestGetArenas(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/tournament", r.URL.Path)
		assert.Equal("Bearer lip_test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"created":[],"started":[],"finished":[
			{"id":"abc","fullName":"≤1500 Blitz Arena","hasMaxRating":true,"schedule":{"freq":"hourly","speed":"blitz"},"perf":{"key":"blitz","name":"Blitz"}},
			{"id":"def","fullName":"Hourly Blitz Arena","schedule":{"freq":"hourly","speed":"blitz"},"perf":{"key":"blitz"}}
		]}`))
	}))
	defer srv.Close()

	cat, err := testClient(t, srv).GetArenas(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Len(cat.Finished, 2)
	eligible := EligibleArenas(cat)
	if assert.Len(eligible, 1) {
		assert.Equal("abc", eligible[0].ID)
		assert.Equal("blitz", eligible[0].Perf.Key)
		assert.Equal("hourly", eligible[0].Schedule.Freq)
	}
}

func TestGetArenasBadJSON(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).GetArenas(context.Background())
	assert.Error(err)
}

func TestStreamPlayers(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/tournament/abc/results", r.URL.Path)
		w.Write([]byte(`{"rank":1,"score":57,"rating":1490,"username":"first","performance":2100}

{"rank":2,"score":"not a number","rating":1400,"username":"broken"}
not even json
{"rank":3,"score":30,"rating":1450,"username":"third"}`))
	}))
	defer srv.Close()

	stream, err := testClient(t, srv).StreamPlayers(context.Background(), "abc")
	if !assert.NoError(err) {
		return
	}
	defer stream.Close()

	var players []Player
	for stream.Next() {
		players = append(players, stream.Player())
	}
	assert.NoError(stream.Err())
	if assert.Len(players, 2) {
		assert.Equal("first", players[0].Username)
		if assert.NotNil(players[0].Performance) {
			assert.Equal(2100, *players[0].Performance)
		}
		assert.Equal("third", players[1].Username)
		assert.Nil(players[1].Performance)
	}
	assert.False(stream.Next())
}

func TestPlayerStreamReadError(t *testing.T) {
	assert := assert.New(t)

	boom := errors.New("connection reset")
	body := io.NopCloser(io.MultiReader(
		strings.NewReader("{\"rank\":1,\"score\":10,\"rating\":1000,\"username\":\"a\"}\n{\"rank\":2,"),
		iotest.ErrReader(boom),
	))
	stream := NewPlayerStream(body, nil)
	assert.True(stream.Next())
	assert.Equal("a", stream.Player().Username)
	assert.False(stream.Next())
	assert.ErrorIs(stream.Err(), boom)
}

func TestGetUsersBatchesAndCaches(t *testing.T) {
	assert := assert.New(t)

	var lk sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/api/users", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		lk.Lock()
		bodies = append(bodies, string(b))
		lk.Unlock()
		var out []string
		for _, id := range strings.Split(string(b), ",") {
			if id == "ghost" {
				continue
			}
			out = append(out, `{"id":"`+id+`","username":"`+strings.ToUpper(id)+`","createdAt":1700000000000}`)
		}
		w.Write([]byte("[" + strings.Join(out, ",") + "]"))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	ctx := context.Background()

	users, err := c.GetUsers(ctx, []string{"Alice", "bob", "ghost", "alice"})
	assert.NoError(err)
	assert.Len(users, 2)
	assert.Equal("ALICE", users["alice"].Username)
	assert.Equal([]string{"alice,bob,ghost"}, bodies)

	// second lookup of a cached user makes no request
	users, err = c.GetUsers(ctx, []string{"BOB"})
	assert.NoError(err)
	assert.Contains(users, "bob")
	assert.Len(bodies, 1)

	// more than one batch worth of ids
	var many []string
	for i := 0; i < 301; i++ {
		many = append(many, fmt.Sprintf("user%d", i))
	}
	_, err = c.GetUsers(ctx, many)
	assert.NoError(err)
	assert.Len(bodies, 3)
	assert.Len(strings.Split(bodies[1], ","), 300)
	assert.Len(strings.Split(bodies[2], ","), 1)
}

// corruptCache returns an undecodable entry for every key and fails to purge
type corruptCache struct {
	purged []string
}

func (c *corruptCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	return "{not json", true, nil
}

func (c *corruptCache) Set(ctx context.Context, namespace, key string, val string) error {
	return nil
}

func (c *corruptCache) Purge(ctx context.Context, namespace, key string) error {
	c.purged = append(c.purged, key)
	return errors.New("cache unavailable")
}

func TestGetUsersCorruptCacheEntry(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"alice","username":"Alice","createdAt":1700000000000}]`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	cache := &corruptCache{}
	bc := util.BackoffConfig{Min: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 10, MaxAttempts: 3}
	c := NewClient(netclient.NewClient(util.RetryingHTTPClient(nil, bc)), cache, Config{
		Host:   srv.URL,
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
	})

	users, err := c.GetUsers(context.Background(), []string{"alice"})
	assert.NoError(err)
	assert.Equal("Alice", users["alice"].Username)
	assert.Equal([]string{"alice"}, cache.purged)
	assert.Contains(logs.String(), "user cache purge failed")
	assert.Contains(logs.String(), `"level":"WARN"`)
}

func TestUserGames(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/games/user/Target", r.URL.Path)
		q := r.URL.Query()
		assert.Equal("100", q.Get("max"))
		assert.Equal("true", q.Get("rated"))
		assert.Equal("rapid", q.Get("perfType"))
		assert.Equal("false", q.Get("ongoing"))
		assert.Equal("true", q.Get("finished"))
		assert.Equal("1701691200000", q.Get("since"))
		assert.Equal("application/x-chess-pgn", r.Header.Get("Accept"))
		w.Write([]byte(`[Site "https://lichess.org/game0001"]
[White "Target"]
[Result "0-1"]

1. f3 e5 2. g4 Qh4# 0-1
`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	c.Now = func() time.Time { return now }
	games, err := c.UserGames(context.Background(), "Target", "rapid")
	assert.NoError(err)
	if assert.Len(games, 1) {
		assert.Equal("game0001", games[0].ID)
		assert.Equal(4, games[0].Plies)
		assert.False(games[0].Won)
	}
}

func TestUserGamesTimeout(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	c.Net.HTTP = util.RetryingHTTPClient(nil, util.DefaultBackoff())
	c.GamesTimeout = 50 * time.Millisecond
	_, err := c.UserGames(context.Background(), "Target", "blitz")
	assert.ErrorIs(err, context.DeadlineExceeded)
}
