package lichess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/arenawatch/arenawatch/netclient"
)

// PlayerStream is a forward-only reader over an NDJSON leaderboard. It reads
// one record at a time and never buffers the whole body.
//
//	for s.Next() {
//		p := s.Player()
//	}
//	if err := s.Err(); err != nil { ... }
type PlayerStream struct {
	body   io.ReadCloser
	r      *bufio.Reader
	cur    Player
	err    error
	done   bool
	logger *slog.Logger
}

func NewPlayerStream(body io.ReadCloser, logger *slog.Logger) *PlayerStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlayerStream{
		body:   body,
		r:      bufio.NewReader(body),
		logger: logger,
	}
}

// Next advances to the next decodable record. Blank lines are skipped, and
// records which fail to decode are logged and skipped. Returns false at the
// end of the stream or after a read failure (see Err).
func (s *PlayerStream) Next() bool {
	for !s.done {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("reading leaderboard: %w", err)
				return false
			}
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var p Player
		if err := json.Unmarshal(line, &p); err != nil {
			s.logger.Warn("skipping undecodable leaderboard record", "err", err, "record", string(line))
			continue
		}
		s.cur = p
		return true
	}
	return false
}

func (s *PlayerStream) Player() Player {
	return s.cur
}

func (s *PlayerStream) Err() error {
	return s.err
}

func (s *PlayerStream) Close() error {
	s.done = true
	return s.body.Close()
}

// StreamPlayers opens the results feed of one arena. The caller must Close
// the returned stream.
func (c *Client) StreamPlayers(ctx context.Context, arenaID string) (*PlayerStream, error) {
	resp, err := c.do(ctx, netclient.Request{
		Method: http.MethodGet,
		URL:    c.Host + "/api/tournament/" + url.PathEscape(arenaID) + "/results",
		Accept: "application/x-ndjson",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching results of arena %s: %w", arenaID, err)
	}
	return NewPlayerStream(resp.Body, c.logger.With("arena", arenaID)), nil
}
