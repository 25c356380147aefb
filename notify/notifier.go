package notify

import (
	"context"
	"errors"

	"github.com/arenawatch/arenawatch/lichess"
	"github.com/arenawatch/arenawatch/pgnscan"
	"github.com/arenawatch/arenawatch/sandbag"
)

// Report is everything known about one flagged player.
type Report struct {
	Arena      lichess.Arena
	Player     lichess.Player
	User       *lichess.User
	Verdict    sandbag.Verdict
	Thresholds sandbag.Thresholds
	// lost or drawn games, shortest first
	Suspicious []pgnscan.GameResult
}

// Interface for moderation channels which get told about flagged players.
type Notifier interface {
	Announce(ctx context.Context, text string) error
	Report(ctx context.Context, r Report) error
}

// Multi sends to every configured notifier, even if some fail.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) Announce(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Announce(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, n := range m {
		if err := n.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
