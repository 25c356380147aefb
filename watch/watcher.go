package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arenawatch/arenawatch/lichess"
	"github.com/arenawatch/arenawatch/notify"
	"github.com/arenawatch/arenawatch/pgnscan"
	"github.com/arenawatch/arenawatch/sandbag"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("watch")

// Upstream is the subset of the lichess client which the watcher needs.
type Upstream interface {
	GetArenas(ctx context.Context) (*lichess.Catalog, error)
	StreamPlayers(ctx context.Context, arenaID string) (*lichess.PlayerStream, error)
	UserGames(ctx context.Context, username, perf string) ([]pgnscan.GameResult, error)
	GetUsers(ctx context.Context, usernames []string) (map[string]*lichess.User, error)
}

type Config struct {
	// pause between the end of one scan and the start of the next
	Interval time.Duration
	// sent once at startup; empty to skip
	Announcement string
	Logger       *slog.Logger
}

// Watcher scans eligible arenas one at a time, and their players one at a
// time, reporting flagged players to the notifier.
type Watcher struct {
	upstream   Upstream
	classifier *sandbag.Classifier
	notifier   notify.Notifier
	interval   time.Duration
	announce   string
	logger     *slog.Logger
}

func NewWatcher(upstream Upstream, classifier *sandbag.Classifier, notifier notify.Notifier, config Config) *Watcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		upstream:   upstream,
		classifier: classifier,
		notifier:   notifier,
		interval:   config.Interval,
		announce:   config.Announcement,
		logger:     logger.With("component", "watcher"),
	}
}

// Run sends the startup announcement, then scans and sleeps until the
// context is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.announce != "" {
		if err := w.notifier.Announce(ctx, w.announce); err != nil {
			w.logger.Error("failed to send startup announcement", "err", err)
		}
	}

	for {
		start := time.Now()
		reported, err := w.ScanOnce(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			w.logger.Error("scan failed", "err", err)
		}
		w.logger.Info("scan complete", "reported", reported, "duration", time.Since(start), "next", w.interval)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.interval):
		}
	}
}

// ScanOnce does a single pass over every eligible arena in the current
// catalog, and returns the number of players reported. An error is only
// returned if the catalog could not be fetched; failures within an arena
// end that arena's scan and move on to the next.
func (w *Watcher) ScanOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ScanOnce")
	defer span.End()
	start := time.Now()
	defer func() {
		scanDuration.Observe(time.Since(start).Seconds())
	}()

	cat, err := w.upstream.GetArenas(ctx)
	if err != nil {
		scanErrorCount.WithLabelValues("catalog").Inc()
		return 0, err
	}
	arenas := lichess.EligibleArenas(cat)
	span.SetAttributes(attribute.Int("arenas", len(arenas)))
	w.logger.Debug("scanning arenas", "eligible", len(arenas), "finished", len(cat.Finished))

	// a player can show up in several arenas, but is only reported once per pass
	seen := make(map[string]bool)
	total := 0
	for _, arena := range arenas {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := w.ScanArena(ctx, arena, seen)
		total += n
		if err != nil {
			scanErrorCount.WithLabelValues("arena").Inc()
			w.logger.Warn("arena scan aborted", "arena", arena.ID, "err", err)
		}
	}
	return total, nil
}

// ScanArena streams one arena's leaderboard and examines each player in turn.
// Players whose lowercased name is already in 'seen' are skipped; reported
// players are added to it.
func (w *Watcher) ScanArena(ctx context.Context, arena lichess.Arena, seen map[string]bool) (int, error) {
	ctx, span := tracer.Start(ctx, "ScanArena")
	defer span.End()
	span.SetAttributes(attribute.String("arena", arena.ID), attribute.String("perf", arena.Perf.Key))

	perf := arena.Perf.Key
	logger := w.logger.With("arena", arena.ID, "perf", perf)
	arenasScanned.WithLabelValues(perf).Inc()

	stream, err := w.upstream.StreamPlayers(ctx, arena.ID)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	reported := 0
	for stream.Next() {
		player := stream.Player()
		playersSeen.WithLabelValues(perf).Inc()

		key := strings.ToLower(player.Username)
		if seen[key] {
			continue
		}
		if !w.classifier.Thresholds().Preselect(arena, player) {
			continue
		}

		verdict, err := w.examine(ctx, logger, arena, player)
		if err != nil {
			logger.Error("failed to send report", "user", player.Username, "err", err)
		}
		if verdict.Flagged() {
			seen[key] = true
			reported++
		}
	}
	if err := stream.Err(); err != nil {
		return reported, fmt.Errorf("arena %s: %w", arena.ID, err)
	}
	return reported, nil
}

// examine runs the expensive checks on one prescreened player, and sends a
// report if the classifier flags them.
func (w *Watcher) examine(ctx context.Context, logger *slog.Logger, arena lichess.Arena, player lichess.Player) (sandbag.Verdict, error) {
	ctx, span := tracer.Start(ctx, "ExaminePlayer")
	defer span.End()
	span.SetAttributes(attribute.String("user", player.Username))

	perf := arena.Perf.Key
	playersExamined.WithLabelValues(perf).Inc()
	logger = logger.With("user", player.Username, "score", player.Score)

	games, err := w.upstream.UserGames(ctx, player.Username, perf)
	if err != nil {
		scanErrorCount.WithLabelValues("games").Inc()
		logger.Warn("could not fetch games, continuing without them", "err", err)
		games = nil
	}
	suspicious := pgnscan.SortedSuspicious(games)

	var user *lichess.User
	users, err := w.upstream.GetUsers(ctx, []string{player.Username})
	if err != nil {
		scanErrorCount.WithLabelValues("users").Inc()
		logger.Warn("could not fetch account info, continuing without it", "err", err)
	} else {
		user = users[strings.ToLower(player.Username)]
	}

	verdict := w.classifier.Classify(sandbag.Input{
		Arena:      arena,
		Player:     player,
		Suspicious: suspicious,
		User:       user,
	})
	if !verdict.Flagged() {
		logger.Debug("player not flagged", "games", len(games), "suspicious", len(suspicious))
		return verdict, nil
	}

	logger.Info("reporting player", "tier", verdict.Tier.String(), "reasons", verdict.Reasons)
	reportsSent.WithLabelValues(perf, verdict.Tier.String()).Inc()
	span.SetAttributes(attribute.String("tier", verdict.Tier.String()))
	return verdict, w.notifier.Report(ctx, notify.Report{
		Arena:      arena,
		Player:     player,
		User:       user,
		Verdict:    verdict,
		Thresholds: w.classifier.Thresholds(),
		Suspicious: suspicious,
	})
}
