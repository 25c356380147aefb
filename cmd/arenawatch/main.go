package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arenawatch/arenawatch/cachestore"
	"github.com/arenawatch/arenawatch/lichess"
	"github.com/arenawatch/arenawatch/netclient"
	"github.com/arenawatch/arenawatch/notify"
	"github.com/arenawatch/arenawatch/sandbag"
	"github.com/arenawatch/arenawatch/util"
	"github.com/arenawatch/arenawatch/watch"

	"github.com/PuerkitoBio/purell"
	"github.com/adrg/xdg"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "arenawatch",
		Usage:   "flags likely sandbagging in rating-capped lichess arenas",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"ARENAWATCH_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "shortcut for --log-level=debug",
			EnvVars: []string{"ARENAWATCH_DEBUG"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		scanCmd,
	}

	return app.Run(args)
}

var upstreamFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "lichess-host",
		Usage:   "method and hostname of the lichess API",
		Value:   "https://lichess.org",
		EnvVars: []string{"LICHESS_HOST"},
	},
	&cli.StringFlag{
		Name:    "lichess-token",
		Usage:   "optional personal API token for lichess",
		EnvVars: []string{"LICHESS_TOKEN"},
	},
	&cli.Float64Flag{
		Name:    "api-rate-limit",
		Usage:   "max requests per second to lichess",
		Value:   1,
		EnvVars: []string{"ARENAWATCH_API_RATE_LIMIT"},
	},
	&cli.StringFlag{
		Name:    "thresholds-file",
		Usage:   "JSON file with low/medium/high score thresholds per perf; looks for arenawatch/thresholds.json in XDG config dirs, then built-in defaults, if unset",
		EnvVars: []string{"ARENAWATCH_THRESHOLDS_FILE"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection URL for the account info cache",
		EnvVars: []string{"REDIS_URL"},
	},
	&cli.StringSliceFlag{
		Name:    "memcached",
		Usage:   "memcached servers for the account info cache, if redis is not configured; in-process cache if neither is",
		EnvVars: []string{"ARENAWATCH_MEMCACHED"},
	},
	&cli.DurationFlag{
		Name:    "user-cache-ttl",
		Usage:   "how long account info is cached",
		Value:   30 * time.Minute,
		EnvVars: []string{"ARENAWATCH_USER_CACHE_TTL"},
	},
}

var notifyFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "zulip-host",
		Usage:   "method and hostname of the zulip server",
		EnvVars: []string{"ZULIP_HOST"},
	},
	&cli.StringFlag{
		Name:    "zulip-email",
		Usage:   "zulip bot email",
		EnvVars: []string{"ZULIP_EMAIL"},
	},
	&cli.StringFlag{
		Name:    "zulip-key",
		Usage:   "zulip bot API key",
		EnvVars: []string{"ZULIP_KEY"},
	},
	&cli.StringFlag{
		Name:    "zulip-channel",
		Usage:   "zulip stream which reports are posted to",
		EnvVars: []string{"ZULIP_CHANNEL"},
	},
	&cli.StringFlag{
		Name:    "zulip-topic",
		Usage:   "zulip topic which reports are posted to",
		Value:   "sandbagging",
		EnvVars: []string{"ZULIP_TOPIC"},
	},
	&cli.StringFlag{
		Name:    "slack-webhook-url",
		Usage:   "full URL of slack webhook",
		EnvVars: []string{"SLACK_WEBHOOK_URL"},
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "scan arenas forever, sleeping between passes",
	Flags: append(append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "sleep",
			Usage:   "pause between scans",
			Value:   10 * time.Minute,
			EnvVars: []string{"ARENAWATCH_SLEEP"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"ARENAWATCH_METRICS_LISTEN"},
		},
	}, upstreamFlags...), notifyFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := configLogger(cctx, os.Stdout)

		shutdownOTEL, err := configOTEL(ctx, "arenawatch")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := shutdownOTEL(ctx); err != nil {
				slog.Error("failed to shutdown trace exporter", "error", err)
			}
		}()

		w, err := buildWatcher(ctx, cctx, logger, cctx.Duration("sleep"))
		if err != nil {
			return err
		}

		metricsServer := &http.Server{
			Addr:    cctx.String("metrics-listen"),
			Handler: metricsMux(),
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("starting metrics endpoint", "listen", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(ctx)
		})
		g.Go(func() error {
			return w.Run(ctx)
		})
		return g.Wait()
	},
}

var scanCmd = &cli.Command{
	Name:  "scan",
	Usage: "do a single pass over current arenas, then exit",
	Flags: append(append([]cli.Flag{}, upstreamFlags...), notifyFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := configLogger(cctx, os.Stdout)

		w, err := buildWatcher(ctx, cctx, logger, 0)
		if err != nil {
			return err
		}
		reported, err := w.ScanOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("scan complete", "reported", reported)
		return nil
	},
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/_health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	if cctx.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildWatcher(ctx context.Context, cctx *cli.Context, logger *slog.Logger, interval time.Duration) (*watch.Watcher, error) {
	thresholds := sandbag.DefaultThresholds()
	path := cctx.String("thresholds-file")
	if path == "" {
		if found, err := xdg.SearchConfigFile("arenawatch/thresholds.json"); err == nil {
			path = found
		}
	}
	if path != "" {
		t, err := sandbag.LoadThresholds(path)
		if err != nil {
			return nil, err
		}
		thresholds = t
		logger.Info("loaded score thresholds", "path", path)
	}

	var cache cachestore.CacheStore
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		rcache, err := cachestore.NewRedisCacheStore(ctx, redisURL, cctx.Duration("user-cache-ttl"))
		if err != nil {
			return nil, err
		}
		cache = rcache
		logger.Info("using redis for account info cache")
	} else if servers := cctx.StringSlice("memcached"); len(servers) > 0 {
		cache = cachestore.NewMemcacheStore(servers, cctx.Duration("user-cache-ttl"))
		logger.Info("using memcached for account info cache", "servers", servers)
	} else {
		cache = cachestore.NewMemCacheStore(10_000, cctx.Duration("user-cache-ttl"))
	}

	nc := netclient.NewClient(util.RetryingHTTPClient(logger, util.DefaultBackoff()))

	lichessHost, err := normalizeHost(cctx.String("lichess-host"))
	if err != nil {
		return nil, err
	}
	lc := lichess.NewClient(nc, cache, lichess.Config{
		Host:      lichessHost,
		Token:     cctx.String("lichess-token"),
		RateLimit: cctx.Float64("api-rate-limit"),
		Logger:    logger,
	})

	notifier, err := buildNotifier(cctx, nc, lichessHost, logger)
	if err != nil {
		return nil, err
	}

	announcement := fmt.Sprintf("arenawatch `%s` started, scanning rating-capped arenas", versioninfo.Short())
	if interval > 0 {
		announcement += fmt.Sprintf(" every %s", interval)
	}

	return watch.NewWatcher(
		lc,
		sandbag.NewClassifier(thresholds, time.Now),
		notifier,
		watch.Config{
			Interval:     interval,
			Announcement: announcement,
			Logger:       logger,
		},
	), nil
}

func buildNotifier(cctx *cli.Context, nc *netclient.Client, site string, logger *slog.Logger) (notify.Notifier, error) {
	formatter := notify.Formatter{Site: site}
	var out notify.Multi

	if host := cctx.String("zulip-host"); host != "" {
		host, err := normalizeHost(host)
		if err != nil {
			return nil, err
		}
		if cctx.String("zulip-email") == "" || cctx.String("zulip-key") == "" || cctx.String("zulip-channel") == "" {
			return nil, fmt.Errorf("zulip-email, zulip-key and zulip-channel are required with zulip-host")
		}
		out = append(out, &notify.ZulipNotifier{
			Host:      host,
			Auth:      netclient.BasicAuth{Email: cctx.String("zulip-email"), Key: cctx.String("zulip-key")},
			Channel:   cctx.String("zulip-channel"),
			Topic:     cctx.String("zulip-topic"),
			Net:       nc,
			Formatter: formatter,
			Logger:    logger,
		})
	}
	if hook := cctx.String("slack-webhook-url"); hook != "" {
		out = append(out, &notify.SlackNotifier{
			SlackWebhookURL: hook,
			Net:             nc,
			Formatter:       formatter,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no notifier configured: set zulip-host or slack-webhook-url")
	}
	return out, nil
}

// normalizeHost canonicalizes a service base URL from config, so that paths
// can be appended to it directly.
func normalizeHost(raw string) (string, error) {
	host, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveTrailingSlash|purell.FlagRemoveDuplicateSlashes)
	if err != nil {
		return "", fmt.Errorf("invalid host URL %q: %w", raw, err)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return "", fmt.Errorf("host URL must start with http:// or https://: %q", raw)
	}
	return host, nil
}
