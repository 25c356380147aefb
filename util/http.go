package util

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// BackoffConfig controls how long the retrying client waits between attempts.
//
// The wait before retry N (0-based) is Min * Multiplier^N, capped at Max. A
// MaxAttempts of zero means "retry forever"; only context cancellation ends
// the call in that case.
type BackoffConfig struct {
	Min         time.Duration
	Max         time.Duration
	Multiplier  int
	MaxAttempts int
}

// upstream asks bots to back off for at least a minute after an error
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Min:        60 * time.Second,
		Max:        3600 * time.Second,
		Multiplier: 10,
	}
}

// Delay returns the wait before the retry following failed attempt number
// 'attempt' (0-based).
func (bc BackoffConfig) Delay(attempt int) time.Duration {
	d := bc.Min
	if bc.Multiplier <= 1 {
		return min(d, bc.Max)
	}
	for i := 0; i < attempt && d < bc.Max; i++ {
		d *= time.Duration(bc.Multiplier)
	}
	if d > bc.Max {
		d = bc.Max
	}
	return d
}

// Backoff has the retryablehttp.Backoff signature. The min/max arguments are
// ignored in favor of the config values.
func (bc BackoffConfig) Backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return bc.Delay(attemptNum)
}

func (bc BackoffConfig) retryMax() int {
	if bc.MaxAttempts <= 0 {
		return math.MaxInt32
	}
	return bc.MaxAttempts - 1
}

// RetryUntilSuccess is a retryablehttp.CheckRetry policy which retries every
// transport error and every non-2xx status, including 4xx. It stops only when
// the request context is done.
func RetryUntilSuccess(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return true, nil
	}
	return false, nil
}

type LeveledSlog struct {
	inner *slog.Logger
}

func NewLeveledSlog(logger *slog.Logger) LeveledSlog {
	if logger == nil {
		logger = slog.Default()
	}
	return LeveledSlog{inner: logger.With("component", "http")}
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

// the retry itself is logged at DEBUG by retryablehttp, along with the failing
// request and the next wait. That line is promoted to WARN.
func (l LeveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	if msg == "retrying request" {
		l.inner.Warn(msg, keysAndValues...)
		return
	}
	l.inner.Debug(msg, keysAndValues...)
}

// Generates an HTTP client which keeps retrying until it gets a 2xx response,
// waiting according to the backoff config between attempts. Every failed
// attempt is logged at WARN with the request method, URL, status and next
// wait.
//
// When an attempt limit is configured and reached, the last response (if
// any) is passed through to the caller instead of being converted to an
// error, so callers should check the status code.
func RetryingHTTPClient(logger *slog.Logger, bc BackoffConfig) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport()),
	}
	retryClient.Logger = retryablehttp.LeveledLogger(NewLeveledSlog(logger))
	retryClient.RetryWaitMin = bc.Min
	retryClient.RetryWaitMax = bc.Max
	retryClient.RetryMax = bc.retryMax()
	retryClient.Backoff = bc.Backoff
	retryClient.CheckRetry = RetryUntilSuccess
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient
}
