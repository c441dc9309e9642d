package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pitchsync/pitchsync/internal/adapter"
	"github.com/pitchsync/pitchsync/internal/dberr"
)

// fetcher implements adapter.Engine's HTTP half: jittered delay, 429
// cooldown, exponential retry on 5xx/network errors up to the adapter's
// ceiling, and a circuit breaker so a source having a bad day fails fast
// instead of burning the retry ceiling on every single request.
type fetcher struct {
	httpClient *http.Client
	policy     adapter.RateLimitPolicy
	userAgents []string
	baseURL    string
	adapterID  string
	breaker    *gobreaker.CircuitBreaker[fetchResult]
	logger     *slog.Logger
}

type fetchResult struct {
	body   []byte
	status int
}

func newFetcher(adapterID, baseURL string, policy adapter.RateLimitPolicy, userAgents []string, logger *slog.Logger) *fetcher {
	f := &fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
		userAgents: userAgents,
		baseURL:    baseURL,
		adapterID:  adapterID,
		logger:     logger,
	}
	f.breaker = gobreaker.NewCircuitBreaker[fetchResult](gobreaker.Settings{
		Name:        adapterID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			open := 0.0
			if to == gobreaker.StateOpen {
				open = 1.0
			}
			Metrics.CircuitOpen.WithLabelValues(name).Set(open)
			logger.Warn("circuit breaker state change", slog.String("adapter", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return f
}

// HTTPFetch implements adapter.Engine. Once the retry ceiling is exhausted
// it returns a non-nil error: marked dberr.TransientNetwork with a nil body
// for network failures (including an open breaker), or marked
// dberr.ServerError together with the last 5xx body and status.
func (f *fetcher) HTTPFetch(ctx context.Context, method, path string, headers map[string]string) ([]byte, int, error) {
	url := path
	if len(url) > 0 && url[0] == '/' {
		url = f.baseURL + url
	}

	errServerStatus := errors.New("server error status")

	var attempt int
	for {
		f.jitteredDelay(ctx)

		result, err := f.breaker.Execute(func() (fetchResult, error) {
			r, reqErr := f.doRequest(ctx, method, url, headers)
			if reqErr == nil && r.status >= 500 {
				// Count a 5xx as a failure toward the breaker's trip threshold.
				return r, errServerStatus
			}
			return r, reqErr
		})
		if errors.Is(err, errServerStatus) {
			err = nil
		}
		Metrics.Requests.WithLabelValues(f.adapterID).Inc()

		if err != nil {
			if attempt >= f.policy.MaxRetries {
				return nil, 0, dberr.Mark(err, dberr.TransientNetwork)
			}
			f.backoff(ctx, attempt)
			attempt++
			Metrics.Retries.WithLabelValues(f.adapterID).Inc()
			continue
		}

		switch {
		case result.status == http.StatusTooManyRequests:
			Metrics.RateLimitHits.WithLabelValues(f.adapterID).Inc()
			f.sleep(ctx, f.policy.CooldownOn429)
			// Per boundary behavior: exactly one cool-down then a retry,
			// the retry counter is not incremented for a 429.
			continue
		case result.status >= 500:
			if attempt >= f.policy.MaxRetries {
				return result.body, result.status, dberr.Markf(dberr.ServerError, "server error after %d attempts: status %d", attempt, result.status)
			}
			f.sleep(ctx, f.policy.CooldownOn5xx)
			f.backoff(ctx, attempt)
			attempt++
			Metrics.Retries.WithLabelValues(f.adapterID).Inc()
			continue
		default:
			return result.body, result.status, nil
		}
	}
}

func (f *fetcher) doRequest(ctx context.Context, method, url string, headers map[string]string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fetchResult{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if len(f.userAgents) > 0 {
		req.Header.Set("User-Agent", f.userAgents[rand.Intn(len(f.userAgents))])
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchResult{}, err
	}
	return fetchResult{body: body, status: resp.StatusCode}, nil
}

func (f *fetcher) jitteredDelay(ctx context.Context) {
	lo, hi := f.policy.MinRequestDelay, f.policy.MaxRequestDelay
	if hi <= lo {
		f.sleep(ctx, lo)
		return
	}
	jitter := time.Duration(rand.Int63n(int64(hi - lo)))
	f.sleep(ctx, lo+jitter)
}

func (f *fetcher) backoff(ctx context.Context, attempt int) {
	if attempt < len(f.policy.RetryBackoff) {
		f.sleep(ctx, f.policy.RetryBackoff[attempt])
		return
	}
	if len(f.policy.RetryBackoff) > 0 {
		f.sleep(ctx, f.policy.RetryBackoff[len(f.policy.RetryBackoff)-1])
	}
}

func (f *fetcher) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
