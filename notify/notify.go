// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package notify delivers run-completion notifications to an external
// webhook. Delivery is best effort: transient failures are retried
// with backoff and a circuit breaker sheds load from an endpoint that
// keeps failing.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
	"github.com/TechEmpower/tfb-status-sub003/store"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// Config configures webhook delivery. An empty URL disables
// notifications entirely.
type Config struct {
	URL        string        `config:"url"`
	Timeout    time.Duration `config:"timeout"`
	MaxRetries int           `config:"max_retries"`
}

// Option represents configurable attributes of [Notifier].
type Option func(*Notifier)

// LogHandler configures the logging sink.
func LogHandler(h slog.Handler) Option {
	return func(n *Notifier) {
		n.log = slog.New(h)
	}
}

// Notifier posts run-completion events to a webhook URL.
type Notifier struct {
	url    string
	log    *slog.Logger
	client *http.Client
}

// New initializes a [Notifier].
func New(cfg Config, opts ...Option) *Notifier {
	n := &Notifier{
		url: cfg.URL,
		log: slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	rc := retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: newCircuitRoundTripper(http.DefaultTransport, n.log),
		},
		Logger:       nil,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		RetryMax:     maxRetries,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, i int) {
			n.log.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"sending http request",
				slog.String("url", req.URL.String()),
				slog.Int("request_attempt_count", i),
			)
		},
		ResponseLogHook: func(_ retryablehttp.Logger, resp *http.Response) {
			n.log.LogAttrs(
				resp.Request.Context(),
				slog.LevelDebug,
				"received http response",
				slog.String("url", resp.Request.URL.String()),
				slog.Int("http_status_code", resp.StatusCode),
			)
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	n.client = rc.StandardClient()
	return n
}

type runCompleteEvent struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Environment string    `json:"environment,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// UnexpectedStatusCodeError occurs when the webhook responds with a
// non-2xx status code.
type UnexpectedStatusCodeError struct {
	StatusCode int
}

// Error implements the error interface.
func (e UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("webhook responded with unexpected status code: %d", e.StatusCode)
}

// RunComplete notifies the webhook that a run finished uploading.
// It is a no-op when no webhook URL is configured.
func (n *Notifier) RunComplete(ctx context.Context, m store.Meta) error {
	if n.url == "" {
		return nil
	}

	b, err := json.Marshal(runCompleteEvent{
		UUID:        m.UUID,
		Name:        m.Name,
		Environment: m.Environment,
		UploadedAt:  m.UploadedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UnexpectedStatusCodeError{StatusCode: resp.StatusCode}
	}
	return nil
}

var errStatusCode = errors.New("status code error")

func notStatusCodeError(err error) bool {
	return err != errStatusCode
}

func notConnError(err error) bool {
	e := errors.Unwrap(err)
	switch e.(type) {
	case *net.AddrError:
		return false
	case *net.DNSError:
		return false
	case *net.OpError:
		return false
	default:
		return true
	}
}

type circuitRoundTripper struct {
	http.RoundTripper
	cb           *gobreaker.CircuitBreaker
	onStatusCode func(int) error
}

func newCircuitRoundTripper(rt http.RoundTripper, log *slog.Logger) *circuitRoundTripper {
	codes := map[int]struct{}{
		http.StatusBadRequest:          {},
		http.StatusUnauthorized:        {},
		http.StatusForbidden:           {},
		http.StatusInternalServerError: {},
	}

	return &circuitRoundTripper{
		RoundTripper: rt,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook",
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.LogAttrs(nil, slog.LevelError, "circuit has been opened")
				case gobreaker.StateHalfOpen:
					log.LogAttrs(nil, slog.LevelWarn, "circuit is now half open and letting some requests through")
				case gobreaker.StateClosed:
					log.LogAttrs(nil, slog.LevelInfo, "circuit has been closed")
				}
			},
			IsSuccessful: func(err error) bool {
				return notStatusCodeError(err) && notConnError(err)
			},
		}),
		onStatusCode: func(code int) error {
			_, ok := codes[code]
			if !ok {
				return nil
			}
			return errStatusCode
		},
	}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (any, error) {
		resp, err := rt.RoundTripper.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		err = rt.onStatusCode(resp.StatusCode)
		if err != nil {
			// The response is swallowed here, so the body must be
			// released before the error propagates.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}
