// Package ai produces structured first-pass submission analyses with a
// local Ollama model. The whole package is optional; the server runs
// without it.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// ClientConfig tunes the Ollama wrapper.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// FailureThreshold failures in a row open the circuit for ResetAfter.
	FailureThreshold int
	ResetAfter       time.Duration
}

// Client wraps the Ollama API client and adds retries, a per-call timeout,
// and a small circuit breaker so a wedged model server cannot pile up
// goroutines.
type Client struct {
	api *api.Client
	cfg ClientConfig

	failures  int32
	openUntil int64
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetAfter == 0 {
		cfg.ResetAfter = 30 * time.Second
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}

	return &Client{
		api: api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		cfg: cfg,
	}, nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.FailureThreshold) {
		return false
	}
	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}
	// half-open: let one request probe the server
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.FailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.ResetAfter).UnixNano())
	}
}

// Generate sends a prompt and returns the collected model output. JSON
// format is requested so downstream parsing has a fighting chance.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c.isCircuitOpen() {
		return "", ErrCircuitOpen
	}

	stream := false
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		var out string
		err := c.api.Generate(ctxReq, &api.GenerateRequest{
			Model:  model,
			Prompt: prompt,
			Stream: &stream,
			Format: json.RawMessage(`"json"`),
		}, func(r api.GenerateResponse) error {
			out += r.Response
			return nil
		})
		cancel()

		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return out, nil
		}
		lastErr = err
		c.recordFailure()
		if c.isCircuitOpen() {
			return "", ErrCircuitOpen
		}
		time.Sleep(c.cfg.Backoff * time.Duration(attempt+1))
	}

	return "", fmt.Errorf("generate failed after retries: %w", lastErr)
}
