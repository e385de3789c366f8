package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"studioflow/internal/config"
)

// rest is the JSON-over-HTTP helper shared by the live clients.
type rest struct {
	BaseURL    string
	Header     http.Header
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c rest) do(ctx context.Context, method, endpoint string, body any, out any) error {
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, method, url, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.Header {
		req.Header[http.CanonicalHeaderKey(k)] = vs
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Options are shared by every client constructor.
type Options struct {
	Production bool
	Backoff    Backoff
	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
}

// OptionsFrom derives client options from the loaded config.
func OptionsFrom(cfg *config.Config) Options {
	o := Options{Production: cfg.IsProduction(), Backoff: DefaultBackoff()}
	if cfg.Retry.MaxAttempts > 0 {
		o.Backoff.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 {
		o.Backoff.Base = cfg.Retry.BaseDelay
	}
	return o
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// guard decides what a failed live call turns into.
type guard struct {
	system string
	opts   Options
}

// recover returns nil when the caller should serve the simulated response.
func (g guard) recover(op string, err error) error {
	if g.opts.Production {
		return &Error{System: g.system, Op: op, Err: err}
	}
	g.opts.logger().Printf("warn: %s %s failed, using simulated response: %v", g.system, op, err)
	return nil
}
