// Package http provides the HTTP transport used by exchange adapters.
package http

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"tally/pkg/core"
)

// Config holds transport settings. There is deliberately no retry
// configuration: a failed exchange call surfaces immediately and retry
// policy belongs to the caller.
type Config struct {
	BaseURL string            `validate:"required,url"`
	Timeout time.Duration     `validate:"min=1ms"`
	Headers map[string]string `validate:"omitempty"`
}

// Client wraps a resty client with sonic JSON codecs and a fixed
// request timeout. Headers that vary per request (signatures, expiry)
// are set on individual requests, never on the shared client.
type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a transport client for the given base URL.
func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: logger,
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

// Execute dispatches one core.Request. The request's FullPath carries
// the already-encoded query string so the transmitted URL is exactly
// the string that was signed.
func (c *Client) Execute(ctx context.Context, req *core.Request) (*resty.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	r := c.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers)

	if req.Body != "" {
		r.SetBody(req.Body)
	}

	switch req.Method {
	case "GET":
		return r.Get(req.FullPath())
	case "POST":
		return r.Post(req.FullPath())
	case "PUT":
		return r.Put(req.FullPath())
	default:
		return nil, fmt.Errorf("unsupported http method: %s", req.Method)
	}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}
