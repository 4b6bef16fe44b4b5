// Package gateway obtains the assistant's next utterance for a conversation
// turn. Every failure collapses into FallbackMessage: callers never see an
// error and no call is retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"requirements-agent/internal/domain"
	"requirements-agent/internal/usecase"
)

// FallbackMessage is shown to the user whenever a response cannot be produced.
const FallbackMessage = "I'm having trouble connecting right now. Please try again in a moment."

// GeneratePath is the intermediary route that turns conversation state into text.
const GeneratePath = "/api/generate-response"

// Request is the conversation state sent for one turn.
type Request struct {
	UserInput      string                `json:"userInput"`
	ProjectContext domain.ProjectContext `json:"projectContext"`
	SessionPhase   domain.Phase          `json:"sessionPhase"`
	Requirements   domain.Requirements   `json:"requirements"`
}

type response struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	onFallback func(reason string)
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithFallbackHook is called with a short reason each time the fallback
// message is returned.
func WithFallbackHook(fn func(reason string)) Option {
	return func(o *options) {
		o.onFallback = fn
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:     slog.Default(),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) fallback(ctx context.Context, reason string, err error) string {
	o.logger.WarnContext(ctx, "gateway: returning fallback message", "reason", reason, "err", err)
	if o.onFallback != nil {
		o.onFallback(reason)
	}
	return FallbackMessage
}

// Client calls a remote generate endpoint over HTTP.
type Client struct {
	endpoint string
	opts     options
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base URL %q", baseURL)
	}
	return &Client{
		endpoint: baseURL + GeneratePath,
		opts:     newOptions(opts),
	}, nil
}

// NextUtterance posts req and returns the generated text, or FallbackMessage.
func (c *Client) NextUtterance(ctx context.Context, req Request) string {
	body, err := json.Marshal(req)
	if err != nil {
		return c.opts.fallback(ctx, "marshal", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.opts.fallback(ctx, "request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return c.opts.fallback(ctx, "transport", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return c.opts.fallback(ctx, "transport", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.opts.fallback(ctx, "status", fmt.Errorf("unexpected status %d", res.StatusCode))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return c.opts.fallback(ctx, "decode", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return c.opts.fallback(ctx, "empty", errors.New("empty response"))
	}
	return out.Response
}

// Generator is the in-process generation capability.
type Generator interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (string, error)
}

// Local calls a Generator directly, for deployments where the chat session
// and the generate endpoint share a process.
type Local struct {
	gen  Generator
	opts options
}

func NewLocal(gen Generator, opts ...Option) (*Local, error) {
	if gen == nil {
		return nil, errors.New("gateway: generator must not be nil")
	}
	return &Local{gen: gen, opts: newOptions(opts)}, nil
}

func (l *Local) NextUtterance(ctx context.Context, req Request) string {
	text, err := l.gen.Generate(ctx, usecase.GenerateInput{
		UserInput:      req.UserInput,
		ProjectContext: req.ProjectContext,
		SessionPhase:   req.SessionPhase,
		Requirements:   req.Requirements,
	})
	if err != nil {
		return l.opts.fallback(ctx, "generate", err)
	}
	if strings.TrimSpace(text) == "" {
		return l.opts.fallback(ctx, "empty", errors.New("empty response"))
	}
	return text
}
