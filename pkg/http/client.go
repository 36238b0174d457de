// Package http builds the *http.Client the GitHub driver uses for its
// release-info calls, with a default user-agent and optional tracing.
// Asset downloads do not go through it: pkg/downloader uses
// http.DefaultClient unless it is given a client with WithHTTPClient.
package http

import (
	"net/http"
	"time"

	commonshttp "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
)

// UserAgent identifies this tool to remote servers. GitHub's API rejects
// requests without one.
const UserAgent = "deps-fetch"

const defaultTimeout = 30 * time.Second

// Option configures Client.
type Option func(*config)

type config struct {
	timeout     time.Duration
	headerLevel logger.LogLevel
	bodyLevel   logger.LogLevel
	trace       bool
}

// WithTimeout bounds each request end-to-end. Zero disables the bound
// (asset downloads of unknown size).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithTracing logs request/response headers and bodies at the given levels.
func WithTracing(headerLevel, bodyLevel logger.LogLevel) Option {
	return func(c *config) {
		c.headerLevel = headerLevel
		c.bodyLevel = bodyLevel
		c.trace = true
	}
}

// Client builds a client with the shared defaults: a 30s timeout, the
// deps-fetch user agent on every request that did not set its own, and
// HTTP tracing when the process log level asks for it.
func Client(opts ...Option) *http.Client {
	cfg := &config{
		timeout:     defaultTimeout,
		headerLevel: logger.Trace1,
		bodyLevel:   logger.Trace2,
		trace:       logger.IsTraceEnabled(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	inner := commonshttp.NewClient().Timeout(cfg.timeout)
	if cfg.trace {
		inner = inner.WithHttpLogging(cfg.headerLevel, cfg.bodyLevel)
	}

	return &http.Client{
		Transport: userAgentTransport{next: inner},
		Timeout:   cfg.timeout,
	}
}

// userAgentTransport stamps UserAgent on requests that did not set their
// own, leaving explicit headers untouched.
type userAgentTransport struct {
	next http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}
