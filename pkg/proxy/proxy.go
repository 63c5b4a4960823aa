// Package proxy forwards gated traffic to the upstream service.
package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"strings"

	"github.com/getmockd/schemagate/pkg/httputil"
	"github.com/getmockd/schemagate/pkg/logging"
)

// Options configures the proxy.
type Options struct {
	// Upstream is the base URL requests are forwarded to. Its path is
	// prepended to every request path.
	Upstream string

	// Transport sends upstream requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// Logger for upstream failures (nil = no logging).
	Logger *slog.Logger
}

// Proxy is a reverse proxy to a single upstream.
type Proxy struct {
	target *url.URL
	rp     *stdhttputil.ReverseProxy
	log    *slog.Logger
}

// New creates a Proxy for opts.Upstream.
func New(opts Options) (*Proxy, error) {
	if opts.Upstream == "" {
		return nil, errors.New("proxy: upstream is required")
	}
	target, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid upstream: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("proxy: upstream scheme must be http or https, got %q", target.Scheme)
	}

	p := &Proxy{target: target, log: opts.Logger}
	if p.log == nil {
		p.log = logging.Nop()
	}
	p.rp = &stdhttputil.ReverseProxy{
		Rewrite: func(pr *stdhttputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
		},
		Transport:    opts.Transport,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Target returns the upstream URL.
func (p *Proxy) Target() *url.URL {
	u := *p.target
	return &u
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context(), p.log).Error("proxy: upstream request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"upstream", p.target.Host,
		"error", err)
	msg := "upstream request failed"
	if strings.Contains(err.Error(), "connection refused") {
		msg = "upstream unavailable"
	}
	httputil.WriteError(w, http.StatusBadGateway, "bad_gateway", msg)
}
