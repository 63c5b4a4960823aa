package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/schemagate/pkg/logging"
	"github.com/getmockd/schemagate/pkg/schema"
)

// RequestIDHeader carries a caller-supplied request ID.
const RequestIDHeader = "X-Request-ID"

// Validation results reported to a Recorder.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Recorder receives validation measurements. pkg/metrics provides a
// Prometheus implementation.
type Recorder interface {
	ObserveValidation(phase, result string, elapsed time.Duration)
	ObserveUnmatched(method string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveValidation(string, string, time.Duration) {}
func (nopRecorder) ObserveUnmatched(string)                         {}

// Option configures a Gate.
type Option func(*Gate)

// WithEngine selects the validation engine. The default is JSONSchemaEngine.
func WithEngine(e Engine) Option {
	return func(g *Gate) {
		if e != nil {
			g.engine = e
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMetrics sets the measurement sink.
func WithMetrics(r Recorder) Option {
	return func(g *Gate) {
		if r != nil {
			g.metrics = r
		}
	}
}

// Gate enforces a schema index on the requests and responses of a handler.
// It is immutable after New and safe for concurrent use.
type Gate struct {
	index     *schema.Index
	cfg       Config
	engine    Engine
	validator *Validator
	log       *slog.Logger
	metrics   Recorder
}

// New builds a Gate over idx. Every shape of the index is compiled here, so
// a schema the engine rejects fails at startup rather than per request.
//
// cfg is used as given: a zero Config turns both phases off. Pass
// DefaultConfig, adjusted as needed, to validate traffic.
func New(idx *schema.Index, cfg Config, opts ...Option) (*Gate, error) {
	if idx == nil {
		return nil, errors.New("validation: nil schema index")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation: invalid config: %w", err)
	}
	g := &Gate{
		index:   idx,
		cfg:     cfg.withDefaults(),
		engine:  NewJSONSchemaEngine(),
		log:     logging.Nop(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.cfg.ValidateRequest && !g.cfg.ValidateResponse {
		g.log.Warn("validation: request and response validation are both disabled")
	}

	v, err := NewValidator(g.engine, idx.Shapes()...)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	g.validator = v
	return g, nil
}

// Config returns the configuration the gate runs with.
func (g *Gate) Config() Config {
	return g.cfg
}

// Middleware applies both phases: the request phase outside, the response
// phase around next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return g.RequestPhase(g.ResponsePhase(next))
}

// RequestPhase resolves the route, records it on the request context and
// rejects requests that violate the schema. Unmatched and ignored requests
// pass through untouched.
func (g *Gate) RequestPhase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.ignored(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		match, ok := g.index.Lookup(r.URL.EscapedPath(), r.Method)
		if !ok {
			g.metrics.ObserveUnmatched(r.Method)
			g.log.Debug("validation: no schema route", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		rc := &RequestContext{ID: requestID(r), Match: match}
		ctx := withRequestContext(r.Context(), rc)
		ctx = logging.WithRequestID(ctx, rc.ID)
		r = r.WithContext(ctx)

		if g.cfg.ValidateRequest && match.Entry.Request != nil {
			start := time.Now()
			d := g.CheckRequest(r, match)
			g.observe(r, PhaseRequest, d, time.Since(start))
			if !d.Pass {
				writeError(w, d.Status, contentTypeJSON, *d.Payload)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ResponsePhase buffers the response of next and replaces it with an error
// when it violates the schema. It acts only on requests the request phase
// has matched, so it must be mounted inside RequestPhase.
func (g *Gate) ResponsePhase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := RequestContextFrom(r.Context())
		if !g.cfg.ValidateResponse || rc == nil {
			next.ServeHTTP(w, r)
			return
		}

		bw := acquireWriter()
		defer releaseWriter(bw)
		next.ServeHTTP(bw, r)

		start := time.Now()
		d := g.CheckResponse(r, rc.Match, bw.status, bw.header, bw.body.Bytes())
		g.observe(r, PhaseResponse, d, time.Since(start))
		if !d.Pass {
			writeError(w, d.Status, errorContentType(g.cfg, bw.header.Get("Content-Type")), *d.Payload)
			return
		}
		bw.replay(w)
	})
}

func (g *Gate) observe(r *http.Request, phase Phase, d Decision, elapsed time.Duration) {
	result := ResultPass
	if !d.Pass {
		result = ResultFail
	}
	g.metrics.ObserveValidation(string(phase), result, elapsed)

	if d.Pass {
		return
	}
	log := logging.FromContext(r.Context(), g.log)
	route := ""
	if rc := RequestContextFrom(r.Context()); rc != nil {
		route = rc.Match.Entry.String()
	}
	log.Warn("validation: "+string(phase)+" rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"route", route,
		"violations", len(d.Outcome.Violations))
	for _, v := range d.Outcome.Violations {
		log.Debug("validation: violation", "phase", string(phase), "field", v.Path, "message", v.Message)
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
