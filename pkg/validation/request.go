package validation

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/getmockd/schemagate/pkg/schema"
)

// Data-path prefixes of request violations.
const (
	prefixPath   = ".path"
	prefixQuery  = ".query"
	prefixHeader = ".headers"
	prefixBody   = ".body"
)

// Decision is the verdict of one phase. When Pass is false the phase has
// produced the response to send instead of the handler's.
type Decision struct {
	Pass    bool
	Status  int
	Payload *ErrorPayload
	Outcome Outcome
}

func passDecision() Decision {
	return Decision{Pass: true, Outcome: validOutcome()}
}

// CheckRequest validates r against the request shape of match. Path, query
// and header parameters are checked before the body; unless CollectAllErrors
// is set the first failing location ends the check. The body is read at most
// once and restored on r, so the handler sees it unchanged.
func (g *Gate) CheckRequest(r *http.Request, match *schema.Match) Decision {
	if !g.cfg.ValidateRequest || match == nil || match.Entry == nil || match.Entry.Request == nil {
		return passDecision()
	}
	req := match.Entry.Request

	outcome := validOutcome()
	for _, set := range req.Params {
		values := g.paramValues(r, match, set)
		outcome.merge(locationPrefix(set.Location), g.validator.Validate(values, set.Shape))
		if !outcome.Valid && !g.cfg.CollectAllErrors {
			return g.rejectRequest(r, outcome)
		}
	}

	if req.HasBody() {
		outcome.merge(prefixBody, g.checkRequestBody(r, req))
	}
	if !outcome.Valid {
		return g.rejectRequest(r, outcome)
	}
	return passDecision()
}

func (g *Gate) rejectRequest(r *http.Request, outcome Outcome) Decision {
	p := BuildPayload(PhaseRequest, outcome, g.cfg, r.Method, r.URL.Path)
	return Decision{Status: g.cfg.RequestErrorStatus, Payload: &p, Outcome: outcome}
}

func locationPrefix(in string) string {
	switch in {
	case schema.LocationPath:
		return prefixPath
	case schema.LocationQuery:
		return prefixQuery
	default:
		return prefixHeader
	}
}

func (g *Gate) checkRequestBody(r *http.Request, req *schema.RequestShape) Outcome {
	body, err := g.readBody(r)
	if err != nil {
		return invalidOutcome(Violation{Message: err.Error()})
	}
	if len(body) == 0 {
		if req.BodyRequired {
			return invalidOutcome(Violation{Message: "request body is required"})
		}
		return validOutcome()
	}

	ct := r.Header.Get("Content-Type")
	shape := req.BodyFor(ct)
	if shape == nil {
		return validOutcome()
	}
	value, err := decodeRequestBody(body, ct, req, shape)
	if err != nil {
		return invalidOutcome(Violation{Message: err.Error()})
	}
	return g.validator.Validate(value, shape)
}

// readBody reads at most MaxBodyBytes and puts the bytes back on r.
func (g *Gate) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, readLimit(g.cfg.MaxBodyBytes)))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > g.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", g.cfg.MaxBodyBytes)
	}
	return body, nil
}

// readLimit is one byte past limit so an oversized body is detected.
func readLimit(limit int64) int64 {
	if limit >= math.MaxInt64 {
		return limit
	}
	return limit + 1
}
