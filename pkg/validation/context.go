package validation

import (
	"context"

	"github.com/getmockd/schemagate/pkg/schema"
)

// RequestContext is the per-request state the request phase hands to the
// response phase. It lives only in the request's context.Context.
type RequestContext struct {
	// ID identifies the request in logs; taken from X-Request-ID or generated.
	ID string

	// Match is the resolved route and its path parameters.
	Match *schema.Match
}

type requestContextKey struct{}

func withRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext recorded by the request
// phase, or nil when the request did not match a schema route.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
