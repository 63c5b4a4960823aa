package validation

import (
	"fmt"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
)

// Body size limits for validation.
const (
	DefaultMaxBodyBytes int64 = 10 << 20
	MaxBodyBytesLimit   int64 = 1 << 30
)

// Config is the per-mount validation configuration. It is copied into the Gate
// at construction and never mutated afterwards.
//
// The zero value validates nothing: both phases are off until
// ValidateRequest or ValidateResponse is set. Start from DefaultConfig to
// validate both directions.
type Config struct {
	// ValidateRequest enables the request phase.
	ValidateRequest bool `json:"validateRequest" yaml:"validateRequest"`

	// ValidateResponse enables the response phase. Responses of matched routes
	// are fully buffered while it is on.
	ValidateResponse bool `json:"validateResponse" yaml:"validateResponse"`

	// ReturnRequestErrors includes the violations in request error bodies.
	ReturnRequestErrors bool `json:"returnRequestErrors" yaml:"returnRequestErrors"`

	// ReturnResponseErrors includes the violations in response error bodies.
	ReturnResponseErrors bool `json:"returnResponseErrors" yaml:"returnResponseErrors"`

	// PreserveResponseContentType keeps the handler's Content-Type header on
	// response failures instead of forcing JSON. The payload is JSON either way.
	PreserveResponseContentType bool `json:"preserveResponseContentType" yaml:"preserveResponseContentType"`

	// RequestErrorStatus is the status for rejected requests (default 400).
	RequestErrorStatus int `json:"requestErrorStatus,omitempty" yaml:"requestErrorStatus,omitempty"`

	// CollectAllErrors keeps validating the remaining request locations after
	// the first one fails.
	CollectAllErrors bool `json:"collectAllErrors" yaml:"collectAllErrors"`

	// IgnorePaths lists doublestar patterns whose requests bypass both phases.
	IgnorePaths []string `json:"ignorePaths,omitempty" yaml:"ignorePaths,omitempty"`

	// MaxBodyBytes caps the request body read for validation and the decoded
	// size of compressed responses (default 10 MiB, at most MaxBodyBytesLimit).
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty"`
}

// DefaultConfig validates both directions and hides violation details.
func DefaultConfig() Config {
	return Config{
		ValidateRequest:    true,
		ValidateResponse:   true,
		RequestErrorStatus: http.StatusBadRequest,
		MaxBodyBytes:       DefaultMaxBodyBytes,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.RequestErrorStatus != 0 && (c.RequestErrorStatus < 400 || c.RequestErrorStatus > 599) {
		return fmt.Errorf("requestErrorStatus must be a 4xx or 5xx code, got %d", c.RequestErrorStatus)
	}
	if c.MaxBodyBytes < 0 || c.MaxBodyBytes > MaxBodyBytesLimit {
		return fmt.Errorf("maxBodyBytes must be between 0 and %d, got %d", MaxBodyBytesLimit, c.MaxBodyBytes)
	}
	for _, p := range c.IgnorePaths {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RequestErrorStatus == 0 {
		c.RequestErrorStatus = http.StatusBadRequest
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.IgnorePaths = append([]string(nil), c.IgnorePaths...)
	return c
}

// ignored reports whether path matches one of the ignore patterns.
func (c Config) ignored(path string) bool {
	for _, p := range c.IgnorePaths {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
