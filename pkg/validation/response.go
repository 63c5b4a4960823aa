package validation

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/getmockd/schemagate/pkg/schema"
)

// bufferedWriter holds a handler's response until it has been validated.
// Nothing reaches the underlying connection while it is in use.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

var writerPool = sync.Pool{
	New: func() any { return &bufferedWriter{} },
}

func acquireWriter() *bufferedWriter {
	bw := writerPool.Get().(*bufferedWriter)
	bw.header = make(http.Header)
	bw.status = http.StatusOK
	bw.wroteHeader = false
	bw.body.Reset()
	return bw
}

func releaseWriter(bw *bufferedWriter) {
	// Oversized buffers are dropped instead of pinned in the pool.
	if bw.body.Cap() > 1<<20 {
		return
	}
	bw.header = nil
	writerPool.Put(bw)
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.header
}

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.wroteHeader {
		return
	}
	bw.status = code
	bw.wroteHeader = true
}

func (bw *bufferedWriter) Write(p []byte) (int, error) {
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
	return bw.body.Write(p)
}

// Flush is a no-op; the response is released only after validation.
func (bw *bufferedWriter) Flush() {}

// replay copies the buffered response to w unchanged.
func (bw *bufferedWriter) replay(w http.ResponseWriter) {
	dst := w.Header()
	for k, vs := range bw.header {
		dst[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(bw.status)
	if bw.body.Len() > 0 {
		_, _ = w.Write(bw.body.Bytes())
	}
}

var (
	errInvalidJSONResponse = errors.New("response body is not valid JSON")
	errInvalidEncoding     = errors.New("response body does not match its Content-Encoding")
)

// CheckResponse validates a buffered response against the response shape of
// match for status. A status with no declared response (and no range or
// default entry), or a response without content schema, passes unchecked.
func (g *Gate) CheckResponse(r *http.Request, match *schema.Match, status int, header http.Header, body []byte) Decision {
	if !g.cfg.ValidateResponse || match == nil || match.Entry == nil {
		return passDecision()
	}
	resp := match.Entry.Response(status)
	if resp == nil {
		return passDecision()
	}
	ct := header.Get("Content-Type")
	shape := resp.ShapeFor(ct)
	if shape == nil {
		return passDecision()
	}

	encoding := header.Get("Content-Encoding")
	plain, ok, err := decodeContent(body, encoding, g.cfg.MaxBodyBytes)
	if !ok {
		g.log.Debug("validation: response encoding not supported, skipping",
			"method", r.Method, "path", r.URL.Path, "encoding", encoding)
		return passDecision()
	}

	var outcome Outcome
	var value any
	if err == nil {
		value, err = decodeResponseBody(plain, ct)
	}
	if err != nil {
		outcome = invalidOutcome(Violation{Message: err.Error()})
	} else {
		outcome = g.validator.Validate(value, shape)
	}
	if outcome.Valid {
		return passDecision()
	}
	p := BuildPayload(PhaseResponse, outcome, g.cfg, r.Method, r.URL.Path)
	return Decision{Status: http.StatusInternalServerError, Payload: &p, Outcome: outcome}
}

// decodeContent undoes the Content-Encoding of a buffered body for
// validation. The client still receives the original bytes. ok is false for
// encodings that cannot be decoded here.
func decodeContent(body []byte, encoding string, limit int64) (plain []byte, ok bool, err error) {
	var r io.ReadCloser
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, true, nil
	case "gzip", "x-gzip":
		if r, err = gzip.NewReader(bytes.NewReader(body)); err != nil {
			return nil, true, errInvalidEncoding
		}
	case "deflate":
		// Some servers send raw deflate instead of the zlib wrapping.
		if r, err = zlib.NewReader(bytes.NewReader(body)); err != nil {
			r = flate.NewReader(bytes.NewReader(body))
		}
	default:
		return nil, false, nil
	}
	defer func() { _ = r.Close() }()

	plain, err = io.ReadAll(io.LimitReader(r, readLimit(limit)))
	if err != nil {
		return nil, true, errInvalidEncoding
	}
	if int64(len(plain)) > limit {
		return nil, true, fmt.Errorf("decoded response body exceeds %d bytes", limit)
	}
	return plain, true, nil
}

// decodeResponseBody turns the raw body into the value the engine checks.
// JSON media types must decode; a body with no Content-Type is tried as JSON
// and otherwise taken as text; every other media type is a string.
func decodeResponseBody(body []byte, contentType string) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	mt := ""
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = strings.ToLower(parsed)
		}
	}
	switch {
	case mt != "" && schema.IsJSONMediaType(mt):
		v, err := decodeJSON(body)
		if err != nil {
			return nil, errInvalidJSONResponse
		}
		return v, nil
	case contentType == "":
		if v, err := decodeJSON(body); err == nil {
			return v, nil
		}
	}
	return string(body), nil
}
