package observability

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns an http.Client instrumented with otelhttp transport
// and, at debug level, a redacted request-body logger keyed to the request's
// trace context.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(&debugLoggingTransport{base: rt})
	return base
}

// debugLoggingTransport logs each outgoing request's redacted JSON body at
// debug level, tagged with the request's trace/span id. It is a no-op
// unless the global log level is debug, so it costs nothing in production.
type debugLoggingTransport struct {
	base http.RoundTripper
}

func (t *debugLoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel && req.Body != nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		if err == nil && json.Valid(body) {
			LoggerWithTrace(req.Context()).Debug().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				RawJSON("body", RedactJSON(body)).
				Msg("outgoing http request")
		}
	}
	return t.base.RoundTrip(req)
}

// headerTransport injects a fixed set of headers into every request that
// doesn't already carry them, then delegates to the wrapped RoundTripper.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// WithHeaders returns client with a transport that sets headers on every
// outgoing request, without overriding headers the caller already set.
func WithHeaders(client *http.Client, headers map[string]string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	rt := client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	client.Transport = &headerTransport{base: rt, headers: headers}
	return client
}
