package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// BasicAuthTransport implements http.RoundTripper and adds Basic Auth
// authentication to outgoing requests when a username is set. Requests and
// responses are dumped when the logger has debug enabled.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport creates a new BasicAuthTransport with the given
// credentials and optional underlying transport. If transport is nil,
// http.DefaultTransport will be used.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

type credentialsKey struct{}

// withoutCredentials marks requests that must leave without Basic Auth,
// such as a redirect hop to another origin.
func withoutCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialsKey{}, false)
}

func credentialsAllowed(ctx context.Context) bool {
	allowed, ok := ctx.Value(credentialsKey{}).(bool)
	return !ok || allowed
}

// RoundTrip implements the http.RoundTripper interface. It adds Basic Auth
// credentials to a clone of the request and delegates to the underlying
// transport.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}

	debug := t.Logger != nil && t.Logger.Enabled(req.Context(), slog.LevelDebug)
	if debug {
		reqBody := ""
		if req.Body != nil && req.Body != http.NoBody {
			bodyBytes, err := io.ReadAll(req.Body)
			if err == nil {
				reqBody = string(bodyBytes)
				req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes)) // Reset the body
			}
		}

		t.Logger.Debug("outgoing request",
			"method", req.Method,
			"url", req.URL.String(),
			"depth", req.Header.Get("Depth"),
			"body", reqBody)
	}

	if t.Username != "" && credentialsAllowed(req.Context()) {
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.Username, t.Password)
	}
	resp, err := t.Transport.RoundTrip(req)

	if debug && err == nil && resp != nil {
		respBody := ""
		if resp.Body != nil {
			bodyBytes, err := io.ReadAll(resp.Body)
			if err == nil {
				respBody = string(bodyBytes)
				resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes)) // Reset the body
			}
		}

		t.Logger.Debug("incoming response",
			"status", resp.Status,
			"content_type", resp.Header.Get("Content-Type"),
			"body", respBody)
	}

	return resp, err
}
