package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cyp0633/davdiscover/internal/protocol"
	"github.com/cyp0633/davdiscover/internal/xml"
)

// HttpClientWrapper wraps http.Client with the WebDAV requests discovery issues
type HttpClientWrapper interface {
	DoOPTIONS(ctx context.Context, url string) (capabilities, allows protocol.HeaderSet, err error)
	DoPROPFIND(ctx context.Context, url string, depth Depth, body *xml.PropfindRequest, v xml.Visitor) error
	List(ctx context.Context, url string, depth Depth, flags ListFlags) ([]protocol.Resource, error)
}

// maxRedirects bounds how many Location hops one request may follow
const maxRedirects = 10

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger
}

// resolveURL resolves a URL string against the base URL. User info is
// never sent in the request line.
func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	resolved := c.baseURL.ResolveReference(ref)
	resolved.User = nil
	return resolved, nil
}

// NewHttpClientWrapper creates a new client wrapper. Redirects are followed
// by the wrapper itself so that PROPFIND keeps its method and body.
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (HttpClientWrapper, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", baseURL.Scheme)
	}

	own := *client
	own.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &httpClientWrapper{client: &own, baseURL: baseURL, logger: logger}, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// do sends the request and follows redirects. It returns the final
// response together with the URL that produced it.
func (c *httpClientWrapper) do(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*http.Response, *url.URL, error) {
	current := target
	for hops := 0; ; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		reqCtx := ctx
		if !keepsCredentials(target, current) {
			reqCtx = withoutCredentials(ctx)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, current.String(), reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s request: %w", method, err)
		}
		for key, values := range header {
			req.Header[key] = values
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debug("request failed", "method", method, "url", current.String(), "error", err)
			return nil, nil, wrapTransportError(err)
		}

		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			return resp, current, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if hops >= maxRedirects {
			return nil, nil, fmt.Errorf("%s %s: stopped after %d redirects", method, target, maxRedirects)
		}
		next, err := current.Parse(location)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redirect location %q: %w", location, err)
		}
		next.User = nil
		c.logger.Debug("following redirect",
			"status", resp.StatusCode,
			"from", current.String(),
			"to", next.String())
		current = next
	}
}

// keepsCredentials reports whether a redirect hop may carry the credentials
// of the request that started at initial: same host and port, no downgrade
// from https.
func keepsCredentials(initial, hop *url.URL) bool {
	if !strings.EqualFold(initial.Host, hop.Host) {
		return false
	}
	return initial.Scheme != "https" || hop.Scheme == "https"
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
