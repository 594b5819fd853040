package httpclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/cyp0633/davdiscover/internal/protocol"
)

// DoOPTIONS performs an OPTIONS request and returns the DAV capability and
// Allow method sets. Missing headers yield empty sets.
func (w *httpClientWrapper) DoOPTIONS(ctx context.Context, urlStr string) (protocol.HeaderSet, protocol.HeaderSet, error) {
	w.logger.Debug("starting OPTIONS request", "url", urlStr)

	target, err := w.resolveURL(urlStr)
	if err != nil {
		return nil, nil, err
	}

	resp, finalURL, err := w.do(ctx, http.MethodOptions, target, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		w.logger.Debug("unexpected response status",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return nil, nil, newStatusError(http.MethodOptions, finalURL.String(), resp)
	}

	capabilities := parseHeaderSet(resp.Header.Values("DAV"))
	allows := parseHeaderSet(resp.Header.Values("Allow"))

	w.logger.Debug("OPTIONS request complete",
		"url", finalURL.String(),
		"capabilities", len(capabilities),
		"allows", len(allows))
	return capabilities, allows, nil
}

// parseHeaderSet splits comma separated header values into lowercase
// tokens. Parameters after "=" are dropped.
func parseHeaderSet(values []string) protocol.HeaderSet {
	set := protocol.HeaderSet{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			token, _, _ := strings.Cut(part, "=")
			token = strings.TrimSpace(token)
			if token != "" {
				set.Add(token)
			}
		}
	}
	return set
}
