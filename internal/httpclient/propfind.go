package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cyp0633/davdiscover/internal/xml"
)

// Depth is the value of the Depth request header
type Depth string

const (
	DepthThis            Depth = "0"
	DepthThisAndChildren Depth = "1"
	DepthInfinity        Depth = "infinity"
)

const xmlContentType = `application/xml; charset="utf-8"`

// DoPROPFIND performs a PROPFIND request and hands every propstat of the
// multistatus answer to v. A nil body asks for all properties.
func (w *httpClientWrapper) DoPROPFIND(ctx context.Context, urlStr string, depth Depth, body *xml.PropfindRequest, v xml.Visitor) error {
	w.logger.Debug("starting PROPFIND request",
		"url", urlStr,
		"depth", depth)

	target, err := w.resolveURL(urlStr)
	if err != nil {
		w.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return err
	}

	header := http.Header{}
	header.Set("Depth", string(depth))

	var payload []byte
	if body != nil {
		payload, err = body.Bytes()
		if err != nil {
			return fmt.Errorf("failed to build PROPFIND body: %w", err)
		}
		header.Set("Content-Type", xmlContentType)
	}

	resp, finalURL, err := w.do(ctx, "PROPFIND", target, header, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		w.logger.Debug("unexpected response status",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return newStatusError("PROPFIND", finalURL.String(), resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read PROPFIND response: %w", wrapTransportError(err))
	}

	w.logger.Debug("received multistatus response",
		"url", finalURL.String(),
		"bytes", len(data))

	msg := &xml.Message{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RequestURL:  finalURL,
	}
	if err := xml.Traverse(ctx, data, msg, v); err != nil {
		w.logger.Debug("failed to traverse multistatus response", "url", finalURL.String(), "error", err)
		return err
	}
	return nil
}
