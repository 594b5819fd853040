package xml

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ErrInvalidData marks responses that are not a usable DAV:multistatus
var ErrInvalidData = errors.New("invalid multistatus data")

// Message is the part of the HTTP exchange the traversal validates against
type Message struct {
	StatusCode  int
	ContentType string
	// RequestURL is the effective request URI, after redirects
	RequestURL *url.URL
}

// Propstat is one DAV:propstat of a multistatus response. Prop is nil for a
// response that carries only a DAV:status.
type Propstat struct {
	Ctx        *Context
	Prop       *etree.Element
	Href       string
	Status     int
	RequestURL *url.URL
}

// Visitor receives a multistatus response. Begin is called once before any
// propstat, so additional namespaces can be registered; returning false from
// either method stops the traversal without an error.
type Visitor interface {
	Begin(ctx *Context) bool
	Visit(ps *Propstat) bool
}

// VisitorFuncs adapts a pair of functions to Visitor. A nil BeginFunc
// registers the discovery namespaces and continues.
type VisitorFuncs struct {
	BeginFunc func(ctx *Context) bool
	VisitFunc func(ps *Propstat) bool
}

func (f VisitorFuncs) Begin(ctx *Context) bool {
	if f.BeginFunc == nil {
		RegisterDiscoveryNamespaces(ctx)
		return true
	}
	return f.BeginFunc(ctx)
}

func (f VisitorFuncs) Visit(ps *Propstat) bool {
	if f.VisitFunc == nil {
		return true
	}
	return f.VisitFunc(ps)
}

// Traverse parses a DAV:multistatus body and hands every propstat to v.
// When msg is given, the status must be 207 and the content type XML.
// Cancellation of ctx is checked between responses.
func Traverse(ctx context.Context, data []byte, msg *Message, v Visitor) error {
	var requestURL *url.URL
	if msg != nil {
		if msg.StatusCode != http.StatusMultiStatus {
			return fmt.Errorf("%w: expected multistatus response, but %d returned (%s)",
				ErrInvalidData, msg.StatusCode, http.StatusText(msg.StatusCode))
		}
		if err := checkContentType(msg.ContentType); err != nil {
			return err
		}
		requestURL = msg.RequestURL
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("%w: failed to parse XML data: %v", ErrInvalidData, err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: XML data does not have root node", ErrInvalidData)
	}

	xctx := NewContext(doc)
	if !xctx.Is(root, PrefixDAV+":"+TagMultistatus) {
		return fmt.Errorf("%w: XML data doesn't have required structure (%s%s)", ErrInvalidData, DAV, TagMultistatus)
	}

	if !v.Begin(xctx) {
		return nil
	}

	// a multistatus without any response is valid
	for _, resp := range xctx.Find(root, "D:response") {
		if err := ctx.Err(); err != nil {
			return err
		}

		hrefText := xctx.Text(resp, "D:href")
		if hrefText == "" {
			continue
		}
		href := ResolveHref(requestURL, hrefText)

		propstats := xctx.Find(resp, "D:propstat")
		if len(propstats) == 0 {
			if xctx.Exists(resp, "D:status") {
				ps := &Propstat{
					Ctx:        xctx,
					Href:       href,
					Status:     ParseStatusLine(xctx.Text(resp, "D:status")),
					RequestURL: requestURL,
				}
				if !v.Visit(ps) {
					return nil
				}
			}
			continue
		}

		for _, propstat := range propstats {
			prop := xctx.FindFirst(propstat, "D:prop")
			if prop == nil || len(prop.ChildElements()) == 0 {
				continue
			}
			ps := &Propstat{
				Ctx:        xctx,
				Prop:       prop,
				Href:       href,
				Status:     ParseStatusLine(xctx.Text(propstat, "D:status")),
				RequestURL: requestURL,
			}
			if !v.Visit(ps) {
				return nil
			}
		}
	}

	return nil
}

func checkContentType(contentType string) error {
	if contentType == "" {
		return fmt.Errorf("%w: expected application/xml response, but none returned", ErrInvalidData)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: expected application/xml response, but %s returned", ErrInvalidData, contentType)
	}
	if mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml") {
		return nil
	}
	return fmt.Errorf("%w: expected application/xml response, but %s returned", ErrInvalidData, mediaType)
}

// ParseStatusLine extracts the code from "HTTP/1.1 200 OK". It returns 0
// when the line cannot be parsed.
func ParseStatusLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 999 {
		return 0
	}
	return code
}

// ResolveHref turns a possibly relative href into an absolute URI under
// base, without user info. The href is returned unchanged if it cannot be
// parsed or base is nil.
func ResolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base != nil && !ref.IsAbs() {
		ref = base.ResolveReference(ref)
	}
	ref.User = nil
	return ref.String()
}
