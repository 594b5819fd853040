// Package props reads typed values out of a DAV:prop element delivered by
// the multistatus traversal. The Context passed in must have the CalDAV,
// CardDAV, CalendarServer and Apple iCal namespaces registered.
package props

import (
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"github.com/cyp0633/davdiscover/internal/protocol"
	"github.com/cyp0633/davdiscover/internal/xml"
)

// Kind classifies the resource from its DAV:resourcetype
func Kind(ctx *xml.Context, prop *etree.Element) protocol.Kind {
	rt := ctx.FindFirst(prop, "D:resourcetype")
	if rt == nil {
		return protocol.KindResource
	}

	switch {
	case ctx.Exists(rt, "CR:addressbook"):
		return protocol.KindAddressbook
	case ctx.Exists(rt, "C:calendar"):
		return protocol.KindCalendar
	case ctx.Exists(rt, "D:collection") && ctx.Exists(rt, "CS:subscribed") && ctx.Exists(prop, "CS:source/D:href"):
		// "On the web" calendars
		return protocol.KindSubscribedICalendar
	case ctx.Exists(rt, "D:principal"):
		return protocol.KindPrincipal
	case ctx.Exists(rt, "D:collection"):
		return protocol.KindCollection
	}
	return protocol.KindResource
}

var componentSupports = map[string]protocol.Supports{
	"VEVENT":    protocol.SupportsEvents,
	"VJOURNAL":  protocol.SupportsMemos,
	"VTODO":     protocol.SupportsTasks,
	"VFREEBUSY": protocol.SupportsFreeBusy,
}

// Supports returns the capabilities of a resource of the given kind. A
// calendar that does not list any C:comp supports every component type
// (RFC 4791 5.2.3).
func Supports(ctx *xml.Context, prop *etree.Element, kind protocol.Kind) protocol.Supports {
	supports := protocol.SupportsNone

	switch kind {
	case protocol.KindAddressbook:
		if ctx.Exists(prop, "D:resourcetype/CR:addressbook") {
			supports |= protocol.SupportsContacts
		}
	case protocol.KindCalendar:
		comps := ctx.Find(prop, "C:supported-calendar-component-set/C:comp")
		for _, comp := range comps {
			supports |= componentSupports[strings.ToUpper(comp.SelectAttrValue("name", ""))]
		}
		if len(comps) == 0 {
			supports |= protocol.SupportsCalendarComponents
		}
	}

	return supports
}

// Dequote strips one pair of surrounding double quotes
func Dequote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// NonEmpty returns the de-quoted text of the first property in names that
// has a non-empty value.
func NonEmpty(ctx *xml.Context, prop *etree.Element, names ...xml.PropName) mo.Option[string] {
	for _, name := range names {
		prefix := xml.PrefixFor(name.Space)
		if prefix == "" {
			continue
		}
		if text := ctx.Text(prop, prefix+":"+name.Local); text != "" {
			return mo.Some(Dequote(text))
		}
	}
	return mo.None[string]()
}

// ContentLength reads DAV:getcontentlength, 0 when absent or malformed
func ContentLength(ctx *xml.Context, prop *etree.Element) int64 {
	value, ok := NonEmpty(ctx, prop, xml.PropGetContentLength).Get()
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Uint reads the leading decimal digits of a property value
func Uint(ctx *xml.Context, prop *etree.Element, name xml.PropName) mo.Option[uint32] {
	value, ok := NonEmpty(ctx, prop, name).Get()
	if !ok {
		return mo.None[uint32]()
	}
	digits := strings.TrimLeft(value, " \t+")
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return mo.None[uint32]()
	}
	n, err := strconv.ParseUint(digits[:end], 10, 32)
	if err != nil {
		return mo.None[uint32]()
	}
	return mo.Some(uint32(n))
}

// CreationDate reads DAV:creationdate, an RFC 3339 timestamp
func CreationDate(ctx *xml.Context, prop *etree.Element) mo.Option[time.Time] {
	value, ok := NonEmpty(ctx, prop, xml.PropCreationDate).Get()
	if !ok {
		return mo.None[time.Time]()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return mo.None[time.Time]()
	}
	return mo.Some(t)
}

// LastModified reads DAV:getlastmodified, an HTTP or RFC 2822 date
func LastModified(ctx *xml.Context, prop *etree.Element) mo.Option[time.Time] {
	value, ok := NonEmpty(ctx, prop, xml.PropGetLastModified).Get()
	if !ok {
		return mo.None[time.Time]()
	}
	if t, err := http.ParseTime(value); err == nil {
		return mo.Some(t)
	}
	if t, err := mail.ParseDate(value); err == nil {
		return mo.Some(t)
	}
	return mo.None[time.Time]()
}

// Hrefs returns the DAV:href values found under path, made absolute
// against the effective request URI of ps.
func Hrefs(ps *xml.Propstat, path string) []string {
	if ps == nil || ps.Prop == nil {
		return nil
	}
	texts := ps.Ctx.Texts(ps.Prop, path)
	hrefs := make([]string, 0, len(texts))
	for _, text := range texts {
		hrefs = append(hrefs, FullHref(ps, text))
	}
	return hrefs
}

// FullHref resolves href against the effective request URI of ps
func FullHref(ps *xml.Propstat, href string) string {
	return xml.ResolveHref(ps.RequestURL, href)
}

// CompleteDisplayName derives a display name from the last non-empty
// path segment of href.
func CompleteDisplayName(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.EscapedPath()
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if decoded, err := url.PathUnescape(segments[i]); err == nil {
			return decoded
		}
		return segments[i]
	}
	return ""
}

// ListResource builds a resource record from a 200 propstat. ok is false
// for unknown kinds and for subscribed calendars without a usable source.
func ListResource(ps *xml.Propstat) (res protocol.Resource, ok bool) {
	if ps == nil || ps.Prop == nil {
		return res, false
	}
	ctx, prop := ps.Ctx, ps.Prop

	kind := Kind(ctx, prop)
	if kind == protocol.KindUnknown {
		return res, false
	}

	href := ps.Href
	if kind == protocol.KindSubscribedICalendar {
		source := Dequote(ctx.Text(prop, "CS:source/D:href"))
		if source == "" {
			return res, false
		}
		href = FullHref(ps, source)
	}

	res = protocol.Resource{
		Kind:          kind,
		Supports:      Supports(ctx, prop, kind),
		Href:          href,
		ETag:          NonEmpty(ctx, prop, xml.PropGetETag, xml.PropGetCTag).OrEmpty(),
		DisplayName:   NonEmpty(ctx, prop, xml.PropDisplayName).OrEmpty(),
		Description:   NonEmpty(ctx, prop, xml.PropCalendarDescription, xml.PropAddressbookDesc).OrEmpty(),
		Color:         NonEmpty(ctx, prop, xml.PropCalendarColor).OrEmpty(),
		ContentType:   NonEmpty(ctx, prop, xml.PropGetContentType).OrEmpty(),
		ContentLength: ContentLength(ctx, prop),
		Order:         Uint(ctx, prop, xml.PropCalendarOrder),
		CreationDate:  CreationDate(ctx, prop),
		LastModified:  LastModified(ctx, prop),
	}
	return res, true
}
