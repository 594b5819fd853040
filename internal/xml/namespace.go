package xml

import "github.com/beevik/etree"

// Namespace definitions for WebDAV and its calendar and contacts extensions
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
	// CardDAV is the CardDAV namespace
	CardDAV = "urn:ietf:params:xml:ns:carddav"
	// CalendarServer is the Calendar Server namespace (used by some implementations)
	CalendarServer = "http://calendarserver.org/ns/"
	// AppleICal carries calendar-color and calendar-order
	AppleICal = "http://apple.com/ns/ical/"
)

// Prefixes used when this package writes XML and when callers register
// namespaces on an XPath Context. Responses may use any prefix.
const (
	PrefixDAV            = "D"
	PrefixCalDAV         = "C"
	PrefixCardDAV        = "CR"
	PrefixCalendarServer = "CS"
	PrefixAppleICal      = "IC"
)

// prefixFor maps a namespace URI to the prefix used for it in requests
var prefixFor = map[string]string{
	DAV:            PrefixDAV,
	CalDAV:         PrefixCalDAV,
	CardDAV:        PrefixCardDAV,
	CalendarServer: PrefixCalendarServer,
	AppleICal:      PrefixAppleICal,
}

// PrefixFor returns the request prefix for a namespace URI, or "" if unknown
func PrefixFor(namespace string) string {
	return prefixFor[namespace]
}

// AddSelectedNamespaces declares the given namespaces on the document root
func AddSelectedNamespaces(doc *etree.Document, namespaces ...string) {
	root := doc.Root()
	if root == nil {
		return
	}
	for _, ns := range namespaces {
		prefix, ok := prefixFor[ns]
		if !ok {
			continue
		}
		if root.SelectAttr("xmlns:"+prefix) != nil {
			continue
		}
		root.CreateAttr("xmlns:"+prefix, ns)
	}
}

// RegisterDiscoveryNamespaces binds every namespace discovery reads from
func RegisterDiscoveryNamespaces(ctx *Context) {
	ctx.RegisterNamespace(PrefixCalDAV, CalDAV)
	ctx.RegisterNamespace(PrefixCardDAV, CardDAV)
	ctx.RegisterNamespace(PrefixCalendarServer, CalendarServer)
	ctx.RegisterNamespace(PrefixAppleICal, AppleICal)
}
