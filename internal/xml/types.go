package xml

// Common XML tag names used in multistatus responses
const (
	TagPropfind    = "propfind"
	TagProp        = "prop"
	TagMultistatus = "multistatus"
	TagResponse    = "response"
	TagHref        = "href"
	TagPropstat    = "propstat"
	TagStatus      = "status"
)

// PropName names a property by namespace URI and local name
type PropName struct {
	Space string
	Local string
}

// Properties requested during discovery
var (
	PropResourceType          = PropName{DAV, "resourcetype"}
	PropCurrentUserPrincipal  = PropName{DAV, "current-user-principal"}
	PropPrincipalURL          = PropName{DAV, "principal-URL"}
	PropDisplayName           = PropName{DAV, "displayname"}
	PropGetETag               = PropName{DAV, "getetag"}
	PropGetContentType        = PropName{DAV, "getcontenttype"}
	PropGetContentLength      = PropName{DAV, "getcontentlength"}
	PropCreationDate          = PropName{DAV, "creationdate"}
	PropGetLastModified       = PropName{DAV, "getlastmodified"}
	PropCalendarHomeSet       = PropName{CalDAV, "calendar-home-set"}
	PropCalendarUserAddresses = PropName{CalDAV, "calendar-user-address-set"}
	PropSupportedComponents   = PropName{CalDAV, "supported-calendar-component-set"}
	PropCalendarDescription   = PropName{CalDAV, "calendar-description"}
	PropAddressbookHomeSet    = PropName{CardDAV, "addressbook-home-set"}
	PropAddressbookDesc       = PropName{CardDAV, "addressbook-description"}
	PropGetCTag               = PropName{CalendarServer, "getctag"}
	PropSource                = PropName{CalendarServer, "source"}
	PropCalendarColor         = PropName{AppleICal, "calendar-color"}
	PropCalendarOrder         = PropName{AppleICal, "calendar-order"}
)
