package protocol

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// Kind classifies a resource by its DAV:resourcetype
type Kind int

const (
	KindUnknown Kind = iota
	KindAddressbook
	KindCalendar
	KindPrincipal
	KindCollection
	KindResource
	KindSubscribedICalendar
	KindNotes
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindAddressbook:         "addressbook",
	KindCalendar:            "calendar",
	KindPrincipal:           "principal",
	KindCollection:          "collection",
	KindResource:            "resource",
	KindSubscribedICalendar: "subscribed-icalendar",
	KindNotes:               "notes",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Supports is a bit-set of capabilities a discovered collection offers.
// SupportsNone used as a filter means "everything".
type Supports uint32

const SupportsNone Supports = 0

const (
	SupportsContacts Supports = 1 << iota
	SupportsEvents
	SupportsMemos
	SupportsTasks
	SupportsFreeBusy
	SupportsCalendarAutoSchedule
	SupportsSubscribedICalendar
	SupportsWebDAVNotes
)

// SupportsCustom are the bits that are never reported by a PROPFIND
// and therefore do not narrow the set of collections kept by a filter.
const SupportsCustom = SupportsCalendarAutoSchedule | SupportsSubscribedICalendar

// SupportsCalendarComponents is what a calendar without
// supported-calendar-component-set is assumed to hold (RFC 4791 5.2.3).
const SupportsCalendarComponents = SupportsEvents | SupportsMemos | SupportsTasks | SupportsFreeBusy

// supportsNames is ordered, String relies on it.
var supportsNames = []struct {
	bit  Supports
	name string
}{
	{SupportsContacts, "contacts"},
	{SupportsEvents, "events"},
	{SupportsMemos, "memos"},
	{SupportsTasks, "tasks"},
	{SupportsFreeBusy, "freebusy"},
	{SupportsCalendarAutoSchedule, "auto-schedule"},
	{SupportsSubscribedICalendar, "subscribed"},
	{SupportsWebDAVNotes, "notes"},
}

// Has reports whether all bits of other are set in s.
func (s Supports) Has(other Supports) bool {
	return s&other == other
}

// Any reports whether s and other share at least one bit.
func (s Supports) Any(other Supports) bool {
	return s&other != 0
}

// Names returns the capability names of the set bits.
func (s Supports) Names() []string {
	names := make([]string, 0, len(supportsNames))
	for _, n := range supportsNames {
		if s&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (s Supports) String() string {
	if s == SupportsNone {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// SupportsByName looks up a single capability name, case-insensitively.
func SupportsByName(name string) (Supports, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range supportsNames {
		if n.name == name {
			return n.bit, true
		}
	}
	return SupportsNone, false
}

// Resource is one collection (or plain resource) read from a multistatus
// response. Href is absolute and identifies the resource.
type Resource struct {
	Kind          Kind
	Supports      Supports
	Href          string
	ETag          string
	DisplayName   string
	Description   string
	Color         string
	ContentType   string
	ContentLength int64
	Order         mo.Option[uint32]
	CreationDate  mo.Option[time.Time]
	LastModified  mo.Option[time.Time]
}

// DAV capability tokens advertised in the DAV response header
const (
	CapabilityClass1               = "1"
	CapabilityClass2               = "2"
	CapabilityClass3               = "3"
	CapabilityAccessControl        = "access-control"
	CapabilityCalendarAccess       = "calendar-access"
	CapabilityCalendarAutoSchedule = "calendar-auto-schedule"
	CapabilityAddressbook          = "addressbook"
)

// HeaderSet is a case-insensitive set of tokens from a comma separated header
type HeaderSet map[string]struct{}

func (h HeaderSet) Has(token string) bool {
	if h == nil {
		return false
	}
	_, ok := h[strings.ToLower(token)]
	return ok
}

func (h HeaderSet) Add(token string) {
	h[strings.ToLower(token)] = struct{}{}
}
