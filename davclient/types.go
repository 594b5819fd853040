package davclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cyp0633/davdiscover/internal/httpclient"
	"github.com/cyp0633/davdiscover/internal/protocol"
)

// Resource is one discovered collection
type Resource = protocol.Resource

// Kind classifies a discovered collection
type Kind = protocol.Kind

const (
	KindAddressbook         = protocol.KindAddressbook
	KindCalendar            = protocol.KindCalendar
	KindSubscribedICalendar = protocol.KindSubscribedICalendar
	KindNotes               = protocol.KindNotes
)

// Supports is the capability bit-set of a collection, also used as the
// discovery filter. SupportsNone as a filter finds everything.
type Supports = protocol.Supports

const (
	SupportsNone                 = protocol.SupportsNone
	SupportsContacts             = protocol.SupportsContacts
	SupportsEvents               = protocol.SupportsEvents
	SupportsMemos                = protocol.SupportsMemos
	SupportsTasks                = protocol.SupportsTasks
	SupportsFreeBusy             = protocol.SupportsFreeBusy
	SupportsCalendarAutoSchedule = protocol.SupportsCalendarAutoSchedule
	SupportsSubscribedICalendar  = protocol.SupportsSubscribedICalendar
	SupportsWebDAVNotes          = protocol.SupportsWebDAVNotes
)

// Discovery is the result of a successful FindSources call. Sources holds
// calendars first and address books after them.
type Discovery struct {
	Sources               []Resource
	CalendarUserAddresses []string
}

// Calendars returns the sources that are not address books
func (d *Discovery) Calendars() []Resource {
	var out []Resource
	for _, s := range d.Sources {
		if s.Kind != KindAddressbook {
			out = append(out, s)
		}
	}
	return out
}

// Addressbooks returns the address book sources
func (d *Discovery) Addressbooks() []Resource {
	var out []Resource
	for _, s := range d.Sources {
		if s.Kind == KindAddressbook {
			out = append(out, s)
		}
	}
	return out
}

// ParseSupports turns capability names into a filter. Each entry may hold
// several comma separated names; "none" and empty entries are ignored.
func ParseSupports(names []string) (Supports, error) {
	supports := SupportsNone
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" || strings.EqualFold(name, "none") {
				continue
			}
			bit, ok := protocol.SupportsByName(name)
			if !ok {
				return SupportsNone, fmt.Errorf("unknown capability %q", name)
			}
			supports |= bit
		}
	}
	return supports, nil
}

// ErrInvalidURL is returned for a location that is not an http(s) URL
var ErrInvalidURL = errors.New("invalid URL")

type (
	StatusError      = httpclient.StatusError
	CertificateError = httpclient.CertificateError
	CertificateFlags = httpclient.CertificateFlags
)

const (
	CertificateUnknownCA    = httpclient.CertificateUnknownCA
	CertificateBadIdentity  = httpclient.CertificateBadIdentity
	CertificateNotActivated = httpclient.CertificateNotActivated
	CertificateExpired      = httpclient.CertificateExpired
	CertificateGenericError = httpclient.CertificateGenericError
)

// IsUnauthorized reports whether discovery failed on an HTTP 401
func IsUnauthorized(err error) bool {
	return httpclient.IsUnauthorized(err)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// Certificate returns the PEM encoded server certificate and the trust
// failures when err is a TLS verification error.
func Certificate(err error) (pem []byte, flags CertificateFlags, ok bool) {
	var certErr *CertificateError
	if !errors.As(err, &certErr) {
		return nil, 0, false
	}
	return certErr.PEM, certErr.Flags, true
}
