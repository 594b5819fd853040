package davclient

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/cyp0633/davdiscover/internal/httpclient"
	"github.com/cyp0633/davdiscover/internal/protocol"
	"github.com/cyp0633/davdiscover/internal/xml"
	"github.com/cyp0633/davdiscover/internal/xml/props"
)

// maxProbes bounds the principal lookups of one discovery stage
const maxProbes = 64

const calendarComponents = SupportsEvents | SupportsMemos | SupportsTasks

// FindSources discovers the calendars and address books reachable from
// location. A zero only finds everything.
func FindSources(ctx context.Context, location, username, password string, only Supports) (*Discovery, error) {
	cfg := DefaultConfig()
	cfg.Username = username
	cfg.Password = password
	cfg.Supports = only
	return FindSourcesWithConfig(ctx, location, cfg)
}

// FindSourcesWithConfig is FindSources with injectable configuration.
//
// cfg.PathOverride may be a full http(s) URL, which replaces location, an
// absolute path, which replaces the location path, or a relative path,
// which is appended to it. User info in location is used as credentials
// when cfg has none.
func FindSourcesWithConfig(ctx context.Context, location string, cfg *Config) (*Discovery, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base, err := normalizeLocation(location, cfg.PathOverride)
	if err != nil {
		return nil, err
	}

	username, password := cfg.Username, cfg.Password
	if username == "" && base.User != nil {
		username = base.User.Username()
		password, _ = base.User.Password()
	}
	base.User = nil

	logger := cfg.logger().With("discovery", uuid.NewString())
	wrapper, err := newWrapper(cfg, base, username, password, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client wrapper: %w", err)
	}

	d := newDiscoverer(wrapper, logger, cfg.Supports)
	return d.discover(ctx, base)
}

func normalizeLocation(location, override string) (*url.URL, error) {
	lower := strings.ToLower(override)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		location, override = override, ""
	}

	if location == "" {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, location)
	}

	if override != "" {
		// Absolute path overrides whole path, while relative path is only appended
		path := override
		if !strings.HasPrefix(override, "/") {
			path = u.Path
			if !strings.HasSuffix(path, "/") {
				path += "/"
			}
			path += override
		}
		if !strings.HasSuffix(path, "/") {
			path += "/"
		}
		u.Path = path
		u.RawPath = ""
	}
	return u, nil
}

type coverMark uint8

const (
	coveredLookup coverMark = 1 << iota
	coveredAddressbook
	coveredCalendar
)

// coveredHrefs remembers what was already requested for an href
type coveredHrefs map[string]coverMark

func (c coveredHrefs) mark(href string, m coverMark) {
	if href != "" {
		c[href] |= m
	}
}

func (c coveredHrefs) has(href string, m coverMark) bool {
	return href != "" && c[href]&m == m
}

// keepError decides which of two errors is reported. The first one wins,
// except that an authentication failure replaces anything else.
func keepError(stored, candidate error) error {
	switch {
	case candidate == nil:
		return stored
	case stored == nil:
		return candidate
	case httpclient.IsUnauthorized(candidate) && !httpclient.IsUnauthorized(stored):
		return candidate
	}
	return stored
}

// wanted reports whether a filter asks for any of bits. The custom bits
// never narrow the search.
func wanted(only, bits Supports) bool {
	only &^= protocol.SupportsCustom
	return only == SupportsNone || only.Any(bits)
}

type probe struct {
	uri      string
	onlySets bool
}

type discoverer struct {
	client httpclient.HttpClientWrapper
	logger *slog.Logger

	// only is the filter of the running stage
	only    Supports
	covered coveredHrefs
	err     error

	calendars    []Resource
	addressbooks []Resource
	addresses    []string
}

func newDiscoverer(client httpclient.HttpClientWrapper, logger *slog.Logger, only Supports) *discoverer {
	return &discoverer{
		client:  client,
		logger:  logger,
		only:    only,
		covered: coveredHrefs{},
	}
}

func (d *discoverer) found() bool {
	return len(d.calendars) > 0 || len(d.addressbooks) > 0
}

func (d *discoverer) record(err error) {
	if err != nil {
		d.logger.Debug("discovery step failed", "error", err)
	}
	d.err = keepError(d.err, err)
}

type fallback struct {
	path   string
	filter Supports
	when   func() bool
}

func (d *discoverer) discover(ctx context.Context, base *url.URL) (*Discovery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	only := d.only
	d.logger.Debug("starting discovery", "url", base.String(), "only", only)

	d.run(ctx, base.String())
	stored := d.err
	fatal := httpclient.IsFatal(d.err)

	fallbacks := []fallback{
		{"/.well-known/caldav", calendarComponents, func() bool {
			return len(d.calendars) == 0 && wanted(only, calendarComponents)
		}},
		{"/.well-known/webdav/Notes/", SupportsWebDAVNotes, func() bool {
			return wanted(only, SupportsWebDAVNotes)
		}},
		{"/.well-known/carddav", SupportsContacts, func() bool {
			return len(d.addressbooks) == 0 && wanted(only, SupportsContacts)
		}},
	}

	if !strings.Contains(base.Path, "/.well-known/") {
		for _, fb := range fallbacks {
			if fatal || ctx.Err() != nil || !fb.when() {
				continue
			}

			target := *base
			target.Path, target.RawPath, target.RawQuery = fb.path, "", ""
			d.logger.Debug("trying well-known fallback", "url", target.String())

			d.only = fb.filter
			d.covered = coveredHrefs{}
			d.err = nil
			d.run(ctx, target.String())

			fatal = httpclient.IsFatal(d.err)
			// well-known URIs are commonly absent, only authentication
			// failures from them are worth reporting
			if httpclient.IsUnauthorized(d.err) {
				stored = keepError(stored, d.err)
			}
		}
	}
	d.only = only

	if !d.found() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stored != nil {
			return nil, stored
		}
		d.logger.Debug("discovery finished without sources")
		return &Discovery{Sources: []Resource{}, CalendarUserAddresses: d.addresses}, nil
	}

	if only == SupportsNone || only.Has(SupportsCalendarAutoSchedule) {
		d.checkAutoSchedule(ctx)
	}

	sortResources(d.calendars)
	sortResources(d.addressbooks)

	sources := make([]Resource, 0, len(d.calendars)+len(d.addressbooks))
	sources = append(sources, d.calendars...)
	sources = append(sources, d.addressbooks...)

	d.logger.Debug("discovery finished",
		"calendars", len(d.calendars),
		"addressbooks", len(d.addressbooks),
		"addresses", len(d.addresses))
	return &Discovery{Sources: sources, CalendarUserAddresses: d.addresses}, nil
}

// run processes one stage as a depth-first worklist of PROPFIND probes
func (d *discoverer) run(ctx context.Context, uri string) {
	pending := []probe{{uri: uri}}
	for probes := 0; len(pending) > 0; probes++ {
		if err := ctx.Err(); err != nil {
			d.record(err)
			return
		}
		if probes == maxProbes {
			d.logger.Debug("too many principal lookups, giving up", "pending", len(pending))
			return
		}

		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		found := d.probe(ctx, next)
		for i := len(found) - 1; i >= 0; i-- {
			pending = append(pending, found[i])
		}
	}
}

func (d *discoverer) probeRequest(onlySets bool) *xml.PropfindRequest {
	req := xml.NewPropfindRequest()
	if !onlySets {
		req.Add(xml.PropResourceType, xml.PropCurrentUserPrincipal, xml.PropPrincipalURL)
	}
	if wanted(d.only, calendarComponents) {
		req.Add(xml.PropCalendarHomeSet, xml.PropCalendarUserAddresses)
	}
	if wanted(d.only, SupportsContacts) {
		req.Add(xml.PropAddressbookHomeSet)
	}
	return req
}

// probe issues one Depth 0 PROPFIND and returns the principals it points to
func (d *discoverer) probe(ctx context.Context, p probe) []probe {
	if d.covered.has(p.uri, coveredLookup) {
		return nil
	}
	d.covered.mark(p.uri, coveredLookup)

	d.logger.Debug("probing", "url", p.uri, "only_sets", p.onlySets)

	var principals []probe
	visitor := xml.VisitorFuncs{
		VisitFunc: func(ps *xml.Propstat) bool {
			if ps.Status != http.StatusOK || ps.Prop == nil {
				return true
			}
			if principal := d.visit(ctx, ps); principal != "" {
				principals = append(principals, probe{uri: principal, onlySets: true})
			}
			return ctx.Err() == nil
		},
	}
	d.record(d.client.DoPROPFIND(ctx, p.uri, httpclient.DepthThis, d.probeRequest(p.onlySets), visitor))
	return principals
}

// visit handles one 200 propstat of a probe. It returns the principal to
// look at next, in which case the rest of the propstat is ignored.
func (d *discoverer) visit(ctx context.Context, ps *xml.Propstat) string {
	if wanted(d.only, SupportsContacts) {
		d.listHomeSet(ctx, props.Hrefs(ps, "CR:addressbook-home-set/D:href"), coveredAddressbook, httpclient.ListOnlyAddressbook)
	}
	if wanted(d.only, calendarComponents) {
		d.listHomeSet(ctx, props.Hrefs(ps, "C:calendar-home-set/D:href"), coveredCalendar, httpclient.ListOnlyCalendar)
	}
	d.addAddresses(ps.Ctx.Texts(ps.Prop, "C:calendar-user-address-set/D:href"))

	for _, path := range []string{"D:current-user-principal/D:href", "D:principal-URL/D:href"} {
		if href := ps.Ctx.Text(ps.Prop, path); href != "" {
			return props.FullHref(ps, href)
		}
	}

	isCalendar := ps.Ctx.Exists(ps.Prop, "D:resourcetype/C:calendar")
	isAddressbook := ps.Ctx.Exists(ps.Prop, "D:resourcetype/CR:addressbook")
	if isCalendar || isAddressbook {
		var mark coverMark
		var flags httpclient.ListFlags
		if isCalendar {
			mark |= coveredCalendar
			flags |= httpclient.ListOnlyCalendar
		}
		if isAddressbook {
			mark |= coveredAddressbook
			flags |= httpclient.ListOnlyAddressbook
		}
		if !d.covered.has(ps.Href, mark) && ctx.Err() == nil {
			d.list(ctx, ps.Href, httpclient.DepthThis, flags)
		}
		d.covered.mark(ps.Href, mark)
	}

	if wanted(d.only, SupportsWebDAVNotes) &&
		(strings.HasSuffix(ps.Href, "/Notes") || strings.HasSuffix(ps.Href, "/Notes/")) &&
		!slices.ContainsFunc(d.calendars, func(r Resource) bool { return r.Href == ps.Href }) &&
		ps.Ctx.Exists(ps.Prop, "D:resourcetype/D:collection") {
		d.logger.Debug("found notes collection", "url", ps.Href)
		d.accumulate([]Resource{{
			Kind:        KindNotes,
			Supports:    SupportsWebDAVNotes,
			Href:        ps.Href,
			DisplayName: "Notes",
		}})
		d.covered.mark(ps.Href, coveredCalendar)
	}

	return ""
}

func (d *discoverer) listHomeSet(ctx context.Context, hrefs []string, mark coverMark, flags httpclient.ListFlags) {
	for _, href := range hrefs {
		if ctx.Err() != nil {
			return
		}
		if !d.covered.has(href, mark) {
			d.list(ctx, href, httpclient.DepthThisAndChildren, flags)
		}
		d.covered.mark(href, mark)
	}
}

func (d *discoverer) list(ctx context.Context, href string, depth httpclient.Depth, flags httpclient.ListFlags) {
	resources, err := d.client.List(ctx, href, depth, flags|httpclient.ListAll)
	d.record(err)
	d.accumulate(resources)
}

// addAddresses keeps the mailto: addresses, without the scheme
func (d *discoverer) addAddresses(hrefs []string) {
	for _, href := range hrefs {
		if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
			continue
		}
		address := href[len("mailto:"):]
		if address == "" {
			continue
		}
		if slices.ContainsFunc(d.addresses, func(a string) bool { return strings.EqualFold(a, address) }) {
			continue
		}
		d.addresses = append(d.addresses, address)
	}
}

// accumulate merges listed resources into the result. A resource seen
// again only adds its capabilities.
func (d *discoverer) accumulate(resources []Resource) {
	for _, res := range resources {
		switch res.Kind {
		case KindAddressbook, KindCalendar, KindSubscribedICalendar, KindNotes:
		default:
			continue
		}

		if d.only&^protocol.SupportsCustom != SupportsNone && !res.Supports.Any(d.only) {
			continue
		}

		target := &d.calendars
		if res.Kind == KindAddressbook {
			target = &d.addressbooks
		}

		if i := slices.IndexFunc(*target, func(r Resource) bool { return r.Href == res.Href }); i >= 0 {
			(*target)[i].Supports |= res.Supports
			continue
		}

		if res.Kind == KindSubscribedICalendar {
			res.Supports |= SupportsSubscribedICalendar
		}
		*target = append(*target, res)
	}
}

// checkAutoSchedule asks every calendar whether the server schedules for it.
// Subscriptions live elsewhere and are skipped. A fatal error ends the loop.
func (d *discoverer) checkAutoSchedule(ctx context.Context) {
	for i := range d.calendars {
		if ctx.Err() != nil {
			return
		}
		if d.calendars[i].Kind != KindCalendar {
			continue
		}
		caps, _, err := d.client.DoOPTIONS(ctx, d.calendars[i].Href)
		if err != nil {
			d.logger.Debug("OPTIONS failed", "url", d.calendars[i].Href, "error", err)
			if httpclient.IsFatal(err) {
				return
			}
			continue
		}
		if caps.Has(protocol.CapabilityCalendarAutoSchedule) {
			d.calendars[i].Supports |= SupportsCalendarAutoSchedule
		}
	}
}

// sortResources orders by calendar-order, resources without one last,
// then by display name
func sortResources(resources []Resource) {
	slices.SortStableFunc(resources, func(a, b Resource) int {
		ao, aok := a.Order.Get()
		bo, bok := b.Order.Get()
		switch {
		case aok && bok && ao != bo:
			return cmp.Compare(ao, bo)
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		}
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
}
