package davclient

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

type CalendarInfo struct {
	URI      string
	Name     string
	Color    string
	Supports Supports
}

// FindCalendars lists the calendars reachable from location. When nothing is
// found there, the CalDAV SRV records of the host are tried (RFC 6764).
func FindCalendars(ctx context.Context, location string, username string, password string) ([]CalendarInfo, error) {
	return FindCalendarsWithConfig(ctx, location, username, password, DefaultConfig())
}

// FindCalendarsWithConfig allows injecting custom configuration for testing
func FindCalendarsWithConfig(ctx context.Context, location string, username string, password string, cfg *Config) ([]CalendarInfo, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	run := *cfg
	run.Username = username
	run.Password = password
	run.Supports = calendarComponents

	discovery, err := FindSourcesWithConfig(ctx, location, &run)
	if errors.Is(err, ErrInvalidURL) {
		return nil, err
	}

	if (err != nil || len(discovery.Calendars()) == 0) && cfg.Resolver != nil && ctx.Err() == nil {
		host := ""
		if base, perr := url.Parse(location); perr == nil {
			host = base.Hostname()
		}
		for _, candidate := range srvLocations(ctx, cfg.Resolver, host) {
			cfg.logger().Debug("trying SRV location", "url", candidate)
			run.PathOverride = candidate
			found, srvErr := FindSourcesWithConfig(ctx, location, &run)
			if srvErr != nil {
				if err != nil {
					err = keepError(err, srvErr)
				}
				continue
			}
			if len(found.Calendars()) > 0 {
				discovery, err = found, nil
				break
			}
		}
	}

	if err != nil {
		return nil, err
	}

	calendars := make([]CalendarInfo, 0)
	for _, source := range discovery.Calendars() {
		calendars = append(calendars, CalendarInfo{
			URI:      source.Href,
			Name:     source.DisplayName,
			Color:    source.Color,
			Supports: source.Supports,
		})
	}
	return calendars, nil
}

// srvLocations builds candidate URLs from _caldavs and _caldav SRV records,
// with the path taken from a "path=" TXT record
func srvLocations(ctx context.Context, resolver DNSResolver, host string) []string {
	var locations []string
	if host == "" {
		return nil
	}

	// Try both secure and non-secure
	for _, svc := range []struct{ prefix, scheme string }{
		{"_caldavs._tcp.", "https"},
		{"_caldav._tcp.", "http"},
	} {
		name := svc.prefix + host
		_, addrs, err := resolver.LookupSRV(ctx, "", "", name)
		if err != nil {
			continue
		}

		path := "/"
		txts, _ := resolver.LookupTXT(ctx, name)
		for _, txt := range txts {
			if value, ok := strings.CutPrefix(txt, "path="); ok && value != "" {
				path = value
				break
			}
		}

		for _, addr := range addrs {
			target := strings.TrimSuffix(addr.Target, ".")
			if target == "" {
				continue
			}
			u := url.URL{
				Scheme: svc.scheme,
				Host:   net.JoinHostPort(target, strconv.Itoa(int(addr.Port))),
				Path:   path,
			}
			locations = append(locations, u.String())
		}
	}
	return locations
}
