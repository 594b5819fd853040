package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyp0633/davdiscover/davclient"
	"github.com/cyp0633/davdiscover/internal/config"
)

type sourceView struct {
	Kind          string     `json:"kind" yaml:"kind"`
	Href          string     `json:"href" yaml:"href"`
	DisplayName   string     `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Supports      []string   `json:"supports" yaml:"supports"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
	Color         string     `json:"color,omitempty" yaml:"color,omitempty"`
	Order         *uint32    `json:"order,omitempty" yaml:"order,omitempty"`
	ETag          string     `json:"etag,omitempty" yaml:"etag,omitempty"`
	ContentType   string     `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ContentLength int64      `json:"content_length,omitempty" yaml:"content_length,omitempty"`
	CreationDate  *time.Time `json:"creation_date,omitempty" yaml:"creation_date,omitempty"`
	LastModified  *time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
}

type discoveryView struct {
	Sources               []sourceView `json:"sources" yaml:"sources"`
	CalendarUserAddresses []string     `json:"calendar_user_addresses" yaml:"calendar_user_addresses"`
}

func newDiscoveryView(disc *davclient.Discovery) discoveryView {
	view := discoveryView{
		Sources:               make([]sourceView, 0, len(disc.Sources)),
		CalendarUserAddresses: disc.CalendarUserAddresses,
	}
	if view.CalendarUserAddresses == nil {
		view.CalendarUserAddresses = []string{}
	}

	for _, r := range disc.Sources {
		s := sourceView{
			Kind:          r.Kind.String(),
			Href:          r.Href,
			DisplayName:   r.DisplayName,
			Supports:      r.Supports.Names(),
			Description:   r.Description,
			Color:         r.Color,
			ETag:          r.ETag,
			ContentType:   r.ContentType,
			ContentLength: r.ContentLength,
		}
		if order, ok := r.Order.Get(); ok {
			s.Order = &order
		}
		if created, ok := r.CreationDate.Get(); ok {
			s.CreationDate = &created
		}
		if modified, ok := r.LastModified.Get(); ok {
			s.LastModified = &modified
		}
		view.Sources = append(view.Sources, s)
	}
	return view
}

func writeDiscovery(w io.Writer, format string, disc *davclient.Discovery) error {
	view := newDiscoveryView(disc)

	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputText:
		return writeText(w, view)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeText(w io.Writer, view discoveryView) error {
	if len(view.Sources) == 0 {
		fmt.Fprintln(w, "No collections found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tSUPPORTS\tCOLOR\tHREF")
		for _, s := range view.Sources {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Kind, dash(s.DisplayName), dash(strings.Join(s.Supports, ",")), dash(s.Color), s.Href)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(view.CalendarUserAddresses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Calendar user addresses:")
		for _, a := range view.CalendarUserAddresses {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
