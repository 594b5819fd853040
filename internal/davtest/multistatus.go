// Package davtest provides a scripted in-process DAV server for tests.
package davtest

import (
	"fmt"
	"net/http"

	"github.com/beevik/etree"
)

// namespaces declared on every generated multistatus; property fragments
// may use these prefixes freely
var namespaces = [][2]string{
	{"D", "DAV:"},
	{"C", "urn:ietf:params:xml:ns:caldav"},
	{"CR", "urn:ietf:params:xml:ns:carddav"},
	{"CS", "http://calendarserver.org/ns/"},
	{"IC", "http://apple.com/ns/ical/"},
}

// Propstat is one DAV:propstat. Prop is the raw XML content of DAV:prop.
type Propstat struct {
	Status int
	Prop   string
}

// Response is one DAV:response. Status is written as a bare DAV:status
// when there are no propstats.
type Response struct {
	Href      string
	Propstats []Propstat
	Status    int
}

// OK is a response with a single 200 propstat
func OK(href, prop string) Response {
	return Response{Href: href, Propstats: []Propstat{{Status: http.StatusOK, Prop: prop}}}
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// Multistatus renders responses as a DAV:multistatus document
func Multistatus(responses ...Response) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("D:multistatus")
	for _, ns := range namespaces {
		root.CreateAttr("xmlns:"+ns[0], ns[1])
	}

	for _, r := range responses {
		resp := root.CreateElement("D:response")
		resp.CreateElement("D:href").SetText(r.Href)

		if len(r.Propstats) == 0 {
			code := r.Status
			if code == 0 {
				code = http.StatusNotFound
			}
			resp.CreateElement("D:status").SetText(statusLine(code))
			continue
		}

		for _, ps := range r.Propstats {
			propstat := resp.CreateElement("D:propstat")
			prop, err := parseProp(ps.Prop)
			if err != nil {
				return "", fmt.Errorf("response %s: %w", r.Href, err)
			}
			propstat.AddChild(prop)
			code := ps.Status
			if code == 0 {
				code = http.StatusOK
			}
			propstat.CreateElement("D:status").SetText(statusLine(code))
		}
	}

	doc.Indent(2)
	return doc.WriteToString()
}

// parseProp turns a fragment into a DAV:prop element whose prefixes resolve
// against the multistatus declarations
func parseProp(fragment string) (*etree.Element, error) {
	wrapper := "<D:prop"
	for _, ns := range namespaces {
		wrapper += fmt.Sprintf(` xmlns:%s="%s"`, ns[0], ns[1])
	}
	wrapper += ">" + fragment + "</D:prop>"

	tmp := etree.NewDocument()
	if err := tmp.ReadFromString(wrapper); err != nil {
		return nil, fmt.Errorf("invalid prop fragment: %w", err)
	}
	prop := tmp.Root()
	for _, ns := range namespaces {
		prop.RemoveAttr("xmlns:" + ns[0])
	}
	tmp.RemoveChild(prop)
	return prop, nil
}
