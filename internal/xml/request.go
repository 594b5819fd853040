package xml

import (
	"fmt"
	"slices"

	"github.com/beevik/etree"
)

// PropfindRequest represents the body of a PROPFIND request listing the
// exact properties wanted. A nil *PropfindRequest means allprop.
type PropfindRequest struct {
	Prop []PropName
}

// NewPropfindRequest creates a request for the given properties
func NewPropfindRequest(props ...PropName) *PropfindRequest {
	return &PropfindRequest{Prop: append([]PropName(nil), props...)}
}

// Add appends properties, skipping ones already requested
func (r *PropfindRequest) Add(props ...PropName) {
	for _, p := range props {
		if !r.Has(p) {
			r.Prop = append(r.Prop, p)
		}
	}
}

// Has reports whether p is requested
func (r *PropfindRequest) Has(p PropName) bool {
	for _, existing := range r.Prop {
		if existing == p {
			return true
		}
	}
	return false
}

// ToXML converts a PropfindRequest to an XML document. Only namespaces that
// are actually used get declared on the root.
func (r *PropfindRequest) ToXML() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement(PrefixDAV + ":" + TagPropfind)
	used := []string{DAV}
	prop := root.CreateElement(PrefixDAV + ":" + TagProp)

	for _, p := range r.Prop {
		prefix := PrefixFor(p.Space)
		if prefix == "" {
			// unknown namespace, declare it inline
			elem := prop.CreateElement("X:" + p.Local)
			elem.CreateAttr("xmlns:X", p.Space)
			continue
		}
		prop.CreateElement(prefix + ":" + p.Local)
		if !slices.Contains(used, p.Space) {
			used = append(used, p.Space)
		}
	}

	AddSelectedNamespaces(doc, used...)
	return doc
}

// Bytes serializes the request body
func (r *PropfindRequest) Bytes() ([]byte, error) {
	body, err := r.ToXML().WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize propfind body: %w", err)
	}
	return body, nil
}
