package xml

import (
	"strings"

	"github.com/beevik/etree"
)

// Context evaluates location paths over a parsed document. Element names in
// a path are written as prefix:local and matched by the namespace URI the
// prefix is registered for, never by the prefix the document itself uses.
type Context struct {
	doc        *etree.Document
	namespaces map[string]string
}

// NewContext creates a Context for doc with DAV: bound to the D prefix
func NewContext(doc *etree.Document) *Context {
	return &Context{
		doc:        doc,
		namespaces: map[string]string{PrefixDAV: DAV},
	}
}

// RegisterNamespace binds prefix to a namespace URI for later lookups
func (c *Context) RegisterNamespace(prefix, uri string) {
	c.namespaces[prefix] = uri
}

// Namespace returns the URI registered for prefix
func (c *Context) Namespace(prefix string) (string, bool) {
	uri, ok := c.namespaces[prefix]
	return uri, ok
}

// Root returns the document element
func (c *Context) Root() *etree.Element {
	if c.doc == nil {
		return nil
	}
	return c.doc.Root()
}

type step struct {
	any   bool
	space string
	local string
}

// compile turns "D:prop/C:comp" into steps. ok is false when a prefix is
// not registered; such a path can never match.
func (c *Context) compile(path string) (steps []step, ok bool) {
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		if part == "*" {
			steps = append(steps, step{any: true})
			continue
		}
		prefix, local, found := strings.Cut(part, ":")
		if !found {
			steps = append(steps, step{local: part})
			continue
		}
		uri, registered := c.namespaces[prefix]
		if !registered {
			return nil, false
		}
		steps = append(steps, step{space: uri, local: local})
	}
	return steps, true
}

func (s step) matches(e *etree.Element) bool {
	if s.any {
		return true
	}
	return e.Tag == s.local && e.NamespaceURI() == s.space
}

// Find returns all elements reached from node by following path through
// child elements, in document order.
func (c *Context) Find(node *etree.Element, path string) []*etree.Element {
	if node == nil {
		return nil
	}
	steps, ok := c.compile(path)
	if !ok {
		return nil
	}
	current := []*etree.Element{node}
	for _, s := range steps {
		var next []*etree.Element
		for _, e := range current {
			for _, child := range e.ChildElements() {
				if s.matches(child) {
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// FindFirst returns the first element matched by path, or nil
func (c *Context) FindFirst(node *etree.Element, path string) *etree.Element {
	found := c.Find(node, path)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Exists reports whether path matches at least one element
func (c *Context) Exists(node *etree.Element, path string) bool {
	return c.FindFirst(node, path) != nil
}

// Text returns the trimmed text of the first element matched by path
func (c *Context) Text(node *etree.Element, path string) string {
	e := c.FindFirst(node, path)
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text())
}

// Texts returns the trimmed, non-empty texts of all elements matched by path
func (c *Context) Texts(node *etree.Element, path string) []string {
	var texts []string
	for _, e := range c.Find(node, path) {
		if t := strings.TrimSpace(e.Text()); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// Is reports whether e is the element named by a single prefix:local step
func (c *Context) Is(e *etree.Element, name string) bool {
	if e == nil {
		return false
	}
	steps, ok := c.compile(name)
	if !ok || len(steps) != 1 {
		return false
	}
	return steps[0].matches(e)
}
