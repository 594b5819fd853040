package xml

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
)

func TestAddSelectedNamespaces(t *testing.T) {
	tests := []struct {
		name       string
		namespaces []string
		existing   map[string]string
		wantAttr   map[string]string
	}{
		{
			name:       "add single namespace",
			namespaces: []string{DAV},
			wantAttr:   map[string]string{"xmlns:D": DAV},
		},
		{
			name:       "add multiple namespaces",
			namespaces: []string{DAV, CalDAV, AppleICal},
			wantAttr: map[string]string{
				"xmlns:D":  DAV,
				"xmlns:C":  CalDAV,
				"xmlns:IC": AppleICal,
			},
		},
		{
			name:       "add no namespaces",
			namespaces: []string{},
			wantAttr:   map[string]string{},
		},
		{
			name:       "unknown namespace is skipped",
			namespaces: []string{"http://example.com/ns", CardDAV},
			wantAttr:   map[string]string{"xmlns:CR": CardDAV},
		},
		{
			name:       "existing declaration is kept",
			namespaces: []string{DAV, CalendarServer},
			existing:   map[string]string{"xmlns:D": "DAV:"},
			wantAttr: map[string]string{
				"xmlns:D":  DAV,
				"xmlns:CS": CalendarServer,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := etree.NewDocument()
			root := doc.CreateElement("test")
			for k, v := range tt.existing {
				root.CreateAttr(k, v)
			}
			AddSelectedNamespaces(doc, tt.namespaces...)

			gotAttr := make(map[string]string)
			for _, attr := range root.Attr {
				gotAttr[attr.Space+":"+attr.Key] = attr.Value
			}
			assert.Equal(t, tt.wantAttr, gotAttr)
		})
	}
}

func TestAddSelectedNamespacesWithoutRoot(t *testing.T) {
	doc := etree.NewDocument()
	AddSelectedNamespaces(doc, DAV)
	assert.Nil(t, doc.Root())
}

func TestPrefixFor(t *testing.T) {
	assert.Equal(t, "D", PrefixFor(DAV))
	assert.Equal(t, "C", PrefixFor(CalDAV))
	assert.Equal(t, "CR", PrefixFor(CardDAV))
	assert.Equal(t, "CS", PrefixFor(CalendarServer))
	assert.Equal(t, "IC", PrefixFor(AppleICal))
	assert.Empty(t, PrefixFor("http://example.com/ns"))
}

func TestRegisterDiscoveryNamespaces(t *testing.T) {
	ctx := NewContext(etree.NewDocument())
	_, ok := ctx.Namespace(PrefixCalDAV)
	assert.False(t, ok)

	RegisterDiscoveryNamespaces(ctx)
	for prefix, uri := range map[string]string{
		PrefixDAV:            DAV,
		PrefixCalDAV:         CalDAV,
		PrefixCardDAV:        CardDAV,
		PrefixCalendarServer: CalendarServer,
		PrefixAppleICal:      AppleICal,
	} {
		got, ok := ctx.Namespace(prefix)
		assert.True(t, ok, prefix)
		assert.Equal(t, uri, got, prefix)
	}
}
