package xml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropfindRequestToXML(t *testing.T) {
	tests := []struct {
		name  string
		props []PropName
		want  string
	}{
		{
			name: "empty prop",
			want: `<?xml version="1.0" encoding="utf-8"?><D:propfind xmlns:D="DAV:"><D:prop/></D:propfind>`,
		},
		{
			name:  "dav only",
			props: []PropName{PropResourceType, PropCurrentUserPrincipal, PropPrincipalURL},
			want: `<?xml version="1.0" encoding="utf-8"?><D:propfind xmlns:D="DAV:"><D:prop>` +
				`<D:resourcetype/><D:current-user-principal/><D:principal-URL/></D:prop></D:propfind>`,
		},
		{
			name:  "mixed namespaces",
			props: []PropName{PropResourceType, PropCalendarHomeSet, PropAddressbookHomeSet, PropCalendarColor},
			want: `<?xml version="1.0" encoding="utf-8"?><D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" ` +
				`xmlns:CR="urn:ietf:params:xml:ns:carddav" xmlns:IC="http://apple.com/ns/ical/"><D:prop>` +
				`<D:resourcetype/><C:calendar-home-set/><CR:addressbook-home-set/><IC:calendar-color/></D:prop></D:propfind>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewPropfindRequest(tt.props...).Bytes()
			require.NoError(t, err)
			assert.Equal(t, normalizeXML(tt.want), normalizeXML(string(body)))
		})
	}
}

func TestPropfindRequestParsesBack(t *testing.T) {
	req := NewPropfindRequest(PropResourceType)
	req.Add(PropCalendarHomeSet, PropResourceType, PropGetCTag)
	assert.Len(t, req.Prop, 3)

	body, err := req.Bytes()
	require.NoError(t, err)

	doc := parseDoc(t, string(body))
	ctx := NewContext(doc)
	RegisterDiscoveryNamespaces(ctx)

	require.True(t, ctx.Is(ctx.Root(), "D:propfind"))
	assert.True(t, ctx.Exists(ctx.Root(), "D:prop/D:resourcetype"))
	assert.True(t, ctx.Exists(ctx.Root(), "D:prop/C:calendar-home-set"))
	assert.True(t, ctx.Exists(ctx.Root(), "D:prop/CS:getctag"))
	assert.Len(t, ctx.Find(ctx.Root(), "D:prop/*"), 3)
}

func TestPropfindRequestUnknownNamespace(t *testing.T) {
	req := NewPropfindRequest(PropName{Space: "http://example.com/ns/", Local: "thing"})
	body, err := req.Bytes()
	require.NoError(t, err)

	ctx := NewContext(parseDoc(t, string(body)))
	ctx.RegisterNamespace("E", "http://example.com/ns/")
	assert.True(t, ctx.Exists(ctx.Root(), "D:prop/E:thing"))
}
