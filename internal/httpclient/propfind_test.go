package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/davdiscover/internal/davtest"
	"github.com/cyp0633/davdiscover/internal/xml"
)

func newTestWrapper(t *testing.T, rawURL string) HttpClientWrapper {
	t.Helper()
	base, err := url.Parse(rawURL)
	require.NoError(t, err)
	w, err := NewHttpClientWrapper(&http.Client{}, *base, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w
}

type collectedPropstat struct {
	href   string
	status int
	name   string
}

func collect(into *[]collectedPropstat) xml.Visitor {
	return xml.VisitorFuncs{VisitFunc: func(ps *xml.Propstat) bool {
		name := ""
		if ps.Prop != nil {
			name = ps.Ctx.Text(ps.Prop, "D:displayname")
		}
		*into = append(*into, collectedPropstat{href: ps.Href, status: ps.Status, name: name})
		return true
	}}
}

func TestDoPROPFIND(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Multistatus("/calendars/me/",
		davtest.OK("/calendars/me/", `<D:displayname>Me</D:displayname>`),
		davtest.Response{Href: "work/", Propstats: []davtest.Propstat{
			{Status: 200, Prop: `<D:displayname>Work</D:displayname>`},
			{Status: 404, Prop: `<IC:calendar-color/>`},
		}},
	)

	w := newTestWrapper(t, srv.URL)
	var got []collectedPropstat
	err := w.DoPROPFIND(context.Background(), "/calendars/me/", DepthThisAndChildren,
		xml.NewPropfindRequest(xml.PropDisplayName, xml.PropCalendarColor), collect(&got))
	require.NoError(t, err)

	assert.Equal(t, []collectedPropstat{
		{srv.URLFor("/calendars/me/"), 200, "Me"},
		{srv.URLFor("/calendars/me/work/"), 200, "Work"},
		{srv.URLFor("/calendars/me/work/"), 404, ""},
	}, got)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "PROPFIND", reqs[0].Method)
	assert.Equal(t, "1", reqs[0].Depth)
	assert.Equal(t, `application/xml; charset="utf-8"`, reqs[0].ContentType)
	assert.Contains(t, reqs[0].Body, "<D:propfind")
	assert.Contains(t, reqs[0].Body, "<IC:calendar-color/>")
}

func TestDoPROPFINDWithoutBody(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Multistatus("/", davtest.OK("/", `<D:resourcetype><D:collection/></D:resourcetype>`))

	w := newTestWrapper(t, srv.URL)
	var got []collectedPropstat
	require.NoError(t, w.DoPROPFIND(context.Background(), "/", DepthThis, nil, collect(&got)))
	assert.Len(t, got, 1)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "0", reqs[0].Depth)
	assert.Empty(t, reqs[0].ContentType)
	assert.Empty(t, reqs[0].Body)
}

func TestDoPROPFINDFollowsRedirects(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Redirect("/.well-known/caldav", "/dav/", http.StatusMovedPermanently)
	srv.Redirect("/dav/", srv.URLFor("/dav/calendars/me/"), http.StatusTemporaryRedirect)
	srv.Multistatus("/dav/calendars/me/", davtest.OK("work/", `<D:displayname>Work</D:displayname>`))

	w := newTestWrapper(t, srv.URL)
	var got []collectedPropstat
	err := w.DoPROPFIND(context.Background(), "/.well-known/caldav", DepthThis,
		xml.NewPropfindRequest(xml.PropDisplayName), collect(&got))
	require.NoError(t, err)

	require.Len(t, got, 1)
	// relative to where the answer came from, not to what was asked
	assert.Equal(t, srv.URLFor("/dav/calendars/me/work/"), got[0].href)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, "PROPFIND", r.Method)
		assert.Equal(t, "0", r.Depth)
		assert.Contains(t, r.Body, "displayname")
	}
}

func newAuthWrapper(t *testing.T, rawURL string) HttpClientWrapper {
	t.Helper()
	base, err := url.Parse(rawURL)
	require.NoError(t, err)
	client := &http.Client{Transport: NewBasicAuthTransport("me", "secret", nil, nil)}
	w, err := NewHttpClientWrapper(client, *base, nil)
	require.NoError(t, err)
	return w
}

func TestRedirectToOtherHostDropsCredentials(t *testing.T) {
	origin := davtest.NewServer(t)
	foreign := davtest.NewServer(t)
	origin.Redirect("/.well-known/caldav", foreign.URLFor("/dav/"), http.StatusMovedPermanently)
	foreign.Multistatus("/dav/", davtest.OK("/dav/", `<D:displayname>Elsewhere</D:displayname>`))

	w := newAuthWrapper(t, origin.URL)
	var got []collectedPropstat
	require.NoError(t, w.DoPROPFIND(context.Background(), "/.well-known/caldav", DepthThis, nil, collect(&got)))
	require.Len(t, got, 1)
	assert.Equal(t, "Elsewhere", got[0].name)

	require.Len(t, origin.Requests(), 1)
	assert.True(t, origin.Requests()[0].Authorization)
	require.Len(t, foreign.Requests(), 1)
	assert.False(t, foreign.Requests()[0].Authorization)
}

func TestRedirectOnSameHostKeepsCredentials(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.RequireAuth("me", "secret")
	srv.Redirect("/.well-known/carddav", "/dav/", http.StatusFound)
	srv.Multistatus("/dav/", davtest.OK("/dav/", `<D:displayname>Here</D:displayname>`))

	w := newAuthWrapper(t, srv.URL)
	var got []collectedPropstat
	require.NoError(t, w.DoPROPFIND(context.Background(), "/.well-known/carddav", DepthThis, nil, collect(&got)))
	require.Len(t, got, 1)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.True(t, r.Authorization, r.Path)
	}
}

func TestKeepsCredentials(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"https://dav.example.com/a", "https://dav.example.com/b", true},
		{"https://dav.example.com/a", "https://DAV.example.com/b", true},
		{"http://dav.example.com/a", "https://dav.example.com/b", true},
		{"https://dav.example.com/a", "http://dav.example.com/b", false},
		{"https://dav.example.com/a", "https://other.example.com/b", false},
		{"https://dav.example.com/a", "https://dav.example.com:8443/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			from, err := url.Parse(tt.from)
			require.NoError(t, err)
			to, err := url.Parse(tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keepsCredentials(from, to))
		})
	}
}

func TestDoPROPFINDRedirectLoop(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Redirect("/a/", "/b/", http.StatusFound)
	srv.Redirect("/b/", "/a/", http.StatusFound)

	w := newTestWrapper(t, srv.URL)
	err := w.DoPROPFIND(context.Background(), "/a/", DepthThis, nil, xml.VisitorFuncs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
	assert.Equal(t, maxRedirects+1, len(srv.Requests()))
}

func TestDoPROPFINDErrors(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Status("PROPFIND", "/forbidden/", http.StatusForbidden)
	srv.Status("PROPFIND", "/private/", http.StatusUnauthorized)
	srv.Handle("PROPFIND", "/html/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = io.WriteString(w, "<html></html>")
	})
	srv.Handle("PROPFIND", "/ok/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<D:multistatus xmlns:D="DAV:"/>`)
	})

	w := newTestWrapper(t, srv.URL)
	ctx := context.Background()

	err := w.DoPROPFIND(ctx, "/missing/", DepthThis, nil, xml.VisitorFuncs{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "PROPFIND", statusErr.Method)
	assert.Equal(t, srv.URLFor("/missing/"), statusErr.URL)
	assert.False(t, IsUnauthorized(err))

	err = w.DoPROPFIND(ctx, "/forbidden/", DepthThis, nil, xml.VisitorFuncs{})
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)

	err = w.DoPROPFIND(ctx, "/private/", DepthThis, nil, xml.VisitorFuncs{})
	assert.True(t, IsUnauthorized(err))

	err = w.DoPROPFIND(ctx, "/html/", DepthThis, nil, xml.VisitorFuncs{})
	assert.ErrorIs(t, err, xml.ErrInvalidData)

	// 200 instead of 207
	err = w.DoPROPFIND(ctx, "/ok/", DepthThis, nil, xml.VisitorFuncs{})
	assert.ErrorIs(t, err, xml.ErrInvalidData)
}

func TestDoPROPFINDCancelled(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Multistatus("/", davtest.OK("/", `<D:displayname>x</D:displayname>`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newTestWrapper(t, srv.URL)
	err := w.DoPROPFIND(ctx, "/", DepthThis, nil, xml.VisitorFuncs{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsFatal(err))
	assert.Empty(t, srv.Requests())
}

func TestResolveURLStripsUserInfo(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.Multistatus("/dav/", davtest.OK("/dav/", `<D:displayname>x</D:displayname>`))

	base := strings.Replace(srv.URL, "http://", "http://someone:secret@", 1)
	w := newTestWrapper(t, base)
	var got []collectedPropstat
	require.NoError(t, w.DoPROPFIND(context.Background(), "dav/", DepthThis, nil, collect(&got)))

	require.Len(t, got, 1)
	assert.Equal(t, srv.URLFor("/dav/"), got[0].href)
	assert.False(t, srv.Requests()[0].Authorization)
}

func TestNewHttpClientWrapperRejectsScheme(t *testing.T) {
	base, _ := url.Parse("ftp://example.com/")
	_, err := NewHttpClientWrapper(nil, *base, nil)
	assert.Error(t, err)
}
