package davclient

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/cyp0633/davdiscover/internal/httpclient"
	"github.com/cyp0633/davdiscover/internal/protocol"
	"github.com/cyp0633/davdiscover/internal/xml"
)

// mockHTTPClient implements httpclient.HttpClientWrapper with canned
// answers and records the calls it receives
type mockHTTPClient struct {
	propfind func(url string) error
	list     func(url string) ([]Resource, error)
	options  func(url string) (protocol.HeaderSet, error)

	mu    sync.Mutex
	calls []string
}

var _ httpclient.HttpClientWrapper = (*mockHTTPClient)(nil)

func (m *mockHTTPClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockHTTPClient) DoOPTIONS(ctx context.Context, url string) (protocol.HeaderSet, protocol.HeaderSet, error) {
	m.record("OPTIONS " + url)
	if m.options == nil {
		return protocol.HeaderSet{}, protocol.HeaderSet{}, nil
	}
	caps, err := m.options(url)
	return caps, protocol.HeaderSet{}, err
}

func (m *mockHTTPClient) DoPROPFIND(ctx context.Context, url string, depth httpclient.Depth, body *xml.PropfindRequest, v xml.Visitor) error {
	m.record("PROPFIND " + url)
	if m.propfind == nil {
		return nil
	}
	return m.propfind(url)
}

func (m *mockHTTPClient) List(ctx context.Context, url string, depth httpclient.Depth, flags httpclient.ListFlags) ([]Resource, error) {
	m.record("LIST " + url)
	if m.list == nil {
		return nil, nil
	}
	return m.list(url)
}

func (m *mockHTTPClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockResolver answers SRV and TXT lookups from maps keyed by name
type mockResolver struct {
	srv map[string][]*net.SRV
	txt map[string][]string
}

func (r *mockResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	if addrs, ok := r.srv[name]; ok {
		return name, addrs, nil
	}
	return "", nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (r *mockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if records, ok := r.txt[name]; ok {
		return records, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
