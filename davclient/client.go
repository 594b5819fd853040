package davclient

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/cyp0633/davdiscover/internal/httpclient"
)

// DNSResolver interface for mocking DNS lookups in tests
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (cname string, addrs []*net.SRV, err error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Config holds configuration for FindSourcesWithConfig and
// FindCalendarsWithConfig
type Config struct {
	// Client is copied, never modified. Its Transport is wrapped to add
	// credentials.
	Client *http.Client
	Logger *slog.Logger
	// Resolver is used by FindCalendarsWithConfig for SRV lookups; nil
	// disables them.
	Resolver DNSResolver

	Username string
	Password string
	// PathOverride replaces or extends the location path, see FindSources
	PathOverride string
	// Supports limits what kind of collections are searched for
	Supports Supports
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Client:   http.DefaultClient,
		Logger:   slog.Default(),
		Resolver: &net.Resolver{},
	}
}

func (cfg *Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg.Logger
}

// newWrapper sets up the HTTP client for one discovery run against base
func newWrapper(cfg *Config, base *url.URL, username, password string, logger *slog.Logger) (httpclient.HttpClientWrapper, error) {
	client := http.Client{}
	if cfg.Client != nil {
		client = *cfg.Client
	}
	client.Transport = httpclient.NewBasicAuthTransport(username, password, client.Transport, logger)
	return httpclient.NewHttpClientWrapper(&client, *base, logger)
}
