package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cyp0633/davdiscover/davclient"
	"github.com/cyp0633/davdiscover/internal/config"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "davdiscover [flags] <url>",
		Short: "Discover CalDAV, CardDAV and WebDAV Notes collections",
		Long: `davdiscover finds the calendars, task lists, address books and notes
folders a DAV server offers to an account. It follows principals and home
sets and falls back to the /.well-known/ locations.

Settings can also come from a YAML file (--config) and from DAVDISCOVER_*
environment variables, e.g. DAVDISCOVER_PASSWORD.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.LoadOptions{ConfigFile: configFile, Flags: cmd.Flags()}
			if len(args) == 1 {
				opts.URL = args[0]
			}
			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.StringP("user", "u", "", "user name")
	flags.StringP("password", "p", "", "password")
	flags.String("path", "", "path or URL to start from instead of the URL path")
	flags.StringSlice("only", nil, "only look for contacts, events, memos, tasks, freebusy, auto-schedule, subscribed or notes")
	flags.StringP("output", "o", config.OutputText, "output format: text, json or yaml")
	flags.Duration("timeout", config.DefaultConfig().Timeout, "time limit for the whole discovery")
	flags.Bool("debug", false, "log every request and response")

	return cmd
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "davdiscover",
		ReportTimestamp: true,
	})
	if debug {
		handler.SetLevel(log.DebugLevel)
	}
	return slog.New(handler)
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	discoveryCfg, err := cfg.Discovery()
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.Debug)
	discoveryCfg.Logger = logger

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	disc, err := davclient.FindSourcesWithConfig(ctx, cfg.URL, discoveryCfg)
	if err != nil {
		if pem, flags, ok := davclient.Certificate(err); ok {
			fmt.Fprintf(stderr, "The server certificate is not trusted: %s\n%s", flags, pem)
		}
		return fmt.Errorf("discovery failed: %w", err)
	}
	logger.Debug("discovery done", "sources", len(disc.Sources))

	return writeDiscovery(stdout, cfg.Output, disc)
}
