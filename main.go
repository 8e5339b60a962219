package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pwexport/internal/config"
	"pwexport/internal/csvenc"
	"pwexport/internal/export"
	"pwexport/internal/extract"
	"pwexport/internal/formatter"
	"pwexport/internal/logging"
	"pwexport/internal/source"
	_ "pwexport/internal/source/snapshot"
	_ "pwexport/internal/source/webvault"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	started := time.Now()

	var (
		cfgFile string
		showUI  bool
	)

	var rootCmd = &cobra.Command{
		Use:     "pwexport [URL|FILE]",
		Short:   "Export the logins of a password vault table to CSV",
		Version: version,
		Long: `pwexport reads every row of a password vault's login table, opens each
row's detail view to collect its URLs, username and password, and writes
the result as CSV.

The table is filled asynchronously, so pwexport first waits until the row
count stops changing. Rows whose detail view refuses to open (twice) are
skipped and counted.`,
		Example: `  # Export a vault served by a local web UI
  pwexport --url http://127.0.0.1:8200/vault -o logins.csv

  # Replay a saved page of the vault and print JSON
  pwexport --source snapshot saved-vault.html -f json

  # Watch the browser while it works and keep a diagnostic log
  pwexport --showui --log --log-file export.log http://127.0.0.1:8200/vault -o logins.csv

  # Write UTF-16 for importers that need it
  pwexport --url http://127.0.0.1:8200/vault -o logins.csv --encoding utf-16`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, cfgFile, showUI, started)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./pwexport.yaml if present)")
	flags.StringP("source", "S", "webvault", "Source kind ("+strings.Join(source.Names(), ", ")+")")
	flags.String("url", "", "Vault page URL (webvault source)")
	flags.String("snapshot", "", "Saved vault page (snapshot source)")
	flags.IntP("max-attempts", "a", 10, "Row count samples allowed before giving up")
	flags.IntP("timeout", "t", 600, "Extraction timeout in seconds")
	flags.Int("forced-rows", 0, "Visit this many rows cycling over the table (volume testing, 0 = off)")
	flags.StringP("output", "o", "", "Output file path (format inferred from extension if -f not specified)")
	flags.StringP("format", "f", "", "Output format ("+strings.Join(formatter.Formats, ", ")+")")
	flags.String("encoding", csvenc.EncodingUTF8, "Output file encoding (utf-8, utf-16)")
	flags.Bool("log", false, "Append a timestamped diagnostic log")
	flags.String("log-file", "pwexport.log", "Diagnostic log path")
	flags.String("log-level", "info", "Console log level (debug, info, warn, error)")
	flags.BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	flags.StringP("proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890), defaults to PWEXPORT_PROXY env var")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string, cfgFile string, showUI bool, started time.Time) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if showUI {
		cfg.Browser.Headless = false
	}
	if len(args) == 1 {
		if strings.EqualFold(cfg.Source.Name, "snapshot") {
			cfg.Source.Snapshot = args[0]
		} else {
			cfg.Source.URL = normalizeURL(args[0])
		}
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	trace := logging.NewTimestamped(cfg.Logging.Path, cfg.Logging.Enabled, started)
	_ = trace.Logf("pwexport %s: source=%s output=%q", version, cfg.Source.Name, cfg.Output.Path)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, ok := source.Get(cfg.Source.Name)
	if !ok {
		return fmt.Errorf("unknown source: %s", cfg.Source.Name)
	}
	sess, err := provider.Open(ctx, source.Options{
		URL:          cfg.Source.URL,
		SnapshotPath: cfg.Source.Snapshot,
		DetailWait:   cfg.Source.DetailWait,
		Headless:     cfg.Browser.Headless,
		ProxyURL:     cfg.Browser.Proxy,
		BrowserBin:   cfg.Browser.Bin,
		Selectors:    cfg.Source.Selectors,
	})
	if err != nil {
		_ = trace.Logf("open source failed: %v", err)
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer sess.Close()

	engine := extract.New(extract.Config{
		MaxAttempts:    cfg.Extract.MaxAttempts,
		Timeout:        cfg.Extract.Timeout(),
		ForcedRowCount: cfg.Extract.ForcedRowCount,
		PollInterval:   cfg.Extract.PollInterval,
	}, log, trace)

	result, err := engine.Extract(ctx, sess)
	if err != nil {
		return err
	}
	if result.FailedRowCount > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d of %d rows could not be opened and were skipped\n",
			result.FailedRowCount, result.Visited)
	}

	content := export.NewContent(sourceLabel(cfg), result)
	output, err := formatter.Format(content, cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if cfg.Output.Path != "" {
		if err := csvenc.WriteFile(cfg.Output.Path, output, cfg.Output.Encoding); err != nil {
			log.Error("writing output failed", zap.String("path", cfg.Output.Path), zap.Error(err))
			_ = trace.Logf("write failed: %v", err)
			return err
		}
		_ = trace.Logf("wrote %d entries to %s", len(result.Entries), cfg.Output.Path)
		fmt.Fprintf(os.Stderr, "Output written to: %s (%d entries)\n", cfg.Output.Path, len(result.Entries))
	} else {
		fmt.Println(output)
	}
	return nil
}

func sourceLabel(cfg *config.Config) string {
	if cfg.Source.Snapshot != "" && strings.EqualFold(cfg.Source.Name, "snapshot") {
		return cfg.Source.Snapshot
	}
	if cfg.Source.URL != "" {
		return cfg.Source.URL
	}
	return cfg.Source.Name
}

// normalizeURL adds http:// when no scheme is given.
func normalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return rawURL
	}
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "file://") {
		return "http://" + rawURL
	}
	return rawURL
}
