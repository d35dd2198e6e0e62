package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"apiclient/pkg/api"
	"apiclient/pkg/config"
	errs "apiclient/pkg/errors"
	"apiclient/pkg/logger"
	"apiclient/pkg/metrics"
	"apiclient/pkg/ui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	baseURL    string
	origin     string
	retries    int
	baseDelay  time.Duration
	timeout    time.Duration
	headers    []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiclient",
	Short: "Resilient JSON client for the back end API",
	Long: `apiclient sends JSON requests to the back end API.

Features:
  - Automatic retries with linear backoff for 5xx replies and network failures
  - Client errors (4xx) surfaced immediately
  - Health probe before every retry
  - Base endpoint resolved from an explicit URL, the front end origin or the
    local development default
  - Batch replay of request lists with rate limiting`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColorEnabled(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.PrintError(describeError(err))
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default is ./.apiclient.yaml or $HOME/.apiclient.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and response bodies")
	flags.StringVar(&baseURL, "base-url", "", "explicit base URL of the API")
	flags.StringVar(&origin, "origin", "", "front end origin used to derive the API host")
	flags.IntVarP(&retries, "retries", "r", 3, "number of retries after the first attempt")
	flags.DurationVar(&baseDelay, "base-delay", time.Second, "delay before the first retry; later retries wait proportionally longer")
	flags.DurationVar(&timeout, "timeout", 0, "per-attempt timeout (0 waits indefinitely)")
	flags.StringArrayVarP(&headers, "header", "H", nil, "extra request header as key=value (repeatable)")

	rootCmd.SetVersionTemplate(`apiclient {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the flags the user actually set over file, env and defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}
	set("base-url", baseURL)
	set("origin", origin)
	set("retries", retries)
	set("base-delay", baseDelay)
	set("timeout", timeout)
	set("log-level", logLevel)
	set("concurrency", batchConcurrency)
	set("output", batchOutput)

	return config.Load(configFile, flags)
}

// session bundles what a command needs to talk to the API
type session struct {
	cfg      *config.Config
	log      logger.Logger
	client   *api.Client
	registry *prometheus.Registry
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	extra, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}

	opts := []api.Option{api.WithLogger(log)}
	for k, v := range extra {
		opts = append(opts, api.WithDefaultHeader(k, v))
	}

	s := &session{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		opts = append(opts, api.WithObserver(metrics.NewObserver(s.registry, cfg.Metrics.Namespace)))
	}

	s.client = api.NewClientFromConfig(cfg, opts...)
	log.DebugWithFields("Client ready", map[string]interface{}{
		"endpoint": s.client.Endpoint().String(),
		"retries":  cfg.Retry.MaxRetries,
	})
	return s, nil
}

// close flushes metrics when they are enabled
func (s *session) close() {
	if s.registry == nil {
		return
	}
	if err := metrics.WriteTextfile(s.cfg.Metrics.File, s.registry); err != nil {
		s.log.WithError(err).Warn("Failed to write metrics")
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", h)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func describeError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}

// exitCode maps the error class onto the process status
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindClient:
		return 4
	case errs.KindServer, errs.KindExhausted, errs.KindTransport:
		return 5
	default:
		return 1
	}
}
