package main

import (
	"fmt"
	"os"

	"apiclient/pkg/config"
	"apiclient/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage apiclient configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (APICLIENT_*), including .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.apiclient.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging flags, environment,
configuration file and defaults, together with the resolved API endpoint.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# apiclient configuration file
#
# Every option can also be set through environment variables prefixed with
# APICLIENT_, for example APICLIENT_BASE_URL or APICLIENT_MAX_RETRIES.

api:
  # Explicit base URL; wins over everything below
  base_url: ""
  # Front end origin. When its host contains frontend_token, the API host is
  # the same host with that token replaced by backend_token. Any other
  # non-local origin is used as is.
  origin: ""
  frontend_token: "frontend"
  backend_token: "backend"
  # Used when nothing else applies
  local_default: "http://localhost:3001"

retry:
  # Retries after the first attempt (4 attempts in total by default)
  max_retries: 3
  # Retry n waits base_delay * n
  base_delay: 1s
  max_delay: 0s
  # linear or exponential
  strategy: "linear"
  # Per-attempt timeout; 0 waits indefinitely
  request_timeout: 0s

health:
  # Probe the health endpoint before every retry
  enabled: true
  path: "/api/health"
  timeout: 5s

batch:
  concurrency: 3
  requests_per_minute: 60
  burst_size: 10
  output_dir: "./responses"

metrics:
  enabled: false
  namespace: "apiclient"
  file: "apiclient.prom"

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # console or json
  format: "console"
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".apiclient.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Set api.base_url or api.origin")
	ui.Println("2. Run 'apiclient config validate' to check the configuration")
	ui.Println("3. Run 'apiclient health' to reach the API")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	ui.Println()
	ui.PrintInfo("Resolved endpoint", config.ResolveEndpoint(cfg.API).String())
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.PrintInfo("  Endpoint", config.ResolveEndpoint(cfg.API).String())
	ui.PrintInfo("  Retries", fmt.Sprintf("%d (%s, base %s)", cfg.Retry.MaxRetries, cfg.Retry.Strategy, cfg.Retry.BaseDelay))
	ui.PrintInfo("  Health probe", fmt.Sprintf("%t (%s)", cfg.Health.Enabled, cfg.Health.Path))
	ui.PrintInfo("  Batch", fmt.Sprintf("%d workers, %d requests/minute", cfg.Batch.Concurrency, cfg.Batch.RequestsPerMinute))
	ui.PrintInfo("  Log level", cfg.Logging.Level)
	return nil
}
