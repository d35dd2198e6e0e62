package main

import (
	"fmt"

	"apiclient/pkg/ui"

	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the API health endpoint",
	Long: `Send a single GET to the health endpoint of the resolved API base and report
whether it answered with a 2xx status within the health timeout.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ui.PrintInfo("Endpoint", s.client.Endpoint().String())

	status := s.client.Health(cmd.Context())
	if status.StatusCode > 0 {
		ui.PrintInfo("Status", fmt.Sprintf("%d", status.StatusCode))
	}
	ui.PrintInfo("Latency", status.Latency.String())

	if !status.Healthy {
		if status.Err != nil {
			return fmt.Errorf("API is unhealthy: %w", status.Err)
		}
		return fmt.Errorf("API is unhealthy")
	}

	ui.PrintSuccess("API is healthy")
	return nil
}
