package main

import (
	"fmt"
	"time"

	"apiclient/internal/batch"
	"apiclient/pkg/ratelimit"
	"apiclient/pkg/storage"
	"apiclient/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	batchConcurrency int
	batchOutput      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Replay a list of requests from a YAML file",
	Long: `Replay every request listed in a YAML batch file and store each decoded
response as <name>.json in the output directory.

Responses already present in the output directory are skipped, so an
interrupted run can simply be started again. Each request has its own retry
loop; a failed request does not stop the others.

Batch file format:

  requests:
    - name: list-items
      path: /api/items
    - name: create-item
      method: POST
      path: /api/items
      body:
        name: widget`,
	Example: `  apiclient batch requests.yaml
  apiclient batch requests.yaml --output ./out --concurrency 5`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "number of requests in flight")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output directory for responses")
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs, err := batch.LoadFile(args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	store, err := storage.NewManager(s.cfg.Batch.OutputDir)
	if err != nil {
		return err
	}

	ui.PrintInfo("Endpoint", s.client.Endpoint().String())
	ui.PrintInfo("Output", store.OutputDir())

	progress := ui.NewBatchProgress(len(jobs))
	runner := batch.NewRunner(s.cfg.Batch.Concurrency, s.client, store,
		batch.WithLogger(s.log),
		batch.WithLimiter(ratelimit.New(s.cfg.Batch.RequestsPerMinute, s.cfg.Batch.BurstSize)),
		batch.WithResultHandler(func(r batch.Result) {
			progress.Record(r.Job.Name, r.Skipped, r.Error)
		}),
	)

	summary, err := runner.Run(cmd.Context(), jobs)
	if err != nil {
		return err
	}

	ui.Println()
	ui.PrintInfo("Succeeded", fmt.Sprintf("%d", summary.Succeeded))
	ui.PrintInfo("Skipped", fmt.Sprintf("%d", summary.Skipped))
	ui.PrintInfo("Failed", fmt.Sprintf("%d", summary.Failed))
	ui.PrintInfo("Duration", summary.Duration.Round(time.Millisecond).String())

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed", summary.Failed, len(jobs))
	}
	ui.PrintSuccess("Batch completed")
	return nil
}
