package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"apiclient/pkg/api"
	"apiclient/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	requestData string
	showHeaders bool
)

func newRequestCmd(method string, withBody bool) *cobra.Command {
	use := strings.ToLower(method) + " <path>"
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request to the resolved API endpoint and print the decoded JSON body.

Client errors (4xx) are reported immediately. Server errors (5xx) and network
failures are retried with a delay that grows by the base delay on each retry.`, method),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0])
		},
	}
	if withBody {
		cmd.Flags().StringVarP(&requestData, "data", "d", "", "JSON request body, or @file to read it from a file")
		cmd.Example = fmt.Sprintf(`  apiclient %s /api/items --data '{"name":"widget"}'
  apiclient %s /api/items --data @item.json -H X-Trace=abc`, strings.ToLower(method), strings.ToLower(method))
	} else {
		cmd.Example = fmt.Sprintf(`  apiclient %s /api/items/42
  apiclient %s /api/items/42 --retries 0 --include`, strings.ToLower(method), strings.ToLower(method))
	}
	cmd.Flags().BoolVarP(&showHeaders, "include", "i", false, "print the response status and headers")
	return cmd
}

func init() {
	rootCmd.AddCommand(
		newRequestCmd(http.MethodGet, false),
		newRequestCmd(http.MethodDelete, false),
		newRequestCmd(http.MethodPost, true),
		newRequestCmd(http.MethodPut, true),
		newRequestCmd(http.MethodPatch, true),
	)
}

func runRequest(cmd *cobra.Command, method, path string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	req := &api.Request{Method: method, Path: path}
	if f := cmd.Flags().Lookup("data"); f != nil && f.Changed {
		body, err := readData(requestData)
		if err != nil {
			return err
		}
		req.Body = body
	}

	resp, err := s.client.Do(cmd.Context(), req)
	if err != nil {
		return err
	}

	if showHeaders {
		ui.PrintInfo("Status", fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		ui.PrintInfo("Attempts", fmt.Sprintf("%d", resp.Attempts))
		ui.PrintInfo("Request ID", resp.RequestID)
		for k, v := range resp.Header {
			ui.PrintInfo(k, strings.Join(v, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}

	return printJSON(cmd, resp.Value)
}

// readData returns the body given on the command line. A leading @ names a
// file; the body must be valid JSON either way.
func readData(data string) ([]byte, error) {
	body := []byte(data)
	if name, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		body, err = os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return body, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
