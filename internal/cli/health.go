package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type healthResponse struct {
	Status       string `json:"status"`
	DefaultModel string `json:"default_model"`
	Env          string `json:"env"`
}

func newHealthCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report whether the server can currently serve its default model",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			var resp healthResponse
			if err := client.get("/health", &resp); err != nil {
				return err
			}
			return printResult(opts, resp, func() {
				fmt.Printf("status: %s\ndefault_model: %s\nenv: %s\n", resp.Status, resp.DefaultModel, resp.Env)
			})
		},
	}
}

// printResult renders v as JSON when opts.Output == "json", or calls
// textFn for the human-readable default.
func printResult(opts *RootOptions, v interface{}, textFn func()) error {
	if opts.Output == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	textFn()
	return nil
}
