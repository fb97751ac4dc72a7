package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type listModelsResponse struct {
	LoadedVersions []string `json:"loaded_versions"`
	DefaultVersion string   `json:"default_version"`
}

type modelActionResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func newModelsCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and manage model versions loaded by the server",
	}
	cmd.AddCommand(
		newModelsListCmd(opts),
		newModelsLoadCmd(opts),
		newModelsPromoteCmd(opts),
		newModelsUnloadCmd(opts),
	)
	return cmd
}

func newModelsListCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded model versions and the current default",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			var resp listModelsResponse
			if err := client.get("/admin/models", &resp); err != nil {
				return err
			}
			return printResult(opts, resp, func() {
				fmt.Printf("default: %s\nloaded: %s\n", resp.DefaultVersion, strings.Join(resp.LoadedVersions, ", "))
			})
		},
	}
}

func newModelsLoadCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <version>",
		Short: "Load a model version into the server without changing the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			var resp modelActionResponse
			if err := client.post("/admin/models/"+args[0]+"/load", &resp); err != nil {
				return err
			}
			return printResult(opts, resp, func() {
				fmt.Printf("%s: %s\n", resp.Status, resp.Version)
			})
		},
	}
}

func newModelsPromoteCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <version>",
		Short: "Make a model version the server's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			var resp modelActionResponse
			if err := client.post("/admin/models/"+args[0]+"/promote", &resp); err != nil {
				return err
			}
			return printResult(opts, resp, func() {
				fmt.Printf("%s: %s\n", resp.Status, resp.Version)
			})
		},
	}
}

func newModelsUnloadCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unload <version>",
		Short: "Evict a non-default model version from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			var resp modelActionResponse
			if err := client.delete("/admin/models/"+args[0], &resp); err != nil {
				return err
			}
			return printResult(opts, resp, func() {
				fmt.Printf("%s: %s\n", resp.Status, resp.Version)
			})
		},
	}
}
