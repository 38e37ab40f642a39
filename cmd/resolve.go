package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/taxroll-cli/internal/model"
)

var resolveOffline bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <address>",
	Short: "Resolve a single address",
	Long:  "Runs one address through the resolution chain (cache, regex parsing, geocoding, manual splitting) and prints the result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := initEngine(resolveOffline)
		if err != nil {
			return err
		}

		result, err := engine.ResolveOne(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := struct {
			Input       string                   `json:"input"`
			Status      model.Status             `json:"status"`
			Source      model.Source             `json:"source,omitempty"`
			FullAddress string                   `json:"full_address"`
			Components  *model.NormalizedAddress `json:"components,omitempty"`
		}{
			Input:       result.Input,
			Status:      result.Status,
			Source:      result.Source,
			FullAddress: result.FullAddress(),
			Components:  result.Normalized,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveOffline, "offline", false, "skip the geocoding fallback")
	rootCmd.AddCommand(resolveCmd)
}
