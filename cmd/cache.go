package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/taxroll-cli/internal/addrcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the address cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache location and entry count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache := addrcache.Load(cfg.Cache.Path)
		fmt.Fprintf(os.Stdout, "Path:    %s\n", cache.Path())
		fmt.Fprintf(os.Stdout, "Entries: %d\n", cache.Len())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached resolutions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache := addrcache.Load(cfg.Cache.Path)
		n := cache.Len()
		if err := cache.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Cleared %d entries from %s\n", n, cache.Path())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
