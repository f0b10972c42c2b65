package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the external-data cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "entries: %d (valid %d, expired %d)\n", stats.Entries, stats.Valid, stats.Expired)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <region-id>",
	Short: "Drop cached data for one region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Invalidate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d entries for %s\n", n, args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheInvalidateCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
