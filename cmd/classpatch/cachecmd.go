package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/classpatch/cache"
	"github.com/chazu/classpatch/config"
)

func newCacheCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the match cache",
	}
	cmd.PersistentFlags().StringVarP(&dir, "dir", "C", ".", "Directory to search for "+config.FileName)

	open := func() (*cache.Cache, error) {
		cfg, err := config.FindAndLoad(dir)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = config.Default(dir)
		}
		return cache.Open(cfg.CachePath())
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the number of cached matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			n, err := c.Len()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", c.Path(), n)
			return nil
		},
	}

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached matches older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			n, err := c.Prune(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Keep entries newer than this (0 removes everything)")

	cmd.AddCommand(statsCmd, pruneCmd)
	return cmd
}
