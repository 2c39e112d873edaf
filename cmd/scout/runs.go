package main

import (
	"fmt"

	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/internal/store"
	"github.com/spf13/cobra"
)

func runsCMD() *cobra.Command {
	var cfgPath string
	var last int64

	var runs = &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List or show archived run reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Storage.Redis.Enabled() {
				return fmt.Errorf("run archive not configured (storage.redis.host)")
			}
			archive, err := store.NewRedisArchive(cfg.Storage.Redis)
			if err != nil {
				return err
			}
			defer archive.Close()

			if len(args) == 1 {
				report, err := archive.LoadRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(string(report))
				return nil
			}

			ids, err := archive.RecentRuns(cmd.Context(), last)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
	runs.Flags().Int64Var(&last, "last", 20, "number of runs to list")
	runs.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return runs
}
