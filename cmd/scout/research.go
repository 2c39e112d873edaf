package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quillworks/scout/config"
	"github.com/quillworks/scout/internal/bundle"
	openai_oracle "github.com/quillworks/scout/internal/oracle/openai"
	"github.com/quillworks/scout/internal/research"
	"github.com/quillworks/scout/internal/store"
	"github.com/quillworks/scout/internal/telemetry"
	"github.com/spf13/cobra"
)

func researchCMD() *cobra.Command {
	var cfgPath string
	var researchType string
	var maxIterations int
	var deadline time.Duration
	var outPath string

	var researchCmd = &cobra.Command{
		Use:   "research [subject...]",
		Short: "Run autonomous research on a subject",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[scout] ", log.LstdFlags)

			var tel *telemetry.Telemetry
			if cfg.Telemetry.Enabled {
				tel = telemetry.New()
				go func() {
					if err := tel.Serve(cfg.Telemetry.MetricsPort); err != nil {
						logger.Printf("metrics server: %v", err)
					}
				}()
			}

			oracle, err := openai_oracle.New(cfg.LLM, logger)
			if err != nil {
				return err
			}
			searcher, err := research.NewSearcher(cfg.Search)
			if err != nil {
				return err
			}
			fetcher, err := research.NewFetcher(cfg.Fetch)
			if err != nil {
				return err
			}
			var archive research.Archive
			if cfg.Storage.Redis.Enabled() {
				ra, err := store.NewRedisArchive(cfg.Storage.Redis)
				if err != nil {
					return err
				}
				defer ra.Close()
				archive = ra
			}

			engine := research.NewEngine(cfg, logger, tel, bundle.DefaultRegistry(), oracle, searcher, fetcher, archive)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := engine.Run(ctx, research.Request{
				Subject: strings.Join(args, " "),
				Type:    researchType,
				Overrides: research.Overrides{
					MaxToolIterations: maxIterations,
					RunDeadline:       deadline,
				},
			})
			if err != nil {
				var failure research.RunFailure
				if errors.As(err, &failure) {
					for _, gap := range failure.Gaps() {
						fmt.Fprintf(os.Stderr, "gap: %s\n", gap)
					}
				}
				return err
			}

			report, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if outPath != "" {
				return os.WriteFile(outPath, report, 0o644)
			}
			fmt.Println(string(report))
			return nil
		},
	}
	researchCmd.Flags().StringVarP(&researchType, "type", "t", "topic", "research type (see 'scout types')")
	researchCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override max tool iterations (0 = configured default)")
	researchCmd.Flags().DurationVar(&deadline, "deadline", 0, "override run deadline (0 = configured default)")
	researchCmd.Flags().StringVarP(&outPath, "output", "o", "", "write the report to a file instead of stdout")
	researchCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return researchCmd
}
