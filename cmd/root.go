// Package cmd wires configuration, the GitHub client, the collector and the
// output sinks behind a single cobra command.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dickeyy/pr-metrics/config"
	"github.com/dickeyy/pr-metrics/db"
	"github.com/dickeyy/pr-metrics/output"
	"github.com/dickeyy/pr-metrics/scraper"
	"github.com/dickeyy/pr-metrics/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	repoFlag   string
	limitFlag  int
	outputFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pr-metrics",
	Short: "Collect pull request review metrics for a GitHub repository",
	Long: `pr-metrics walks the pull requests of one repository, derives review
latency, comment counts, merge outcome, CI status, duplicate-file edits and
won't-fix / superseded resolutions, and writes them to a CSV file.

Examples:
  pr-metrics                                # apache/lucene, 500 PRs, pr_metrics.csv
  pr-metrics --repo octo/cat --limit 50     # smaller sample of another repo
  pr-metrics -O out/metrics.csv -v          # custom output, debug logging`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("repo") {
		cfg.Repo = repoFlag
	}
	if cmd.Flags().Changed("limit") {
		cfg.Limit = limitFlag
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = outputFlag
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	owner, repo, err := cfg.OwnerRepo()
	if err != nil {
		return err
	}

	client, err := services.NewClient(ctx, services.Options{
		Token:      cfg.GitHubToken,
		Owner:      owner,
		Repo:       repo,
		APIURL:     cfg.APIURL,
		GraphQLURL: cfg.GraphQLURL,
	})
	if err != nil {
		return err
	}
	if err := client.Verify(ctx); err != nil {
		return fmt.Errorf("repository %s is not reachable: %w", cfg.Repo, err)
	}

	var store *db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer store.Close()
	}

	log.Info().Str("owner", owner).Str("repo", repo).Int("limit", cfg.Limit).Str("output", cfg.OutputPath).Msg("collecting PR metrics")

	records, err := scraper.New(client, scraper.WithLimit(cfg.Limit)).Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	if err := output.WriteCSVFile(cfg.OutputPath, records); err != nil {
		return err
	}
	log.Info().Str("path", cfg.OutputPath).Int("rows", len(records)).Msg("wrote PR metrics")

	if store != nil {
		if err := store.SaveRecords(ctx, cfg.Repo, records); err != nil {
			return err
		}
	}
	return nil
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before reading the environment")
	rootCmd.Flags().StringVarP(&repoFlag, "repo", "r", "", "Repository as owner/name (default $REPO or apache/lucene)")
	rootCmd.Flags().IntVarP(&limitFlag, "limit", "n", scraper.DefaultLimit, "Stop after this many processed pull requests")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "O", "", "Output CSV path (default $OUTPUT_PATH or pr_metrics.csv)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
