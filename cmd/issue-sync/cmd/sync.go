package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/issue-sync/internal/config"
	"github.com/renderinc/issue-sync/internal/github"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/sync"
)

var (
	fullSync bool
	dryRun   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync issues updated since the last run",
	Long: `Fetch the repository's issues updated since the last successful run and upsert
them into the issue collection. Pull requests are skipped. The last processed time
only advances after every batch was stored.

Examples:
  issue-sync sync --repo octo/repo --weaviate-url http://localhost:8080
  issue-sync sync --store sqlite --embedder ollama --full
  issue-sync sync --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			cfg.Store = config.StoreMemory
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		v, err := cfg.VectorizerKind()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		clientCfg := github.DefaultClientConfig()
		clientCfg.BaseURL = cfg.GitHubAPIURL
		clientCfg.Token = cfg.GitHubToken
		clientCfg.MaxRetries = cfg.MaxRetries
		clientCfg.RateLimit = cfg.RateLimit
		clientCfg.Logger = logger

		worker := sync.NewWorker(
			github.NewClient(clientCfg),
			func(ctx context.Context) (store.Store, error) { return openStore(ctx, cfg) },
			sync.Options{
				Owner:              cfg.RepoOwner,
				Name:               cfg.RepoName,
				Collection:         cfg.Collection,
				MetadataCollection: cfg.MetadataCollectionName(),
				Vectorizer:         v,
				VectorizerSettings: cfg.VectorizerSettings,
				BatchSize:          cfg.EffectiveBatchSize(),
				State:              cfg.State,
				IncludeComments:    cfg.IncludeComments,
				Full:               fullSync,
			},
			logger,
		)

		stats, err := worker.Sync(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Synced %d issues from %s in %v\n", stats.Synced, cfg.RepoKey(), stats.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "  fetched:          %d\n", stats.Fetched)
		fmt.Fprintf(out, "  pull requests:    %d (excluded)\n", stats.PullRequests)
		fmt.Fprintf(out, "  malformed:        %d (skipped)\n", stats.Skipped)
		fmt.Fprintf(out, "  comment failures: %d\n", stats.CommentFailures)
		fmt.Fprintf(out, "  batches:          %d\n", stats.Batches)
		fmt.Fprintf(out, "  watermark:        %s\n", stats.Watermark.Format(time.RFC3339))
		if dryRun {
			fmt.Fprintln(out, "(dry run: nothing was written)")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "ignore the last processed time and walk all issues")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run against an in-memory store")
	rootCmd.AddCommand(syncCmd)
}
