package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renderinc/issue-sync/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger

	flags struct {
		repo            string
		store           string
		weaviateURL     string
		dataDir         string
		collection      string
		batchSize       int
		state           string
		includeComments bool
		vectorizer      string
		embedder        string
	}
)

var rootCmd = &cobra.Command{
	Use:   "issue-sync",
	Short: "Sync GitHub issues into a vector database",
	Long: `issue-sync incrementally copies the issues of a GitHub repository, with their
comments, into a vector database collection. Each run only fetches issues updated
since the last successful run.

Settings come from an optional YAML file, a .env file and INPUT_* environment
variables (the GitHub Action inputs); flags override all of them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.repo, "repo", "", "repository as owner/name")
	pf.StringVar(&flags.store, "store", "", "store backend: weaviate, sqlite or memory")
	pf.StringVar(&flags.weaviateURL, "weaviate-url", "", "Weaviate URL")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory for the sqlite store")
	pf.StringVar(&flags.collection, "collection", "", "issue collection name")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "objects per upsert (max 100)")
	pf.StringVar(&flags.state, "state", "", "issue state: all, open or closed")
	pf.BoolVar(&flags.includeComments, "include-comments", true, "include issue comments")
	pf.StringVar(&flags.vectorizer, "vectorizer", "", "vectorizer: transformers, ollama, openai, cohere or huggingface")
	pf.StringVar(&flags.embedder, "embedder", "", "local embedder for the sqlite store: ollama or lmstudio")
}

// applyFlags overrides loaded settings with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if changed("repo") {
		owner, name, ok := strings.Cut(flags.repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("%w: --repo must be owner/name, got %q", config.ErrInvalidConfig, flags.repo)
		}
		c.RepoOwner, c.RepoName = owner, name
	}
	if changed("store") {
		c.Store = flags.store
	}
	if changed("weaviate-url") {
		c.WeaviateURL = flags.weaviateURL
	}
	if changed("data-dir") {
		c.DataDir = flags.dataDir
	}
	if changed("collection") {
		c.Collection = flags.collection
	}
	if changed("batch-size") {
		c.BatchSize = flags.batchSize
	}
	if changed("state") {
		c.State = flags.state
	}
	if changed("include-comments") {
		c.IncludeComments = flags.includeComments
	}
	if changed("vectorizer") {
		c.Vectorizer = flags.vectorizer
	}
	if changed("embedder") {
		c.Embedder = flags.embedder
	}
	return nil
}
