package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/watermark"
)

// textIndexed is implemented by stores that keep a full-text index.
type textIndexed interface {
	IndexCount(ctx context.Context, collection string) (uint64, error)
}

// vectorCounted is implemented by stores that compute and keep vectors themselves.
type vectorCounted interface {
	Collection(ctx context.Context, name string) (store.Collection, error)
	VectorCount(ctx context.Context, collection, vector string) (int, error)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last processed time and document count",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateStore(); err != nil {
			return err
		}
		if err := cfg.ValidateRepository(); err != nil {
			return err
		}

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Repository:     %s\n", cfg.RepoKey())

		ts, ok, err := watermark.New(st, cfg.MetadataCollectionName(), logger).Get(ctx, cfg.RepoKey())
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(out, "Last processed: %s\n", ts.Format(time.RFC3339))
		} else {
			fmt.Fprintln(out, "Last processed: never")
		}

		exists, err := st.CollectionExists(ctx, cfg.Collection)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Fprintf(out, "Collection:     %s (not created)\n", cfg.Collection)
			return nil
		}
		n, err := st.Count(ctx, cfg.Collection)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Collection:     %s (%d documents)\n", cfg.Collection, n)

		if idx, ok := st.(textIndexed); ok {
			indexed, err := idx.IndexCount(ctx, cfg.Collection)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Text index:     %d documents\n", indexed)
		}
		if vc, ok := st.(vectorCounted); ok {
			c, err := vc.Collection(ctx, cfg.Collection)
			if err != nil {
				return err
			}
			for _, v := range c.Vectors {
				n, err := vc.VectorCount(ctx, cfg.Collection, v.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Vector %-12s %d\n", v.Name+":", n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
