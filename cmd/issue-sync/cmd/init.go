package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renderinc/issue-sync/internal/schema"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the issue and sync-state collections if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateStore(); err != nil {
			return err
		}
		v, err := cfg.VectorizerKind()
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		mgr := schema.NewManager(st, logger)
		created, err := mgr.EnsureCollection(ctx, cfg.Collection, v, cfg.VectorizerSettings)
		if err != nil {
			return err
		}
		report(cmd, cfg.Collection, created)

		created, err = mgr.EnsureMetadataCollection(ctx, cfg.MetadataCollectionName())
		if err != nil {
			return err
		}
		report(cmd, cfg.MetadataCollectionName(), created)
		return nil
	},
}

func report(cmd *cobra.Command, name string, created bool) {
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", name)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", name)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
