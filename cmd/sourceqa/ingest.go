package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(state *appState) *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "ingest <path-or-repo-url>...",
		Short: "Load, split and store files, directories or git repositories in the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := state.cfg, state.logger
			if branch != "" {
				cfg.Ingest.GitBranch = branch
			}

			embedder, err := newEmbedder(ctx, cfg, logger)
			if err != nil {
				return err
			}
			store, closeStore, err := newVectorStore(cfg, embedder, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if cfg.VectorStore.Provider == "memory" {
				logger.WarnContext(ctx, "The memory vector store does not persist; use ask --load or serve --load instead")
			}

			n, err := ingest(ctx, store, args, cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "branch to clone for repository URLs")
	return cmd
}
