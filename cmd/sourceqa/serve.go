package main

import (
	"github.com/spf13/cobra"

	"github.com/sevigo/sourceqa/server"
)

func newServeCmd(state *appState) *cobra.Command {
	var (
		addr      string
		loadPaths []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question answering API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger := state.cfg, state.logger
			if addr != "" {
				cfg.Server.Addr = addr
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

			if len(loadPaths) > 0 {
				if _, err := ingest(ctx, store, loadPaths, cfg, logger); err != nil {
					return err
				}
			}

			llm, err := newLLM(ctx, cfg, logger)
			if err != nil {
				return err
			}
			qa, err := newQAChain(llm, store, cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(qa, store,
				server.WithLogger(logger),
				server.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
				server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
				server.WithRequestTimeout(cfg.Server.WriteTimeout),
			)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringSliceVar(&loadPaths, "load", nil, "files or directories to ingest before serving")
	return cmd
}
