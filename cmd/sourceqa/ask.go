package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/schema"
)

func newAskCmd(state *appState) *cobra.Command {
	var (
		loadPaths []string
		k         int
		showDocs  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the stored documents and list its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := state.cfg, state.logger
			if k > 0 {
				cfg.Chain.K = k
			}
			if showDocs {
				cfg.Chain.ReturnSourceDocuments = true
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

			question := strings.Join(args, " ")
			out, err := chains.Call(ctx, qa, map[string]any{qa.InputKeys()[0]: question})
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&loadPaths, "load", nil, "files or directories to ingest before asking")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of documents to retrieve (overrides config)")
	cmd.Flags().BoolVar(&showDocs, "show-docs", false, "print the retrieved source documents")
	return cmd
}

func printAnswer(w io.Writer, out map[string]any) {
	answer, _ := out[chains.AnswerKey].(string)
	sources, _ := out[chains.SourcesKey].(string)

	fmt.Fprintln(w, answer)
	if list := chains.ParseSources(sources); len(list) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range list {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}

	docs, _ := out[chains.SourceDocumentsKey].([]schema.Document)
	for i, d := range docs {
		fmt.Fprintf(w, "\n[%d] %s\n%s\n", i+1, d.Source(), d.PageContent)
	}
}
