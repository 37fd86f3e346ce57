package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sevigo/sourceqa/vectorstores"
)

var errNoCollections = errors.New("the configured vector store does not manage collections")

func newCollectionsCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List or delete vector store collections",
	}

	withManager := func(run func(cmd *cobra.Command, m vectorstores.CollectionManager, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := newVectorStore(state.cfg, nil, state.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			m, ok := store.(vectorstores.CollectionManager)
			if !ok {
				return errNoCollections
			}
			return run(cmd, m, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List collections",
			Args:  cobra.NoArgs,
			RunE: withManager(func(cmd *cobra.Command, m vectorstores.CollectionManager, _ []string) error {
				names, err := m.ListCollections(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a collection and all its points",
			Args:  cobra.ExactArgs(1),
			RunE: withManager(func(cmd *cobra.Command, m vectorstores.CollectionManager, args []string) error {
				if err := m.DeleteCollection(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}
