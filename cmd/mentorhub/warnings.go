package main

import (
	"github.com/spf13/cobra"

	"mentorhub/internal/store"
)

func newWarningsCmd(c *cli) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "List sessions excluded from views as malformed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st *store.Store) error {
				if clearAll {
					removed, err := st.ClearWarnings(cmd.Context())
					if err != nil {
						return err
					}
					c.success("Cleared %d integrity warning(s)", removed)
					return nil
				}
				records, err := st.ListWarnings(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderWarnings(records)
			})
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget every recorded warning")
	return cmd
}
