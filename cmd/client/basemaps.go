package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBasemapsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "basemaps",
		Short: "List the basemaps offered by the selected tutorial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			profile, err := cfg.Profile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ch := range profile.Catalog.Choices() {
				mark := " "
				if ch == profile.Start {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, ch)
			}
			fmt.Fprintf(out, "reset: %s\n", profile.Reset)
			return nil
		},
	}
}
