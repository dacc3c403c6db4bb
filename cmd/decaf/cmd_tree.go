package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/decaf/decompiler"
)

func newTreeCmd(load loader) *cobra.Command {
	var outFormat string

	cmd := &cobra.Command{
		Use:   "tree <file.class|dir|file.jar>...",
		Short: "Print the class tree: nested, local, anonymous and lambda classes below their roots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			enc, err := encoder(outFormat, true)
			if err != nil {
				return err
			}
			res, err := decompiler.Decompile(cmd.Context(), cfg.Options(), args...)
			if err != nil {
				return fmt.Errorf("tree: %w", err)
			}
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&outFormat, "format", "f", "line", "output format (line, json, yaml)")

	return cmd
}
