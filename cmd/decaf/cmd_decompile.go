package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhamidi/decaf/config"
	"github.com/dhamidi/decaf/decompiler"
	"github.com/dhamidi/decaf/format"
)

type loader func(cmd *cobra.Command) (*config.Config, error)

func newDecompileCmd(load loader) *cobra.Command {
	var outFormat string

	cmd := &cobra.Command{
		Use:   "decompile <file.class|dir|file.jar>...",
		Short: "Reconstruct every method of the given classes and print the outlines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			enc, err := encoder(outFormat, false)
			if err != nil {
				return err
			}
			res, err := decompiler.Decompile(cmd.Context(), cfg.Options(), args...)
			if err != nil {
				return fmt.Errorf("decompile: %w", err)
			}
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encode %s: %w", outFormat, err)
			}
			if len(res.Failures) > 0 {
				fmt.Fprintf(os.Stderr, "%d method(s) could not be reconstructed\n", len(res.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFormat, "format", "f", "line", "output format (line, json, yaml)")

	return cmd
}

func encoder(name string, nodesOnly bool) (format.Encoder, error) {
	switch name {
	case "line":
		if nodesOnly {
			return format.NewTreeEncoder(os.Stdout), nil
		}
		return format.NewLineEncoder(os.Stdout), nil
	case "json":
		enc := format.NewJSONEncoder(os.Stdout)
		enc.NodesOnly = nodesOnly
		return enc, nil
	case "yaml":
		enc := format.NewYAMLEncoder(os.Stdout)
		enc.NodesOnly = nodesOnly
		return enc, nil
	}
	return nil, fmt.Errorf("unknown format: %s (expected line, json, or yaml)", name)
}
