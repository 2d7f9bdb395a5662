package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aurafx-engine/config"
)

func newSampleConfigCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "sample-config",
		Short: "Write a sample config file (JSON, or YAML for .yaml/.yml)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateSampleConfig(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", config.DefaultConfigFile, "output path")

	return cmd
}
