package main

import (
	"fmt"

	"github.com/danmuck/pixelctl/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate config files",
	}

	var (
		kind   string
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = kind + ".toml"
			}
			if err := config.WriteTemplate(output, kind, force); err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", output).Msg("wrote config template")
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "controller", "config kind: controller|device")
	initCmd.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to <kind>.toml)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Load and validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
