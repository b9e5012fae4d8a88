package main

import (
	"github.com/danmuck/pixelctl/internal/controller"
	"github.com/spf13/cobra"
)

func serveCmd(root *rootOptions) *cobra.Command {
	var (
		httpAddr string
		targets  []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller: HTTP API, fleet registry and config resends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg.Controller
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if len(targets) > 0 {
				cfg.Targets = targets
			}
			c, err := controller.New(cfg)
			if err != nil {
				return err
			}
			return c.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (defaults to controller.http_addr)")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "panel host[:port] (repeatable)")
	return cmd
}
