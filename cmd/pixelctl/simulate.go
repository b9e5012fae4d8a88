package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/danmuck/pixelctl/internal/device"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func simulateCmd(root *rootOptions) *cobra.Command {
	var (
		count int
		first uint32
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run simulated panels that answer like firmware",
		Long: `Run one or more simulated panels. With --count above one, panel N
listens on the configured port plus N-1 so every panel gets its own socket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := root.cfg.Device
			host, portText, err := net.SplitHostPort(base.Transport.ListenAddr)
			if err != nil {
				return fmt.Errorf("device.listen_addr: %w", err)
			}
			port, err := strconv.Atoi(portText)
			if err != nil {
				return fmt.Errorf("device.listen_addr port: %w", err)
			}
			if first == 0 {
				first = base.PanelIndex
			}

			panels := make([]*device.Panel, 0, count)
			for i := 0; i < count; i++ {
				cfg := base
				cfg.PanelIndex = first + uint32(i)
				if count > 1 {
					cfg.Transport.ListenAddr = net.JoinHostPort(host, strconv.Itoa(port+i))
					cfg.Hostname = ""
				}
				p, err := device.Start(cfg)
				if err != nil {
					for _, started := range panels {
						_ = started.Close()
					}
					return err
				}
				panels = append(panels, p)
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, p := range panels {
				g.Go(func() error { return p.Run(ctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of panels")
	cmd.Flags().Uint32Var(&first, "first", 0, "panel index of the first panel (defaults to device.panel_index)")
	return cmd
}
