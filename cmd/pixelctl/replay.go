package main

import (
	"encoding/json"

	"github.com/danmuck/pixelctl/internal/capture"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func replayCmd(root *rootOptions) *cobra.Command {
	var (
		port   int
		target string
		speed  float64
		dump   bool
	)
	cmd := &cobra.Command{
		Use:   "replay <file.pcap>",
		Short: "Decode or re-send panel traffic from a pcap capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := capture.ReadFile(args[0], port)
			if err != nil {
				return err
			}
			if dump || target == "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, d := range capture.Decode(ds, port) {
					line := struct {
						capture.Decoded
						Error string `json:"error,omitempty"`
					}{Decoded: d}
					if d.Err != nil {
						line.Error = d.Err.Error()
					}
					if err := enc.Encode(line); err != nil {
						return err
					}
				}
			}
			if target == "" {
				return nil
			}

			tc := root.cfg.Controller.Transport
			tc.ListenAddr = ":0"
			conn, err := transport.ListenFirmware(tc)
			if err != nil {
				return err
			}
			defer conn.Close()
			sent, err := capture.Replay(cmd.Context(), conn, ds, port, target, speed)
			log.Info().Str("target", target).Int("sent", sent).Int("captured", len(ds)).Msg("replay done")
			if err != nil && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", transport.DefaultPort, "panel UDP port in the capture")
	cmd.Flags().StringVarP(&target, "target", "t", "", "re-send controller traffic to this panel")
	cmd.Flags().Float64Var(&speed, "speed", 1, "replay speed factor; 0 sends without delay")
	cmd.Flags().BoolVar(&dump, "dump", false, "print decoded datagrams even when replaying")
	return cmd
}
