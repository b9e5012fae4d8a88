package main

import (
	"fmt"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func listenCmd(root *rootOptions) *cobra.Command {
	var (
		addr     string
		firmware bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print every datagram received on a port, decoded",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := root.cfg.Device.Transport
			tc.Role = "listen"
			if addr != "" {
				tc.ListenAddr = addr
			}
			message := "Packet"
			if firmware {
				message = "FirmwarePacket"
			}
			out := cmd.OutOrStdout()
			conn, err := transport.Listen[[]byte](tc, func(b []byte) ([]byte, error) {
				return append([]byte(nil), b...), nil
			})
			if err != nil {
				return err
			}
			defer conn.Close()
			conn.AddListener(func(in transport.Inbound[[]byte]) {
				sem, err := protocol.ParseSemantic(message, in.Message)
				if err != nil {
					log.Warn().Str("from", in.From.String()).Err(err).Msg("undecodable datagram")
					return
				}
				fmt.Fprintf(out, "%s %s %s\n", in.At.Format("15:04:05.000"), in.From, sem)
			})
			log.Info().Str("addr", conn.LocalAddr().String()).Str("message", message).Msg("listening")
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to device.listen_addr)")
	cmd.Flags().BoolVar(&firmware, "firmware", false, "decode as FirmwarePacket instead of Packet")
	return cmd
}
