package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "inspect <hex>",
		Short: "Decode hex bytes field by field, including unknown fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(strings.Join(args, ""))
			b, err := hex.DecodeString(raw)
			if err != nil {
				return fmt.Errorf("hex: %w", err)
			}
			sem, err := protocol.ParseSemantic(message, b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sem)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "Packet", "message name (Packet, FirmwarePacket, FirmwareConfig, ...)")
	return cmd
}
