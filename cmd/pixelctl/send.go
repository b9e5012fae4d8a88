package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/danmuck/pixelctl/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type sendOptions struct {
	targets []string
	wait    time.Duration
}

func sendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message to panels",
	}
	cmd.PersistentFlags().StringSliceVarP(&opts.targets, "target", "t", nil, "panel host[:port] (repeatable; defaults to controller.targets)")
	cmd.PersistentFlags().DurationVarP(&opts.wait, "wait", "w", 0, "print panel replies for this long after sending")

	cmd.AddCommand(
		sendConfigCmd(root, opts),
		sendAudioCmd(root, opts),
		sendInputCmd(root, opts),
		sendRGBCmd(root, opts),
		sendRawCmd(root, opts),
	)
	return cmd
}

func sendConfigCmd(root *rootOptions, opts *sendOptions) *cobra.Command {
	var (
		luminance   uint32
		easing      string
		testFrame   bool
		calibration bool
		phash       uint32
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Send a FirmwareConfig",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *root.cfg.Controller.Firmware
			if cmd.Flags().Changed("luminance") {
				cfg.Luminance = protocol.Uint32(luminance)
			}
			if cmd.Flags().Changed("easing") {
				mode, err := protocol.ParseEasingMode(easing)
				if err != nil {
					return err
				}
				cfg.EasingMode = mode.Ptr()
			}
			if cmd.Flags().Changed("test-frame") {
				cfg.ShowTestFrame = protocol.Bool(testFrame)
			}
			if cmd.Flags().Changed("calibration") {
				cfg.EnableCalibration = protocol.Bool(calibration)
			}
			if cmd.Flags().Changed("phash") {
				cfg.ConfigPhash = protocol.Uint32(phash)
			}
			return send(cmd, root, opts, &protocol.Packet{FirmwareConfig: &cfg})
		},
	}
	cmd.Flags().Uint32VarP(&luminance, "luminance", "l", 255, "luminance 0-255")
	cmd.Flags().StringVarP(&easing, "easing", "e", "LINEAR", "easing mode name")
	cmd.Flags().BoolVar(&testFrame, "test-frame", false, "show the test frame")
	cmd.Flags().BoolVar(&calibration, "calibration", false, "enable calibration")
	cmd.Flags().Uint32Var(&phash, "phash", 0, "config hash to stamp")
	return cmd
}

func sendAudioCmd(root *rootOptions, opts *sendOptions) *cobra.Command {
	var (
		uri     string
		channel uint32
	)
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Send an AudioFrame asking the panel to play a sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, root, opts, &protocol.Packet{AudioFrame: &protocol.AudioFrame{
				URI:     protocol.String(uri),
				Channel: protocol.Uint32(channel),
			}})
		},
	}
	cmd.Flags().StringVarP(&uri, "file", "f", "", "sample uri to play")
	cmd.Flags().Uint32Var(&channel, "channel", 1, "channel to play the sample on")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sendInputCmd(root *rootOptions, opts *sendOptions) *cobra.Command {
	var (
		kind  string
		value int32
	)
	cmd := &cobra.Command{
		Use:   "input",
		Short: "Send an InputEvent",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := protocol.ParseInputType(kind)
			if err != nil {
				return err
			}
			return send(cmd, root, opts, &protocol.Packet{InputEvent: &protocol.InputEvent{
				Type:  t.Ptr(),
				Value: protocol.Int32(value),
			}})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "BUTTON_1", "input type name")
	cmd.Flags().Int32Var(&value, "value", 1, "input value")
	return cmd
}

func sendRGBCmd(root *rootOptions, opts *sendOptions) *cobra.Command {
	var (
		file   string
		fill   string
		easing uint32
	)
	cmd := &cobra.Command{
		Use:   "rgb",
		Short: "Send an RGB frame, split across datagrams when needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := root.cfg.Controller.Layout
			var data []byte
			switch {
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = b
			case fill != "":
				px, err := hex.DecodeString(strings.TrimPrefix(fill, "#"))
				if err != nil || len(px) != frame.BytesPerPixel {
					return fmt.Errorf("--fill wants rrggbb, got %q", fill)
				}
				for i := 0; i < layout.Pixels(); i++ {
					data = append(data, px...)
				}
			default:
				return errors.New("one of --file or --fill is required")
			}
			f := &protocol.RGBFrame{Data: data}
			if cmd.Flags().Changed("easing") {
				f.EasingInterval = protocol.Uint32(easing)
			}
			packets, err := frame.Packets(f, layout, root.cfg.Controller.Limits)
			if err != nil {
				return err
			}
			return send(cmd, root, opts, packets...)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "raw rgb bytes, 3 per pixel")
	cmd.Flags().StringVar(&fill, "fill", "", "fill every pixel with rrggbb")
	cmd.Flags().Uint32Var(&easing, "easing", 0, "easing interval in ms")
	return cmd
}

func sendRawCmd(root *rootOptions, opts *sendOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <hex>",
		Short: "Send hex bytes as a datagram without encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return err
			}
			conn, hosts, err := openSender(root, opts)
			if err != nil {
				return err
			}
			defer conn.Close()
			await := watchReplies(conn, opts.wait)
			for _, host := range hosts {
				if err := conn.Send(cmd.Context(), host, payload); err != nil {
					return err
				}
				log.Info().Str("target", host).Int("bytes", len(payload)).Msg("sent raw datagram")
			}
			return await(cmd)
		},
	}
}

func openSender(root *rootOptions, opts *sendOptions) (*transport.Conn[*protocol.FirmwarePacket], []string, error) {
	hosts := opts.targets
	if len(hosts) == 0 {
		hosts = root.cfg.Controller.Targets
	}
	if len(hosts) == 0 {
		return nil, nil, errors.New("no targets: pass --target or set controller.targets")
	}
	tc := root.cfg.Controller.Transport
	tc.ListenAddr = ":0"
	conn, err := transport.ListenFirmware(tc)
	if err != nil {
		return nil, nil, err
	}
	return conn, hosts, nil
}

func send(cmd *cobra.Command, root *rootOptions, opts *sendOptions, packets ...*protocol.Packet) error {
	conn, hosts, err := openSender(root, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	await := watchReplies(conn, opts.wait)
	for _, host := range hosts {
		for _, p := range packets {
			if err := conn.SendPacket(cmd.Context(), host, p); err != nil {
				return err
			}
		}
		log.Info().Str("target", host).Int("packets", len(packets)).Msg("sent")
	}
	return await(cmd)
}

// watchReplies starts collecting FirmwarePackets before anything is sent and
// returns a func that prints them as JSON lines until wait elapses.
func watchReplies(conn *transport.Conn[*protocol.FirmwarePacket], wait time.Duration) func(cmd *cobra.Command) error {
	if wait <= 0 {
		return func(*cobra.Command) error { return nil }
	}
	replies := make(chan replyLine, 64)
	remove := conn.AddListener(func(in transport.Inbound[*protocol.FirmwarePacket]) {
		select {
		case replies <- replyLine{From: in.From.String(), At: in.At, Message: in.Message}:
		default:
		}
	})
	return func(cmd *cobra.Command) error {
		defer remove()
		enc := json.NewEncoder(cmd.OutOrStdout())
		timer := time.NewTimer(wait)
		defer timer.Stop()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case <-timer.C:
				return nil
			case r := <-replies:
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
		}
	}
}

type replyLine struct {
	From    string                   `json:"from"`
	At      time.Time                `json:"at"`
	Message *protocol.FirmwarePacket `json:"message"`
}
