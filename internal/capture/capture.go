// Package capture reads recorded panel traffic from pcap files and replays
// it through the packet codec.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog/log"
)

var ErrUnknownFormat = errors.New("capture: not a pcap or pcapng file")

// Direction says which side of the panel protocol sent a datagram.
type Direction string

const (
	ToDevice   Direction = "to_device"
	FromDevice Direction = "from_device"
)

// Datagram is one UDP payload lifted from a capture.
type Datagram struct {
	At      time.Time    `json:"at"`
	Src     *net.UDPAddr `json:"src"`
	Dst     *net.UDPAddr `json:"dst"`
	Payload []byte       `json:"payload"`
}

// Decoded pairs a datagram with the message it carries. Exactly one of
// Packet and Firmware is set unless Err is.
type Decoded struct {
	Datagram
	Direction Direction                `json:"direction"`
	Packet    *protocol.Packet         `json:"packet,omitempty"`
	Firmware  *protocol.FirmwarePacket `json:"firmware,omitempty"`
	Err       error                    `json:"-"`
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ReadFile returns every UDP datagram in path whose source or destination
// port is port.
func ReadFile(path string, port int) ([]Datagram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	defer f.Close()
	out, err := Read(f, port)
	if err != nil {
		return nil, fmt.Errorf("capture: %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("port", port).Int("datagrams", len(out)).Msg("capture read")
	return out, nil
}

// Read is ReadFile over an open pcap or pcapng stream.
func Read(r io.Reader, port int) ([]Datagram, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, ErrUnknownFormat
	}

	var src packetReader
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	var out []Datagram
	for {
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		pkt := gopacket.NewPacket(data, src.LinkType(), gopacket.NoCopy)
		d, ok := datagram(pkt, port)
		if !ok {
			continue
		}
		d.At = ci.Timestamp
		out = append(out, d)
	}
}

func datagram(pkt gopacket.Packet, port int) (Datagram, bool) {
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return Datagram{}, false
	}
	if int(udp.SrcPort) != port && int(udp.DstPort) != port {
		return Datagram{}, false
	}
	var srcIP, dstIP net.IP
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		srcIP, dstIP = ip.SrcIP, ip.DstIP
	case *layers.IPv6:
		srcIP, dstIP = ip.SrcIP, ip.DstIP
	}
	return Datagram{
		Src:     &net.UDPAddr{IP: srcIP, Port: int(udp.SrcPort)},
		Dst:     &net.UDPAddr{IP: dstIP, Port: int(udp.DstPort)},
		Payload: append([]byte(nil), udp.Payload...),
	}, true
}

// Decode classifies each datagram by port. Traffic to port is a Packet,
// traffic from port is a FirmwarePacket.
func Decode(ds []Datagram, port int) []Decoded {
	codec := protocol.NewCodec(nil)
	out := make([]Decoded, 0, len(ds))
	for _, d := range ds {
		dec := Decoded{Datagram: d}
		if d.Dst != nil && d.Dst.Port == port {
			dec.Direction = ToDevice
			dec.Packet, dec.Err = codec.DecodePacket(d.Payload)
		} else {
			dec.Direction = FromDevice
			dec.Firmware, dec.Err = codec.DecodeFirmwarePacket(d.Payload)
		}
		if dec.Err != nil {
			log.Debug().Err(dec.Err).Time("at", d.At).Str("direction", string(dec.Direction)).Msg("capture decode failed")
		}
		out = append(out, dec)
	}
	return out
}

// Sender is satisfied by transport.Conn.
type Sender interface {
	Send(ctx context.Context, host string, payload []byte) error
}

// Replay re-sends the controller side of a capture to host, keeping the
// recorded spacing divided by speed. A speed of zero or less sends as fast as
// possible.
func Replay(ctx context.Context, s Sender, ds []Datagram, port int, host string, speed float64) (int, error) {
	sent := 0
	var prev time.Time
	for _, d := range ds {
		if d.Dst == nil || d.Dst.Port != port {
			continue
		}
		if speed > 0 && !prev.IsZero() {
			if gap := d.At.Sub(prev); gap > 0 {
				timer := time.NewTimer(time.Duration(float64(gap) / speed))
				select {
				case <-ctx.Done():
					timer.Stop()
					return sent, ctx.Err()
				case <-timer.C:
				}
			}
		}
		prev = d.At
		if err := s.Send(ctx, host, d.Payload); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
