package capture

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

const devicePort = 2342

var (
	controllerIP = net.IPv4(10, 0, 0, 1)
	panelIP      = net.IPv4(10, 0, 0, 7)
	start        = time.Unix(1700000000, 0).UTC()
)

type frame struct {
	at       time.Time
	src, dst uint16
	payload  []byte
}

func writePcap(t *testing.T, frames []frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, f := range frames {
		srcIP, dstIP := controllerIP, panelIP
		if f.src == devicePort {
			srcIP, dstIP = panelIP, controllerIP
		}
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.src), DstPort: layers.UDPPort(f.dst)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		out := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(out, opts, eth, ip, udp, gopacket.Payload(f.payload)))
		data := out.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     f.at,
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	return buf.Bytes()
}

func mustMarshal(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	b, err := protocol.Marshal(msg)
	require.NoError(t, err)
	return b
}

func sampleCapture(t *testing.T) ([]byte, *protocol.Packet, *protocol.FirmwarePacket) {
	pkt := &protocol.Packet{InputEvent: &protocol.InputEvent{Type: protocol.InputButton2.Ptr(), Value: protocol.Int32(1)}}
	fw := &protocol.FirmwarePacket{FirmwareInfo: &protocol.FirmwareInfo{
		Hostname:   protocol.String("blinkenleds-7"),
		PanelIndex: protocol.Uint32(7),
	}}
	raw := writePcap(t, []frame{
		{at: start, src: 40000, dst: devicePort, payload: mustMarshal(t, pkt)},
		{at: start.Add(10 * time.Millisecond), src: 40000, dst: 9999, payload: []byte{1, 2, 3}},
		{at: start.Add(20 * time.Millisecond), src: devicePort, dst: 40000, payload: mustMarshal(t, fw)},
		{at: start.Add(30 * time.Millisecond), src: 40000, dst: devicePort, payload: []byte{0x0a, 0x7f}},
	})
	return raw, pkt, fw
}

func TestReadKeepsDevicePortTraffic(t *testing.T) {
	testlog.Start(t)
	raw, _, _ := sampleCapture(t)
	path := filepath.Join(t.TempDir(), "panel.pcap")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	ds, err := ReadFile(path, devicePort)
	require.NoError(t, err)
	require.Len(t, ds, 3)
	require.True(t, ds[0].At.Equal(start))
	require.Equal(t, devicePort, ds[0].Dst.Port)
	require.True(t, ds[0].Src.IP.Equal(controllerIP))
	require.Equal(t, devicePort, ds[1].Src.Port)
}

func TestDecodeClassifiesByDirection(t *testing.T) {
	testlog.Start(t)
	raw, pkt, fw := sampleCapture(t)
	ds, err := Read(bytes.NewReader(raw), devicePort)
	require.NoError(t, err)

	dec := Decode(ds, devicePort)
	require.Len(t, dec, 3)

	require.Equal(t, ToDevice, dec[0].Direction)
	require.NoError(t, dec[0].Err)
	if diff := cmp.Diff(pkt, dec[0].Packet); diff != "" {
		t.Fatalf("packet mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, FromDevice, dec[1].Direction)
	require.NoError(t, dec[1].Err)
	if diff := cmp.Diff(fw, dec[1].Firmware); diff != "" {
		t.Fatalf("firmware packet mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, ToDevice, dec[2].Direction)
	require.Error(t, dec[2].Err)
}

func TestReadRejectsGarbage(t *testing.T) {
	testlog.Start(t)
	_, err := Read(bytes.NewReader([]byte("not a capture file")), devicePort)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

type recorder struct {
	hosts    []string
	payloads [][]byte
}

func (r *recorder) Send(_ context.Context, host string, payload []byte) error {
	r.hosts = append(r.hosts, host)
	r.payloads = append(r.payloads, append([]byte(nil), payload...))
	return nil
}

func TestReplaySendsControllerSide(t *testing.T) {
	testlog.Start(t)
	raw, pkt, _ := sampleCapture(t)
	ds, err := Read(bytes.NewReader(raw), devicePort)
	require.NoError(t, err)

	var r recorder
	n, err := Replay(context.Background(), &r, ds, devicePort, "127.0.0.1:2342", 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"127.0.0.1:2342", "127.0.0.1:2342"}, r.hosts)
	require.Equal(t, mustMarshal(t, pkt), r.payloads[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = Replay(ctx, &r, ds, devicePort, "127.0.0.1:2342", 0.001)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, n)
}
