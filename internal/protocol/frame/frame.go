// Package frame fits RGB frames into single datagrams.
//
// A frame too large for one datagram travels as rgb_frame_part1 and
// rgb_frame_part2. Panels 1..SplitPanel read part1, the rest read part2,
// each part indexed from its own first pixel. Firmware treats a Packet as a
// oneof, so the parts go out as two datagrams; the codec also accepts both
// parts inside one Packet.
package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/pixelctl/internal/protocol"
)

// BytesPerPixel is the RGB stride of RGBFrame.data.
const BytesPerPixel = 3

var (
	ErrFrameTooLarge  = errors.New("frame: packet exceeds datagram limit")
	ErrPixelAlignment = errors.New("frame: rgb data is not a whole number of pixels")
	ErrInvalidLayout  = errors.New("frame: invalid layout")
)

// Limits constrains the encoded size of one datagram.
type Limits struct {
	MaxDatagramBytes int
}

// DefaultLimits is the Ethernet MTU minus IPv4 and UDP headers.
func DefaultLimits() Limits {
	return Limits{MaxDatagramBytes: 1472}
}

// Layout describes how pixels are spread across a strip of panels.
type Layout struct {
	Panels         int `toml:"panels" json:"panels"`
	PixelsPerPanel int `toml:"pixels_per_panel" json:"pixels_per_panel"`
	SplitPanel     int `toml:"split_panel" json:"split_panel"`
}

func DefaultLayout() Layout {
	return Layout{Panels: 10, PixelsPerPanel: 64, SplitPanel: 5}
}

func (l Layout) Validate() error {
	if l.Panels <= 0 || l.PixelsPerPanel <= 0 {
		return fmt.Errorf("%w: panels=%d pixels_per_panel=%d", ErrInvalidLayout, l.Panels, l.PixelsPerPanel)
	}
	if l.SplitPanel <= 0 || l.SplitPanel >= l.Panels {
		return fmt.Errorf("%w: split_panel=%d must be in [1,%d)", ErrInvalidLayout, l.SplitPanel, l.Panels)
	}
	return nil
}

// Pixels is the pixel count of the whole strip.
func (l Layout) Pixels() int {
	return l.Panels * l.PixelsPerPanel
}

// SplitPixel is the first pixel carried by part2.
func (l Layout) SplitPixel() int {
	return l.SplitPanel * l.PixelsPerPanel
}

// Split cuts f after pixel k. Both parts carry the easing interval of f. A
// k beyond the end of f leaves part2 empty.
func Split(f *protocol.RGBFrame, k int) (*protocol.RGBFrame, *protocol.RGBFrame, error) {
	if len(f.Data)%BytesPerPixel != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrPixelAlignment, len(f.Data))
	}
	cut := min(max(k, 0)*BytesPerPixel, len(f.Data))
	part1 := &protocol.RGBFrame{Data: clonePixels(f.Data[:cut]), EasingInterval: cloneUint32(f.EasingInterval)}
	part2 := &protocol.RGBFrame{Data: clonePixels(f.Data[cut:]), EasingInterval: cloneUint32(f.EasingInterval)}
	return part1, part2, nil
}

// Join concatenates part1 and part2. The easing interval of part1 wins when
// both carry one. Either part may be nil.
func Join(part1, part2 *protocol.RGBFrame) *protocol.RGBFrame {
	out := &protocol.RGBFrame{}
	for _, part := range []*protocol.RGBFrame{part1, part2} {
		if part == nil {
			continue
		}
		out.Data = append(out.Data, part.Data...)
		if out.EasingInterval == nil {
			out.EasingInterval = cloneUint32(part.EasingInterval)
		}
	}
	return out
}

// Packets wraps f for sending: one Packet with rgb_frame when it fits a
// datagram, otherwise one Packet per part cut at the layout's split pixel.
func Packets(f *protocol.RGBFrame, layout Layout, limits Limits) ([]*protocol.Packet, error) {
	if len(f.Data)%BytesPerPixel != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPixelAlignment, len(f.Data))
	}
	single := &protocol.Packet{RGBFrame: f}
	if err := limits.check(single); err == nil {
		return []*protocol.Packet{single}, nil
	}

	part1, part2, err := Split(f, layout.SplitPixel())
	if err != nil {
		return nil, err
	}
	out := []*protocol.Packet{{RGBFramePart1: part1}, {RGBFramePart2: part2}}
	for _, p := range out {
		if err := limits.check(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Packed returns a single Packet holding both parts of f cut after pixel k.
func Packed(f *protocol.RGBFrame, k int) (*protocol.Packet, error) {
	part1, part2, err := Split(f, k)
	if err != nil {
		return nil, err
	}
	return &protocol.Packet{RGBFramePart1: part1, RGBFramePart2: part2}, nil
}

func (l Limits) check(p *protocol.Packet) error {
	b, err := protocol.Marshal(p)
	if err != nil {
		return err
	}
	if len(b) > l.MaxDatagramBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(b), l.MaxDatagramBytes)
	}
	return nil
}

// Reassemble returns the logical RGB frame carried by p, whether it was sent
// whole or split. It reports false when p carries no RGB data.
func Reassemble(p *protocol.Packet) (*protocol.RGBFrame, bool) {
	switch {
	case p == nil:
		return nil, false
	case p.RGBFrame != nil:
		return Join(p.RGBFrame, nil), true
	case p.RGBFramePart1 != nil || p.RGBFramePart2 != nil:
		return Join(p.RGBFramePart1, p.RGBFramePart2), true
	default:
		return nil, false
	}
}

// Assembler joins parts that arrive in separate datagrams. A whole
// rgb_frame passes straight through and discards any pending part.
type Assembler struct {
	part1, part2 *protocol.RGBFrame
}

// Add feeds one Packet and returns a frame once both parts have been seen,
// in either order. A repeated part replaces the pending one.
func (a *Assembler) Add(p *protocol.Packet) (*protocol.RGBFrame, bool) {
	if p == nil {
		return nil, false
	}
	if p.RGBFrame != nil {
		a.part1, a.part2 = nil, nil
		return Join(p.RGBFrame, nil), true
	}
	if p.RGBFramePart1 != nil {
		a.part1 = p.RGBFramePart1
	}
	if p.RGBFramePart2 != nil {
		a.part2 = p.RGBFramePart2
	}
	if a.part1 == nil || a.part2 == nil {
		return nil, false
	}
	out := Join(a.part1, a.part2)
	a.part1, a.part2 = nil, nil
	return out, true
}

// PanelPixels returns the RGB bytes addressed to a 1-based panel index. A
// split packet is read the way firmware reads it: the panel picks its part
// and indexes from that part's first pixel. Missing pixels are truncated.
func (l Layout) PanelPixels(p *protocol.Packet, panel int) ([]byte, bool) {
	if p == nil || panel < 1 || panel > l.Panels {
		return nil, false
	}
	var (
		data   []byte
		offset int
	)
	switch {
	case p.RGBFrame != nil:
		data, offset = p.RGBFrame.Data, (panel-1)*l.PixelsPerPanel
	case panel <= l.SplitPanel && p.RGBFramePart1 != nil:
		data, offset = p.RGBFramePart1.Data, (panel-1)*l.PixelsPerPanel
	case panel > l.SplitPanel && p.RGBFramePart2 != nil:
		data, offset = p.RGBFramePart2.Data, (panel-1-l.SplitPanel)*l.PixelsPerPanel
	default:
		return nil, false
	}
	start := min(offset*BytesPerPixel, len(data))
	end := min(start+l.PixelsPerPanel*BytesPerPixel, len(data))
	return data[start:end], true
}

func clonePixels(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneUint32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
