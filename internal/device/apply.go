package device

import (
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// apply updates state from every field present in pkt.
func (p *Panel) apply(pkt *protocol.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c := pkt.FirmwareConfig; c != nil {
		p.applyConfig(c)
	}
	if f := pkt.Frame; f != nil {
		p.applyIndexed(f.Data, f.Palette, 3, f.EasingInterval)
	}
	if f := pkt.WFrame; f != nil {
		p.applyIndexed(f.Data, f.Palette, 4, f.EasingInterval)
	}
	if pixels, ok := p.cfg.Layout.PanelPixels(pkt, int(p.cfg.PanelIndex)); ok {
		p.applyRGB(pixels)
		if ei := p.rgbEasing(pkt); ei != nil {
			p.state.EasingInterval = *ei
		}
	}
	if a := pkt.AudioFrame; a != nil {
		p.state.LastAudio = a
	}
	if e := pkt.InputEvent; e != nil {
		p.state.LastInput = e
	}
}

func (p *Panel) applyConfig(c *protocol.FirmwareConfig) {
	if c.Luminance != nil {
		p.state.Luminance = *c.Luminance
	}
	if c.EasingMode != nil {
		p.state.EasingMode = *c.EasingMode
	}
	if c.ShowTestFrame != nil {
		p.state.ShowTestFrame = *c.ShowTestFrame
	}
	if c.EnableCalibration != nil {
		p.state.EnableCalibration = *c.EnableCalibration
	}
	if c.ConfigPhash != nil {
		p.state.ConfigPhash = *c.ConfigPhash
	}
	log.Debug().
		Str("hostname", p.cfg.hostname()).
		Uint32("luminance", p.state.Luminance).
		Stringer("easing_mode", p.state.EasingMode).
		Uint32("config_phash", p.state.ConfigPhash).
		Msg("panel config applied")
}

// applyIndexed reads this panel's slice of data through palette. Indices past
// the palette, or pixels past the data, render black.
func (p *Panel) applyIndexed(data, palette []byte, stride int, easing *uint32) {
	ppp := p.cfg.Layout.PixelsPerPanel
	first := ppp * (int(p.cfg.PanelIndex) - 1)
	entries := len(palette) / stride
	for i := 0; i < ppp; i++ {
		var c Color
		if at := first + i; at < len(data) {
			if idx := int(data[at]); idx < entries {
				e := palette[idx*stride : idx*stride+stride]
				c = Color{R: e[0], G: e[1], B: e[2]}
				if stride == 4 {
					c.W = e[3]
				}
			}
		}
		p.state.Pixels[i] = c
	}
	if easing != nil {
		p.state.EasingInterval = *easing
	}
	p.state.Frames++
	p.framesSince++
}

func (p *Panel) applyRGB(pixels []byte) {
	for i := range p.state.Pixels {
		var c Color
		if at := i * 3; at+2 < len(pixels) {
			c = Color{R: pixels[at], G: pixels[at+1], B: pixels[at+2]}
		}
		p.state.Pixels[i] = c
	}
	p.state.Frames++
	p.framesSince++
}

func (p *Panel) rgbEasing(pkt *protocol.Packet) *uint32 {
	switch {
	case pkt.RGBFrame != nil:
		return pkt.RGBFrame.EasingInterval
	case int(p.cfg.PanelIndex) <= p.cfg.Layout.SplitPanel && pkt.RGBFramePart1 != nil:
		return pkt.RGBFramePart1.EasingInterval
	case int(p.cfg.PanelIndex) > p.cfg.Layout.SplitPanel && pkt.RGBFramePart2 != nil:
		return pkt.RGBFramePart2.EasingInterval
	default:
		return nil
	}
}
