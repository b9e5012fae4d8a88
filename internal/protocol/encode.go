package protocol

import (
	"github.com/danmuck/pixelctl/internal/protocol/schema"
	"github.com/danmuck/pixelctl/internal/protocol/wire"
)

// encoder writes the present fields of a message in schema order.
type encoder interface {
	encode(w *wire.Writer)
}

func (p *Packet) encode(w *wire.Writer) {
	if p.Frame != nil {
		w.Message(schema.FieldPacketFrame, p.Frame.encode)
	}
	if p.WFrame != nil {
		w.Message(schema.FieldPacketWFrame, p.WFrame.encode)
	}
	if p.RGBFrame != nil {
		w.Message(schema.FieldPacketRGBFrame, p.RGBFrame.encode)
	}
	if p.AudioFrame != nil {
		w.Message(schema.FieldPacketAudioFrame, p.AudioFrame.encode)
	}
	if p.InputEvent != nil {
		w.Message(schema.FieldPacketInputEvent, p.InputEvent.encode)
	}
	if p.FirmwareConfig != nil {
		w.Message(schema.FieldPacketFirmwareConfig, p.FirmwareConfig.encode)
	}
	if p.RGBFramePart1 != nil {
		w.Message(schema.FieldPacketRGBFramePart1, p.RGBFramePart1.encode)
	}
	if p.RGBFramePart2 != nil {
		w.Message(schema.FieldPacketRGBFramePart2, p.RGBFramePart2.encode)
	}
}

func (f *Frame) encode(w *wire.Writer) {
	encodeIndexed(w, f.Data, f.Palette, f.EasingInterval)
}

func (f *WFrame) encode(w *wire.Writer) {
	encodeIndexed(w, f.Data, f.Palette, f.EasingInterval)
}

func encodeIndexed(w *wire.Writer, data, palette []byte, easing *uint32) {
	if data != nil {
		w.Bytes(schema.FieldFrameData, data)
	}
	if palette != nil {
		w.Bytes(schema.FieldFramePalette, palette)
	}
	if easing != nil {
		w.Uint32(schema.FieldFrameEasingInterval, *easing)
	}
}

func (f *RGBFrame) encode(w *wire.Writer) {
	if f.Data != nil {
		w.Bytes(schema.FieldRGBFrameData, f.Data)
	}
	if f.EasingInterval != nil {
		w.Uint32(schema.FieldRGBFrameEasingInterval, *f.EasingInterval)
	}
}

func (a *AudioFrame) encode(w *wire.Writer) {
	if a.URI != nil {
		w.String(schema.FieldAudioFrameURI, *a.URI)
	}
	if a.Channel != nil {
		w.Uint32(schema.FieldAudioFrameChannel, *a.Channel)
	}
}

func (e *InputEvent) encode(w *wire.Writer) {
	if e.Type != nil {
		w.Int32(schema.FieldInputEventType, int32(*e.Type))
	}
	if e.Value != nil {
		w.Int32(schema.FieldInputEventValue, *e.Value)
	}
}

func (c *FirmwareConfig) encode(w *wire.Writer) {
	if c.Luminance != nil {
		w.Uint32(schema.FieldFirmwareConfigLuminance, *c.Luminance)
	}
	if c.EasingMode != nil {
		w.Int32(schema.FieldFirmwareConfigEasingMode, int32(*c.EasingMode))
	}
	if c.ShowTestFrame != nil {
		w.Bool(schema.FieldFirmwareConfigShowTestFrame, *c.ShowTestFrame)
	}
	if c.ConfigPhash != nil {
		w.Uint32(schema.FieldFirmwareConfigConfigPhash, *c.ConfigPhash)
	}
	if c.EnableCalibration != nil {
		w.Bool(schema.FieldFirmwareConfigEnableCalibration, *c.EnableCalibration)
	}
}

func (p *FirmwarePacket) encode(w *wire.Writer) {
	if p.FirmwareInfo != nil {
		w.Message(schema.FieldFirmwarePacketFirmwareInfo, p.FirmwareInfo.encode)
	}
	if p.RemoteLog != nil {
		w.Message(schema.FieldFirmwarePacketRemoteLog, p.RemoteLog.encode)
	}
}

func (i *FirmwareInfo) encode(w *wire.Writer) {
	if i.Hostname != nil {
		w.String(schema.FieldFirmwareInfoHostname, *i.Hostname)
	}
	if i.BuildTime != nil {
		w.String(schema.FieldFirmwareInfoBuildTime, *i.BuildTime)
	}
	if i.PanelIndex != nil {
		w.Uint32(schema.FieldFirmwareInfoPanelIndex, *i.PanelIndex)
	}
	if i.FPS != nil {
		w.Uint32(schema.FieldFirmwareInfoFPS, *i.FPS)
	}
	if i.ConfigPhash != nil {
		w.Uint32(schema.FieldFirmwareInfoConfigPhash, *i.ConfigPhash)
	}
}

func (l *RemoteLog) encode(w *wire.Writer) {
	if l.Message != nil {
		w.String(schema.FieldRemoteLogMessage, *l.Message)
	}
}
