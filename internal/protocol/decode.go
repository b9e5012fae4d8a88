package protocol

import (
	"github.com/danmuck/pixelctl/internal/protocol/schema"
	"github.com/danmuck/pixelctl/internal/protocol/wire"
)

// decoder fills a zero message from the reader's current window.
type decoder interface {
	decode(r *wire.Reader) error
}

// decodeFields runs the decode loop shared by every message: read a tag,
// resolve it against the schema table, hand known fields to set and skip
// everything else. Field number 0 ends the message.
func decodeFields(r *wire.Reader, message string, set func(f schema.Field) error) error {
	for r.More() {
		tag, err := r.Tag()
		if err != nil {
			return err
		}
		if tag.Field() == 0 {
			return nil
		}
		f, ok, _ := schema.Validate(message, tag)
		if !ok {
			if err := r.Skip(tag); err != nil {
				return err
			}
			continue
		}
		if err := set(f); err != nil {
			return err
		}
	}
	return nil
}

func decodeNested[T any, PT interface {
	*T
	decoder
}](r *wire.Reader) (*T, error) {
	v := PT(new(T))
	if err := r.Nested(v.decode); err != nil {
		return nil, err
	}
	return (*T)(v), nil
}

func (p *Packet) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgPacket, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldPacketFirmwareConfig:
			p.FirmwareConfig, err = decodeNested[FirmwareConfig](r)
		case schema.FieldPacketFrame:
			p.Frame, err = decodeNested[Frame](r)
		case schema.FieldPacketWFrame:
			p.WFrame, err = decodeNested[WFrame](r)
		case schema.FieldPacketRGBFrame:
			p.RGBFrame, err = decodeNested[RGBFrame](r)
		case schema.FieldPacketAudioFrame:
			p.AudioFrame, err = decodeNested[AudioFrame](r)
		case schema.FieldPacketInputEvent:
			p.InputEvent, err = decodeNested[InputEvent](r)
		case schema.FieldPacketRGBFramePart1:
			p.RGBFramePart1, err = decodeNested[RGBFrame](r)
		case schema.FieldPacketRGBFramePart2:
			p.RGBFramePart2, err = decodeNested[RGBFrame](r)
		}
		return err
	})
}

func (f *Frame) decode(r *wire.Reader) error {
	return decodeIndexed(r, schema.MsgFrame, &f.Data, &f.Palette, &f.EasingInterval)
}

func (f *WFrame) decode(r *wire.Reader) error {
	return decodeIndexed(r, schema.MsgWFrame, &f.Data, &f.Palette, &f.EasingInterval)
}

func decodeIndexed(r *wire.Reader, message string, data, palette *[]byte, easing **uint32) error {
	return decodeFields(r, message, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldFrameData:
			*data, err = r.Bytes()
		case schema.FieldFramePalette:
			*palette, err = r.Bytes()
		case schema.FieldFrameEasingInterval:
			*easing, err = readUint32(r)
		}
		return err
	})
}

func (f *RGBFrame) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgRGBFrame, func(fd schema.Field) error {
		var err error
		switch fd.Number {
		case schema.FieldRGBFrameData:
			f.Data, err = r.Bytes()
		case schema.FieldRGBFrameEasingInterval:
			f.EasingInterval, err = readUint32(r)
		}
		return err
	})
}

func (a *AudioFrame) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgAudioFrame, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldAudioFrameURI:
			a.URI, err = readString(r)
		case schema.FieldAudioFrameChannel:
			a.Channel, err = readUint32(r)
		}
		return err
	})
}

func (e *InputEvent) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgInputEvent, func(f schema.Field) error {
		switch f.Number {
		case schema.FieldInputEventType:
			v, err := r.Int32()
			if err != nil {
				return err
			}
			e.Type = InputType(v).Ptr()
		case schema.FieldInputEventValue:
			v, err := r.Int32()
			if err != nil {
				return err
			}
			e.Value = &v
		}
		return nil
	})
}

func (c *FirmwareConfig) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgFirmwareConfig, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldFirmwareConfigLuminance:
			c.Luminance, err = readUint32(r)
		case schema.FieldFirmwareConfigEasingMode:
			var v int32
			if v, err = r.Int32(); err == nil {
				c.EasingMode = EasingMode(v).Ptr()
			}
		case schema.FieldFirmwareConfigShowTestFrame:
			c.ShowTestFrame, err = readBool(r)
		case schema.FieldFirmwareConfigConfigPhash:
			c.ConfigPhash, err = readUint32(r)
		case schema.FieldFirmwareConfigEnableCalibration:
			c.EnableCalibration, err = readBool(r)
		}
		return err
	})
}

func (p *FirmwarePacket) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgFirmwarePacket, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldFirmwarePacketFirmwareInfo:
			p.FirmwareInfo, err = decodeNested[FirmwareInfo](r)
		case schema.FieldFirmwarePacketRemoteLog:
			p.RemoteLog, err = decodeNested[RemoteLog](r)
		}
		return err
	})
}

func (i *FirmwareInfo) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgFirmwareInfo, func(f schema.Field) error {
		var err error
		switch f.Number {
		case schema.FieldFirmwareInfoHostname:
			i.Hostname, err = readString(r)
		case schema.FieldFirmwareInfoBuildTime:
			i.BuildTime, err = readString(r)
		case schema.FieldFirmwareInfoPanelIndex:
			i.PanelIndex, err = readUint32(r)
		case schema.FieldFirmwareInfoFPS:
			i.FPS, err = readUint32(r)
		case schema.FieldFirmwareInfoConfigPhash:
			i.ConfigPhash, err = readUint32(r)
		}
		return err
	})
}

func (l *RemoteLog) decode(r *wire.Reader) error {
	return decodeFields(r, schema.MsgRemoteLog, func(f schema.Field) error {
		var err error
		if f.Number == schema.FieldRemoteLogMessage {
			l.Message, err = readString(r)
		}
		return err
	})
}

func readUint32(r *wire.Reader) (*uint32, error) {
	v, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readBool(r *wire.Reader) (*bool, error) {
	v, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readString(r *wire.Reader) (*string, error) {
	v, err := r.String()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
