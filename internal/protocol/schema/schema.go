package schema

import (
	"fmt"

	"github.com/danmuck/pixelctl/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

// Message names.
const (
	MsgPacket         = "Packet"
	MsgFrame          = "Frame"
	MsgWFrame         = "WFrame"
	MsgRGBFrame       = "RGBFrame"
	MsgAudioFrame     = "AudioFrame"
	MsgInputEvent     = "InputEvent"
	MsgFirmwareConfig = "FirmwareConfig"
	MsgFirmwarePacket = "FirmwarePacket"
	MsgFirmwareInfo   = "FirmwareInfo"
	MsgRemoteLog      = "RemoteLog"
)

// Packet field numbers.
const (
	FieldPacketFirmwareConfig uint32 = 1
	FieldPacketFrame          uint32 = 2
	FieldPacketWFrame         uint32 = 3
	FieldPacketRGBFrame       uint32 = 4
	FieldPacketAudioFrame     uint32 = 5
	FieldPacketInputEvent     uint32 = 6
	FieldPacketRGBFramePart1  uint32 = 7
	FieldPacketRGBFramePart2  uint32 = 8
)

// Frame and WFrame field numbers.
const (
	FieldFrameData           uint32 = 1
	FieldFramePalette        uint32 = 2
	FieldFrameEasingInterval uint32 = 3
)

const (
	FieldRGBFrameData           uint32 = 1
	FieldRGBFrameEasingInterval uint32 = 2
)

const (
	FieldAudioFrameURI     uint32 = 1
	FieldAudioFrameChannel uint32 = 2
)

const (
	FieldInputEventType  uint32 = 1
	FieldInputEventValue uint32 = 3
)

const (
	FieldFirmwareConfigLuminance         uint32 = 1
	FieldFirmwareConfigEasingMode        uint32 = 2
	FieldFirmwareConfigShowTestFrame     uint32 = 3
	FieldFirmwareConfigConfigPhash       uint32 = 4
	FieldFirmwareConfigEnableCalibration uint32 = 5
)

const (
	FieldFirmwarePacketFirmwareInfo uint32 = 1
	FieldFirmwarePacketRemoteLog    uint32 = 2
)

const (
	FieldFirmwareInfoHostname    uint32 = 1
	FieldFirmwareInfoBuildTime   uint32 = 2
	FieldFirmwareInfoPanelIndex  uint32 = 3
	FieldFirmwareInfoFPS         uint32 = 4
	FieldFirmwareInfoConfigPhash uint32 = 5
)

const FieldRemoteLogMessage uint32 = 1

// Kind is the semantic type carried by a field.
type Kind uint8

const (
	KindUint32 Kind = iota + 1
	KindInt32
	KindBool
	KindEnum
	KindBytes
	KindString
	KindMessage
)

// Field declares one field of a message type.
type Field struct {
	Number   uint32
	WireType wire.WireType
	Name     string
	Kind     Kind
	// Message names the nested type for KindMessage and the enum for KindEnum.
	Message string
}

// Table is the ordered field list of one message type. Order is the
// emission order used by the encoder.
type Table struct {
	Message string
	Fields  []Field
}

var frameFields = []Field{
	{FieldFrameData, wire.Bytes, "data", KindBytes, ""},
	{FieldFramePalette, wire.Bytes, "palette", KindBytes, ""},
	{FieldFrameEasingInterval, wire.Varint, "easing_interval", KindUint32, ""},
}

var tables = map[string]Table{
	MsgPacket: {MsgPacket, []Field{
		{FieldPacketFrame, wire.Bytes, "frame", KindMessage, MsgFrame},
		{FieldPacketWFrame, wire.Bytes, "w_frame", KindMessage, MsgWFrame},
		{FieldPacketRGBFrame, wire.Bytes, "rgb_frame", KindMessage, MsgRGBFrame},
		{FieldPacketAudioFrame, wire.Bytes, "audio_frame", KindMessage, MsgAudioFrame},
		{FieldPacketInputEvent, wire.Bytes, "input_event", KindMessage, MsgInputEvent},
		{FieldPacketFirmwareConfig, wire.Bytes, "firmware_config", KindMessage, MsgFirmwareConfig},
		{FieldPacketRGBFramePart1, wire.Bytes, "rgb_frame_part1", KindMessage, MsgRGBFrame},
		{FieldPacketRGBFramePart2, wire.Bytes, "rgb_frame_part2", KindMessage, MsgRGBFrame},
	}},
	MsgFrame:  {MsgFrame, frameFields},
	MsgWFrame: {MsgWFrame, frameFields},
	MsgRGBFrame: {MsgRGBFrame, []Field{
		{FieldRGBFrameData, wire.Bytes, "data", KindBytes, ""},
		{FieldRGBFrameEasingInterval, wire.Varint, "easing_interval", KindUint32, ""},
	}},
	MsgAudioFrame: {MsgAudioFrame, []Field{
		{FieldAudioFrameURI, wire.Bytes, "uri", KindString, ""},
		{FieldAudioFrameChannel, wire.Varint, "channel", KindUint32, ""},
	}},
	MsgInputEvent: {MsgInputEvent, []Field{
		{FieldInputEventType, wire.Varint, "type", KindEnum, "InputType"},
		{FieldInputEventValue, wire.Varint, "value", KindInt32, ""},
	}},
	MsgFirmwareConfig: {MsgFirmwareConfig, []Field{
		{FieldFirmwareConfigLuminance, wire.Varint, "luminance", KindUint32, ""},
		{FieldFirmwareConfigEasingMode, wire.Varint, "easing_mode", KindEnum, "EasingMode"},
		{FieldFirmwareConfigShowTestFrame, wire.Varint, "show_test_frame", KindBool, ""},
		{FieldFirmwareConfigConfigPhash, wire.Varint, "config_phash", KindUint32, ""},
		{FieldFirmwareConfigEnableCalibration, wire.Varint, "enable_calibration", KindBool, ""},
	}},
	MsgFirmwarePacket: {MsgFirmwarePacket, []Field{
		{FieldFirmwarePacketFirmwareInfo, wire.Bytes, "firmware_info", KindMessage, MsgFirmwareInfo},
		{FieldFirmwarePacketRemoteLog, wire.Bytes, "remote_log", KindMessage, MsgRemoteLog},
	}},
	MsgFirmwareInfo: {MsgFirmwareInfo, []Field{
		{FieldFirmwareInfoHostname, wire.Bytes, "hostname", KindString, ""},
		{FieldFirmwareInfoBuildTime, wire.Bytes, "build_time", KindString, ""},
		{FieldFirmwareInfoPanelIndex, wire.Varint, "panel_index", KindUint32, ""},
		{FieldFirmwareInfoFPS, wire.Varint, "fps", KindUint32, ""},
		{FieldFirmwareInfoConfigPhash, wire.Varint, "config_phash", KindUint32, ""},
	}},
	MsgRemoteLog: {MsgRemoteLog, []Field{
		{FieldRemoteLogMessage, wire.Bytes, "message", KindString, ""},
	}},
}

// ValidationError reports a tag that names a known field with the wrong
// wire type.
type ValidationError struct {
	Message  string
	Field    uint32
	Got      wire.WireType
	Expected wire.WireType
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: message=%s field=%d: wire type %s, want %s", e.Message, e.Field, e.Got, e.Expected)
}

// TableFor returns the field table of a message type.
func TableFor(message string) (Table, bool) {
	t, ok := tables[message]
	return t, ok
}

// Messages lists every declared message name.
func Messages() []string {
	return []string{
		MsgPacket, MsgFrame, MsgWFrame, MsgRGBFrame, MsgAudioFrame,
		MsgInputEvent, MsgFirmwareConfig, MsgFirmwarePacket, MsgFirmwareInfo, MsgRemoteLog,
	}
}

// Lookup returns the declared field with the given number.
func Lookup(message string, number uint32) (Field, bool) {
	t, ok := tables[message]
	if !ok {
		return Field{}, false
	}
	for _, f := range t.Fields {
		if f.Number == number {
			return f, true
		}
	}
	return Field{}, false
}

// Validate resolves tag against the message table. It returns the field and
// true when the tag names a known field with its declared wire type. Unknown
// field numbers return false with a nil error; known numbers with a
// mismatched wire type return false with a ValidationError. Either way the
// caller skips the field.
func Validate(message string, tag wire.Tag) (Field, bool, error) {
	f, ok := Lookup(message, tag.Field())
	if !ok {
		return Field{}, false, nil
	}
	if f.WireType != tag.WireType() {
		err := ValidationError{Message: message, Field: f.Number, Got: tag.WireType(), Expected: f.WireType}
		log.Debug().Err(err).Msg("schema.Validate wire type mismatch")
		return Field{}, false, err
	}
	return f, true, nil
}
