package protocol

import "github.com/danmuck/pixelctl/internal/protocol/schema"

// Message is implemented by every wire message type.
type Message interface {
	MessageName() string
	encoder
	decoder
}

// Packet is sent from controllers to panels. It behaves as a loose union:
// any subset of its fields may be present.
type Packet struct {
	FirmwareConfig *FirmwareConfig `json:"firmware_config,omitempty"`
	Frame          *Frame          `json:"frame,omitempty"`
	WFrame         *WFrame         `json:"w_frame,omitempty"`
	RGBFrame       *RGBFrame       `json:"rgb_frame,omitempty"`
	AudioFrame     *AudioFrame     `json:"audio_frame,omitempty"`
	InputEvent     *InputEvent     `json:"input_event,omitempty"`
	RGBFramePart1  *RGBFrame       `json:"rgb_frame_part1,omitempty"`
	RGBFramePart2  *RGBFrame       `json:"rgb_frame_part2,omitempty"`
}

// Frame is an indexed-palette frame with 3-byte RGB palette entries.
type Frame struct {
	Data           []byte  `json:"data,omitempty"`
	Palette        []byte  `json:"palette,omitempty"`
	EasingInterval *uint32 `json:"easing_interval,omitempty"`
}

// WFrame is an indexed-palette frame with 4-byte RGBW palette entries.
type WFrame struct {
	Data           []byte  `json:"data,omitempty"`
	Palette        []byte  `json:"palette,omitempty"`
	EasingInterval *uint32 `json:"easing_interval,omitempty"`
}

// RGBFrame carries 3 bytes per pixel.
type RGBFrame struct {
	Data           []byte  `json:"data,omitempty"`
	EasingInterval *uint32 `json:"easing_interval,omitempty"`
}

type AudioFrame struct {
	URI     *string `json:"uri,omitempty"`
	Channel *uint32 `json:"channel,omitempty"`
}

type InputEvent struct {
	Type  *InputType `json:"type,omitempty"`
	Value *int32     `json:"value,omitempty"`
}

type FirmwareConfig struct {
	Luminance         *uint32     `json:"luminance,omitempty"`
	EasingMode        *EasingMode `json:"easing_mode,omitempty"`
	ShowTestFrame     *bool       `json:"show_test_frame,omitempty"`
	ConfigPhash       *uint32     `json:"config_phash,omitempty"`
	EnableCalibration *bool       `json:"enable_calibration,omitempty"`
}

// FirmwarePacket is sent from panels back to the controller.
type FirmwarePacket struct {
	FirmwareInfo *FirmwareInfo `json:"firmware_info,omitempty"`
	RemoteLog    *RemoteLog    `json:"remote_log,omitempty"`
}

type FirmwareInfo struct {
	Hostname    *string `json:"hostname,omitempty"`
	BuildTime   *string `json:"build_time,omitempty"`
	PanelIndex  *uint32 `json:"panel_index,omitempty"`
	FPS         *uint32 `json:"fps,omitempty"`
	ConfigPhash *uint32 `json:"config_phash,omitempty"`
}

type RemoteLog struct {
	Message *string `json:"message,omitempty"`
}

func (*Packet) MessageName() string         { return schema.MsgPacket }
func (*Frame) MessageName() string          { return schema.MsgFrame }
func (*WFrame) MessageName() string         { return schema.MsgWFrame }
func (*RGBFrame) MessageName() string       { return schema.MsgRGBFrame }
func (*AudioFrame) MessageName() string     { return schema.MsgAudioFrame }
func (*InputEvent) MessageName() string     { return schema.MsgInputEvent }
func (*FirmwareConfig) MessageName() string { return schema.MsgFirmwareConfig }
func (*FirmwarePacket) MessageName() string { return schema.MsgFirmwarePacket }
func (*FirmwareInfo) MessageName() string   { return schema.MsgFirmwareInfo }
func (*RemoteLog) MessageName() string      { return schema.MsgRemoteLog }
