package protocol

import (
	"reflect"

	"github.com/danmuck/pixelctl/internal/protocol/buffer"
	"github.com/danmuck/pixelctl/internal/protocol/wire"
)

// Codec encodes and decodes messages with scratch buffers from Pool.
// The zero value is usable and allocates per call.
type Codec struct {
	Pool *buffer.Pool
}

func NewCodec(pool *buffer.Pool) *Codec {
	return &Codec{Pool: pool}
}

// Encode serializes msg into a pooled buffer and passes the bytes to fn. The
// slice is only valid for the duration of fn.
func (c *Codec) Encode(msg Message, fn func([]byte) error) error {
	if isNil(msg) {
		return ErrNilMessage
	}
	buf := c.Pool.Acquire()
	defer c.Pool.Release(buf)
	msg.encode(wire.NewWriter(buf, c.Pool))
	return fn(buf.Finalize())
}

// Marshal returns an owned copy of the encoded message.
func (c *Codec) Marshal(msg Message) ([]byte, error) {
	var out []byte
	err := c.Encode(msg, func(b []byte) error {
		out = make([]byte, len(b))
		copy(out, b)
		return nil
	})
	return out, err
}

// Unmarshal resets msg and decodes b into it. On failure msg is left at its
// zero value; partial results never escape.
func (c *Codec) Unmarshal(b []byte, msg Message) error {
	if isNil(msg) {
		return ErrNilMessage
	}
	resetMessage(msg)
	if err := msg.decode(wire.NewReader(buffer.Wrap(b))); err != nil {
		resetMessage(msg)
		return err
	}
	return nil
}

func (c *Codec) EncodePacket(p *Packet) ([]byte, error) {
	return c.Marshal(p)
}

func (c *Codec) EncodeFirmwarePacket(p *FirmwarePacket) ([]byte, error) {
	return c.Marshal(p)
}

func (c *Codec) DecodePacket(b []byte) (*Packet, error) {
	p := &Packet{}
	if err := c.Unmarshal(b, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Codec) DecodeFirmwarePacket(b []byte) (*FirmwarePacket, error) {
	p := &FirmwarePacket{}
	if err := c.Unmarshal(b, p); err != nil {
		return nil, err
	}
	return p, nil
}

var defaultCodec Codec

// Marshal encodes msg without pooling.
func Marshal(msg Message) ([]byte, error) {
	return defaultCodec.Marshal(msg)
}

// Unmarshal decodes b into msg.
func Unmarshal(b []byte, msg Message) error {
	return defaultCodec.Unmarshal(b, msg)
}

func DecodePacket(b []byte) (*Packet, error) {
	return defaultCodec.DecodePacket(b)
}

func DecodeFirmwarePacket(b []byte) (*FirmwarePacket, error) {
	return defaultCodec.DecodeFirmwarePacket(b)
}

func isNil(msg Message) bool {
	if msg == nil {
		return true
	}
	v := reflect.ValueOf(msg)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func resetMessage(msg Message) {
	v := reflect.ValueOf(msg).Elem()
	v.Set(reflect.Zero(v.Type()))
}
