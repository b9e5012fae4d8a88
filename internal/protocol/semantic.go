package protocol

import (
	"fmt"
	"strings"

	"github.com/danmuck/pixelctl/internal/protocol/buffer"
	"github.com/danmuck/pixelctl/internal/protocol/schema"
	"github.com/danmuck/pixelctl/internal/protocol/wire"
)

// Value is one decoded field of a SemanticMessage.
type Value struct {
	Number uint32           `json:"number"`
	Name   string           `json:"name"`
	Kind   schema.Kind      `json:"kind"`
	Uint   uint32           `json:"uint,omitempty"`
	Int    int32            `json:"int,omitempty"`
	Bool   bool             `json:"bool,omitempty"`
	Enum   string           `json:"enum,omitempty"`
	String string           `json:"string,omitempty"`
	Bytes  []byte           `json:"bytes,omitempty"`
	Nested *SemanticMessage `json:"nested,omitempty"`
}

// UnknownField is a field that no schema entry claimed.
type UnknownField struct {
	Number   uint32        `json:"number"`
	WireType wire.WireType `json:"wire_type"`
	Raw      []byte        `json:"raw"`
}

// SemanticMessage is a schema-driven view of an encoded message. Unlike the
// typed decoders it keeps unknown fields, which makes it the tool for
// inspecting captured or malformed datagrams.
type SemanticMessage struct {
	Message string         `json:"message"`
	Fields  []Value        `json:"fields"`
	Unknown []UnknownField `json:"unknown,omitempty"`
}

// ParseSemantic walks b using the field table of message.
func ParseSemantic(message string, b []byte) (*SemanticMessage, error) {
	if _, ok := schema.TableFor(message); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, message)
	}
	r := wire.NewReader(buffer.Wrap(b))
	return parseSemantic(r, message)
}

func parseSemantic(r *wire.Reader, message string) (*SemanticMessage, error) {
	out := &SemanticMessage{Message: message}
	for r.More() {
		start := r.Buf.Offset
		tag, err := r.Tag()
		if err != nil {
			return nil, err
		}
		if tag.Field() == 0 {
			break
		}
		spec, ok, _ := schema.Validate(message, tag)
		if !ok {
			if err := r.Skip(tag); err != nil {
				return nil, err
			}
			raw := make([]byte, r.Buf.Offset-start)
			copy(raw, r.Buf.Finalize()[start:r.Buf.Offset])
			out.Unknown = append(out.Unknown, UnknownField{Number: tag.Field(), WireType: tag.WireType(), Raw: raw})
			continue
		}
		value, err := decodeValue(r, spec)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, value)
	}
	return out, nil
}

func decodeValue(r *wire.Reader, spec schema.Field) (Value, error) {
	value := Value{Number: spec.Number, Name: spec.Name, Kind: spec.Kind}
	var err error
	switch spec.Kind {
	case schema.KindUint32:
		value.Uint, err = r.Uint32()
	case schema.KindInt32:
		value.Int, err = r.Int32()
	case schema.KindBool:
		value.Bool, err = r.Bool()
	case schema.KindEnum:
		var v uint32
		v, err = r.Uint32()
		value.Uint = v
		value.Enum = enumName(spec.Message, int32(v))
	case schema.KindString:
		value.String, err = r.String()
	case schema.KindBytes:
		value.Bytes, err = r.Bytes()
	case schema.KindMessage:
		err = r.Nested(func(nr *wire.Reader) error {
			nested, nerr := parseSemantic(nr, spec.Message)
			value.Nested = nested
			return nerr
		})
	default:
		err = fmt.Errorf("protocol: field %s has no kind", spec.Name)
	}
	if err != nil {
		return Value{}, err
	}
	return value, nil
}

func enumName(enum string, v int32) string {
	switch enum {
	case "InputType":
		return InputType(v).String()
	case "EasingMode":
		return EasingMode(v).String()
	default:
		return fmt.Sprintf("%s(%d)", enum, v)
	}
}

// Field returns the first decoded value with the given name.
func (m *SemanticMessage) Field(name string) (Value, bool) {
	for _, v := range m.Fields {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

// String renders a compact single-line summary, e.g.
// Packet{rgb_frame=RGBFrame{data=[300]B easing_interval=40}}.
func (m *SemanticMessage) String() string {
	var sb strings.Builder
	sb.WriteString(m.Message)
	sb.WriteByte('{')
	for i, v := range m.Fields {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.Name)
		sb.WriteByte('=')
		sb.WriteString(v.render())
	}
	for _, u := range m.Unknown {
		fmt.Fprintf(&sb, " ?%d/%s=[%d]B", u.Number, u.WireType, len(u.Raw))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (v Value) render() string {
	switch v.Kind {
	case schema.KindUint32:
		return fmt.Sprint(v.Uint)
	case schema.KindInt32:
		return fmt.Sprint(v.Int)
	case schema.KindBool:
		return fmt.Sprint(v.Bool)
	case schema.KindEnum:
		return v.Enum
	case schema.KindString:
		return fmt.Sprintf("%q", v.String)
	case schema.KindBytes:
		return fmt.Sprintf("[%d]B", len(v.Bytes))
	case schema.KindMessage:
		if v.Nested == nil {
			return "<nil>"
		}
		return v.Nested.String()
	default:
		return "?"
	}
}
