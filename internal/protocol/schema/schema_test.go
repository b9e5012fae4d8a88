package schema

import (
	"testing"

	"github.com/danmuck/pixelctl/internal/protocol/wire"
	"github.com/danmuck/pixelctl/internal/testutil/testlog"
)

func TestTablesCoverEveryMessage(t *testing.T) {
	testlog.Start(t)
	for _, name := range Messages() {
		table, ok := TableFor(name)
		if !ok {
			t.Fatalf("missing table for %s", name)
		}
		seen := make(map[uint32]struct{})
		for _, f := range table.Fields {
			if f.Number == 0 {
				t.Fatalf("%s.%s uses reserved field number 0", name, f.Name)
			}
			if _, dup := seen[f.Number]; dup {
				t.Fatalf("%s declares field %d twice", name, f.Number)
			}
			seen[f.Number] = struct{}{}
			if f.Kind == KindMessage {
				if _, ok := TableFor(f.Message); !ok {
					t.Fatalf("%s.%s references unknown message %q", name, f.Name, f.Message)
				}
				if f.WireType != wire.Bytes {
					t.Fatalf("%s.%s nested message must be length-delimited", name, f.Name)
				}
			}
		}
	}
}

func TestPacketEmissionOrder(t *testing.T) {
	testlog.Start(t)
	table, _ := TableFor(MsgPacket)
	want := []string{
		"frame", "w_frame", "rgb_frame", "audio_frame", "input_event",
		"firmware_config", "rgb_frame_part1", "rgb_frame_part2",
	}
	if len(table.Fields) != len(want) {
		t.Fatalf("packet fields=%d want=%d", len(table.Fields), len(want))
	}
	for i, f := range table.Fields {
		if f.Name != want[i] {
			t.Fatalf("field[%d]=%s want=%s", i, f.Name, want[i])
		}
	}
}

func TestValidateKnownField(t *testing.T) {
	testlog.Start(t)
	f, ok, err := Validate(MsgInputEvent, wire.MakeTag(FieldInputEventValue, wire.Varint))
	if err != nil || !ok {
		t.Fatalf("expected known field, ok=%v err=%v", ok, err)
	}
	if f.Name != "value" || f.Kind != KindInt32 {
		t.Fatalf("unexpected field: %+v", f)
	}
}

func TestValidateUnknownFieldIgnored(t *testing.T) {
	testlog.Start(t)
	_, ok, err := Validate(MsgInputEvent, wire.MakeTag(2, wire.Varint))
	if ok || err != nil {
		t.Fatalf("unknown field should be skipped without error, ok=%v err=%v", ok, err)
	}
}

func TestValidateWireTypeMismatchDeterministic(t *testing.T) {
	testlog.Start(t)
	_, ok, err := Validate(MsgRGBFrame, wire.MakeTag(FieldRGBFrameData, wire.Varint))
	if ok {
		t.Fatalf("mismatched wire type must not resolve")
	}
	ve, isVE := err.(ValidationError)
	if !isVE {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Field != FieldRGBFrameData || ve.Got != wire.Varint || ve.Expected != wire.Bytes {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}
