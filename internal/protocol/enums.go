package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// InputType identifies the control that produced an InputEvent.
type InputType int32

const (
	InputButton1 InputType = iota
	InputButton2
	InputButton3
	InputButton4
	InputButton5
	InputButton6
	InputButton7
	InputButton8
	InputButton9
	InputButton10
	InputAxisX1
	InputAxisY1
	InputAxisX2
	InputAxisY2
)

var inputTypeNames = [...]string{
	"BUTTON_1", "BUTTON_2", "BUTTON_3", "BUTTON_4", "BUTTON_5",
	"BUTTON_6", "BUTTON_7", "BUTTON_8", "BUTTON_9", "BUTTON_10",
	"AXIS_X_1", "AXIS_Y_1", "AXIS_X_2", "AXIS_Y_2",
}

var inputTypeValues = invert(inputTypeNames[:])

// Valid reports whether t has a name. Decoding keeps unmapped ordinals as-is.
func (t InputType) Valid() bool {
	return t >= 0 && int(t) < len(inputTypeNames)
}

func (t InputType) String() string {
	if t.Valid() {
		return inputTypeNames[t]
	}
	return "InputType(" + strconv.Itoa(int(t)) + ")"
}

func (t InputType) Ptr() *InputType {
	return &t
}

func (t InputType) MarshalText() ([]byte, error) {
	if t.Valid() {
		return []byte(inputTypeNames[t]), nil
	}
	return []byte(strconv.Itoa(int(t))), nil
}

func (t *InputType) UnmarshalText(b []byte) error {
	v, err := ParseInputType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseInputType accepts a name such as "BUTTON_2" or a raw ordinal.
func ParseInputType(s string) (InputType, error) {
	v, err := parseEnum(s, inputTypeValues)
	if err != nil {
		return 0, fmt.Errorf("input type %q: %w", s, err)
	}
	return InputType(v), nil
}

// EasingMode selects the interpolation curve panels use between frames.
type EasingMode int32

const (
	EasingLinear EasingMode = iota
	EasingInQuad
	EasingOutQuad
	EasingInOutQuad
	EasingInCubic
	EasingOutCubic
	EasingInOutCubic
	EasingInQuart
	EasingOutQuart
	EasingInOutQuart
	EasingInQuint
	EasingOutQuint
	EasingInOutQuint
	EasingInExpo
	EasingOutExpo
	EasingInOutExpo
)

var easingModeNames = [...]string{
	"LINEAR",
	"EASE_IN_QUAD", "EASE_OUT_QUAD", "EASE_IN_OUT_QUAD",
	"EASE_IN_CUBIC", "EASE_OUT_CUBIC", "EASE_IN_OUT_CUBIC",
	"EASE_IN_QUART", "EASE_OUT_QUART", "EASE_IN_OUT_QUART",
	"EASE_IN_QUINT", "EASE_OUT_QUINT", "EASE_IN_OUT_QUINT",
	"EASE_IN_EXPO", "EASE_OUT_EXPO", "EASE_IN_OUT_EXPO",
}

var easingModeValues = invert(easingModeNames[:])

func (m EasingMode) Valid() bool {
	return m >= 0 && int(m) < len(easingModeNames)
}

func (m EasingMode) String() string {
	if m.Valid() {
		return easingModeNames[m]
	}
	return "EasingMode(" + strconv.Itoa(int(m)) + ")"
}

func (m EasingMode) Ptr() *EasingMode {
	return &m
}

func (m EasingMode) MarshalText() ([]byte, error) {
	if m.Valid() {
		return []byte(easingModeNames[m]), nil
	}
	return []byte(strconv.Itoa(int(m))), nil
}

func (m *EasingMode) UnmarshalText(b []byte) error {
	v, err := ParseEasingMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseEasingMode accepts a name such as "EASE_IN_OUT_CUBIC" or a raw ordinal.
func ParseEasingMode(s string) (EasingMode, error) {
	v, err := parseEnum(s, easingModeValues)
	if err != nil {
		return 0, fmt.Errorf("easing mode %q: %w", s, err)
	}
	return EasingMode(v), nil
}

func invert(names []string) map[string]int32 {
	out := make(map[string]int32, len(names))
	for i, name := range names {
		out[name] = int32(i)
	}
	return out
}

func parseEnum(s string, values map[string]int32) (int32, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if v, ok := values[key]; ok {
		return v, nil
	}
	if n, err := strconv.ParseInt(key, 10, 32); err == nil {
		return int32(n), nil
	}
	return 0, ErrUnknownEnum
}
