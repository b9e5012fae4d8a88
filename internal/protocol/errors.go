package protocol

import "errors"

var (
	ErrNilMessage    = errors.New("protocol: nil message")
	ErrUnknownEnum   = errors.New("protocol: unknown enum name")
	ErrUnknownSchema = errors.New("protocol: unknown message schema")
)
