package protocol

// Uint32 returns a pointer to v for optional uint32 fields.
func Uint32(v uint32) *uint32 {
	return &v
}

// Int32 returns a pointer to v for optional int32 fields.
func Int32(v int32) *int32 {
	return &v
}

// Bool returns a pointer to v for optional bool fields.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v for optional string fields.
func String(v string) *string {
	return &v
}
