// Package protocol owns the panel wire contract.
//
// Ownership boundary:
// - message types and enums
// - Packet/FirmwarePacket encode and decode over the wire primitives
// - schema-driven inspection of raw datagrams
//
// Sub-packages:
// - buffer: pooled encode/decode windows
// - varint: base-128 and zig-zag integers
// - wire: tags, nested framing, unknown-field skipping
// - schema: per-message field tables
// - frame: datagram limits and the split RGB frame convention
package protocol
