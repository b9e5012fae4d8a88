package fleet

import (
	"github.com/cespare/xxhash/v2"
	"github.com/danmuck/pixelctl/internal/protocol"
)

// ConfigHash fingerprints cfg with its config_phash field cleared, so the
// hash a device echoes back can be compared with the controller's.
func ConfigHash(cfg *protocol.FirmwareConfig) uint32 {
	if cfg == nil {
		return 0
	}
	clone := *cfg
	clone.ConfigPhash = nil
	b, err := protocol.Marshal(&clone)
	if err != nil {
		return 0
	}
	return uint32(xxhash.Sum64(b))
}

// Stamp returns a copy of cfg carrying its own ConfigHash.
func Stamp(cfg *protocol.FirmwareConfig) *protocol.FirmwareConfig {
	clone := *cfg
	clone.ConfigPhash = protocol.Uint32(ConfigHash(cfg))
	return &clone
}
