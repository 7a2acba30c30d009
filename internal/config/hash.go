package config

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// fingerprint identifies a config by content, so rewriting the file with the
// same values does not publish a reload. Zero means unknown.
func fingerprint(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
