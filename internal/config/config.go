// Package config provides configuration structures and defaults for caskdb.
package config

import (
	"github.com/phuslu/log"
)

const (
	defaultCompactionThreshold = 1 << 21 // 2 MiB
	defaultIndexOrder          = 32

	// MinIndexOrder is the smallest B-tree order the index accepts.
	MinIndexOrder = 3
)

// Config holds the tunable parameters of the log-structured engine.
type Config struct {
	// CompactionThreshold is the number of outdated log bytes at which the
	// next Set compacts the log first.
	CompactionThreshold int64
	IndexOrder          int
	// SyncWrites makes every append fsync before returning.
	SyncWrites bool
	Logger     *log.Logger
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		CompactionThreshold: defaultCompactionThreshold,
		IndexOrder:          defaultIndexOrder,
		SyncWrites:          true,
		Logger:              &log.DefaultLogger,
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
// SyncWrites is left alone since false is a meaningful choice.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.CompactionThreshold <= 0 {
		c.CompactionThreshold = def.CompactionThreshold
	}
	if c.IndexOrder == 0 {
		c.IndexOrder = def.IndexOrder
	}
	if c.IndexOrder < MinIndexOrder {
		c.IndexOrder = MinIndexOrder
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
}
