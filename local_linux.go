package ryzensmu

import (
	"fmt"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
	"github.com/amkillam/ryzen-smu/internal/pmtable"
	"github.com/amkillam/ryzen-smu/internal/smn"
)

// NewLocal assembles an Engine over the local machine's hardware: the
// northbridge root complex config space for SMN access, the cpuid character
// device for identification, and /dev/mem for PM table reads. Requires
// root.
func NewLocal(cfg Config) (*Engine, error) {
	config, err := smn.OpenRootComplex()
	if err != nil {
		return nil, fmt.Errorf("open root complex: %w", err)
	}

	leaves, err := cpuid.OpenDevice(0)
	if err != nil {
		_ = config.Close()
		return nil, fmt.Errorf("open cpuid device: %w", err)
	}

	mem, err := pmtable.OpenDevMem()
	if err != nil {
		_ = config.Close()
		_ = leaves.Close()
		return nil, fmt.Errorf("open physical memory: %w", err)
	}

	engine := New(smn.New(config), leaves, mem, cfg)
	engine.closers = append(engine.closers, mem, leaves, config)
	return engine, nil
}
