// Package smn provides side-band access to the System Management Network
// address space of the processor's root complex. Registers are reached
// indirectly through an index/data register pair in the root complex's PCI
// configuration space rather than through memory-mapped I/O.
package smn

import (
	"fmt"
	"sync"
)

// Index/data register pair in root complex config space. The pairs
// [0x60, 0x64] and [0xB4, 0xB8] also work; these may be arch-specific.
const (
	addrReg = 0xC4
	dataReg = 0xC8
)

// Transport is raw 32-bit register access into the SMN address space.
type Transport interface {
	ReadRegister(addr uint32) (uint32, error)
	WriteRegister(addr uint32, value uint32) error
}

// ConfigSpace models dword access into a PCI function's configuration
// space, the mechanism underlying SMN indirection.
type ConfigSpace interface {
	ReadDword(offset uint32) (uint32, error)
	WriteDword(offset uint32, value uint32) error
}

// SMN drives the index/data pair over a ConfigSpace. Each access programs
// the address register and then moves a dword through the data register;
// the pair is shared, so both steps run under one mutex. This mutex is
// deliberately distinct from any command-level lock: raw diagnostic access
// may interleave with an in-flight mailbox command, which serializes its
// own multi-register sequence one SMN access at a time.
type SMN struct {
	mu  sync.Mutex
	cfg ConfigSpace
}

// New returns an SMN transport over the supplied config space.
func New(cfg ConfigSpace) *SMN {
	return &SMN{cfg: cfg}
}

// ReadRegister implements Transport.
func (s *SMN) ReadRegister(addr uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.WriteDword(addrReg, addr); err != nil {
		return 0, fmt.Errorf("program SMN address %#x: %w", addr, err)
	}
	value, err := s.cfg.ReadDword(dataReg)
	if err != nil {
		return 0, fmt.Errorf("read SMN address %#x: %w", addr, err)
	}
	return value, nil
}

// WriteRegister implements Transport.
func (s *SMN) WriteRegister(addr uint32, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.WriteDword(addrReg, addr); err != nil {
		return fmt.Errorf("program SMN address %#x: %w", addr, err)
	}
	if err := s.cfg.WriteDword(dataReg, value); err != nil {
		return fmt.Errorf("write SMN address %#x: %w", addr, err)
	}
	return nil
}

var _ Transport = (*SMN)(nil)
