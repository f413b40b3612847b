package pmtable

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DevMem maps physical memory through /dev/mem. Mappings are page-aligned;
// the returned window is the caller's sub-slice of the full mapping.
type DevMem struct {
	f *os.File

	mu      sync.Mutex
	regions map[*byte][]byte // window start -> full mapping
}

// OpenDevMem opens /dev/mem for read-only mapping. Requires root and a
// kernel without CONFIG_STRICT_DEVMEM restricting the table's range.
func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDONLY|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/mem: %w", err)
	}
	return &DevMem{f: f, regions: make(map[*byte][]byte)}, nil
}

// Map implements Mapper.
func (m *DevMem) Map(base uint64, size uint32) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("mapping size must be non-zero")
	}
	pageSize := uint64(unix.Getpagesize())
	aligned := base &^ (pageSize - 1)
	offset := base - aligned

	mem, err := unix.Mmap(int(m.f.Fd()), int64(aligned), int(offset)+int(size),
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %#x (%#x bytes): %w", aligned, size, err)
	}

	window := mem[offset : offset+uint64(size)]
	m.mu.Lock()
	m.regions[&window[0]] = mem
	m.mu.Unlock()
	return window, nil
}

// Unmap implements Mapper.
func (m *DevMem) Unmap(window []byte) error {
	if len(window) == 0 {
		return nil
	}
	m.mu.Lock()
	mem, ok := m.regions[&window[0]]
	if ok {
		delete(m.regions, &window[0])
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unmap of unknown window")
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Close unmaps any remaining windows and closes /dev/mem.
func (m *DevMem) Close() error {
	m.mu.Lock()
	for key, mem := range m.regions {
		_ = unix.Munmap(mem)
		delete(m.regions, key)
	}
	m.mu.Unlock()
	return m.f.Close()
}

var _ Mapper = (*DevMem)(nil)
