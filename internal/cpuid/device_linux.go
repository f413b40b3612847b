package cpuid

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Device reads CPUID leaves through the Linux cpuid character device
// (/dev/cpu/N/cpuid). A pread at offset fn returns the four result
// registers for that leaf.
type Device struct {
	f *os.File
}

// OpenDevice opens the cpuid device for the given CPU index. Requires the
// cpuid kernel module (CONFIG_X86_CPUID).
func OpenDevice(cpu int) (*Device, error) {
	path := fmt.Sprintf("/dev/cpu/%d/cpuid", cpu)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{f: f}, nil
}

// Leaf implements LeafReader.
func (d *Device) Leaf(fn uint32) (eax, ebx, ecx, edx uint32, err error) {
	var buf [16]byte
	if _, err := d.f.ReadAt(buf[:], int64(fn)); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("read cpuid leaf %#x: %w", fn, err)
	}
	eax = binary.LittleEndian.Uint32(buf[0:])
	ebx = binary.LittleEndian.Uint32(buf[4:])
	ecx = binary.LittleEndian.Uint32(buf[8:])
	edx = binary.LittleEndian.Uint32(buf[12:])
	return eax, ebx, ecx, edx, nil
}

// Close releases the underlying device file.
func (d *Device) Close() error {
	return d.f.Close()
}

var _ LeafReader = (*Device)(nil)
