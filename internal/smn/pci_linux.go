package smn

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pciVendorAMD = 0x1022

// Northbridge root complex device IDs with a reachable SMU, by family and
// model range. See arch/x86/kernel/amd_nb.c in the kernel tree.
var rootComplexDeviceIDs = map[uint32]string{
	0x1450: "17h",
	0x15d0: "17h, model 10h",
	0x1480: "17h, model 30h",
	0x1630: "17h, model 60h",
	0x14b5: "17h, model a0h / 19h, model 40h",
	0x14a4: "19h, model 10h",
	0x14d8: "19h, model 60h",
	0x14e8: "19h, model 70h",
	0x153a: "1ah",
	0x1507: "1ah, model 20h",
	0x1122: "1ah, model 60h",
	0x14bb: "MI200",
	0x14f8: "MI300",
}

// ConfigFile is a ConfigSpace backed by a sysfs PCI config file. Dword
// reads and writes become positioned I/O at the register offset.
type ConfigFile struct {
	f *os.File
}

// OpenConfig opens the config space of the PCI function at the given
// sysfs device address (for example "0000:00:00.0").
func OpenConfig(address string) (*ConfigFile, error) {
	path := filepath.Join("/sys/bus/pci/devices", address, "config")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ConfigFile{f: f}, nil
}

// OpenRootComplex scans bus 0 for a supported northbridge root complex and
// opens its config space.
func OpenRootComplex() (*ConfigFile, error) {
	entries, err := os.ReadDir("/sys/bus/pci/devices")
	if err != nil {
		return nil, fmt.Errorf("scan PCI devices: %w", err)
	}
	for _, entry := range entries {
		vendor, err := readHexAttr(entry.Name(), "vendor")
		if err != nil || vendor != pciVendorAMD {
			continue
		}
		device, err := readHexAttr(entry.Name(), "device")
		if err != nil {
			continue
		}
		family, ok := rootComplexDeviceIDs[device]
		if !ok {
			continue
		}
		slog.Debug("smn: found root complex",
			"address", entry.Name(),
			"device", fmt.Sprintf("%#x", device),
			"family", family)
		return OpenConfig(entry.Name())
	}
	return nil, fmt.Errorf("no supported root complex device found")
}

func readHexAttr(address, attr string) (uint32, error) {
	raw, err := os.ReadFile(filepath.Join("/sys/bus/pci/devices", address, attr))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadDword implements ConfigSpace.
func (c *ConfigFile) ReadDword(offset uint32) (uint32, error) {
	var buf [4]byte
	if _, err := c.f.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("read config offset %#x: %w", offset, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteDword implements ConfigSpace.
func (c *ConfigFile) WriteDword(offset uint32, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	if _, err := c.f.WriteAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("write config offset %#x: %w", offset, err)
	}
	return nil
}

// Close releases the underlying config file.
func (c *ConfigFile) Close() error {
	return c.f.Close()
}

var _ ConfigSpace = (*ConfigFile)(nil)
