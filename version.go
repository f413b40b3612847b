package ryzensmu

import "fmt"

// FormatVersion renders a packed firmware version word. Versions with a
// non-zero top byte use four components, the rest three.
func FormatVersion(v uint32) string {
	if v&0xFF000000 != 0 {
		return fmt.Sprintf("%d.%d.%d.%d", (v>>24)&0xff, (v>>16)&0xff, (v>>8)&0xff, v&0xff)
	}
	return fmt.Sprintf("%d.%d.%d", (v>>16)&0xff, (v>>8)&0xff, v&0xff)
}
