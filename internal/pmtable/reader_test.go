package pmtable

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
	"github.com/amkillam/ryzen-smu/internal/mailbox"
)

type issuedCommand struct {
	op   uint32
	arg0 uint32
}

// fakeCommander scripts RSMU responses at the command level and records
// every issued command.
type fakeCommander struct {
	handlers map[uint32]func(args *mailbox.Args) error
	issued   []issuedCommand
}

func (f *fakeCommander) Exec(op uint32, args *mailbox.Args, kind mailbox.Kind) error {
	if kind != mailbox.RSMU {
		return fmt.Errorf("unexpected mailbox %s", kind)
	}
	f.issued = append(f.issued, issuedCommand{op: op, arg0: args[0]})
	h, ok := f.handlers[op]
	if !ok {
		return mailbox.ResultError{Code: mailbox.ResultUnknownCmd}
	}
	return h(args)
}

func (f *fakeCommander) count(op uint32) int {
	n := 0
	for _, c := range f.issued {
		if c.op == op {
			n++
		}
	}
	return n
}

// fakeMapper serves windows out of in-memory regions keyed by base address.
type fakeMapper struct {
	regions  map[uint64][]byte
	failures int
	maps     int
	unmaps   int
}

func (m *fakeMapper) Map(base uint64, size uint32) ([]byte, error) {
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("mapping refused")
	}
	region, ok := m.regions[base]
	if !ok || len(region) < int(size) {
		return nil, fmt.Errorf("no backing region at %#x", base)
	}
	m.maps++
	return region[:size], nil
}

func (m *fakeMapper) Unmap(window []byte) error {
	m.unmaps++
	return nil
}

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = seed + byte(i)
	}
	return buf
}

// matisseCommander scripts a Matisse-like RSMU: base discovery via one
// Direct64 command, a version query, and a transfer trigger.
func matisseCommander(base uint64, version uint32) *fakeCommander {
	return &fakeCommander{handlers: map[uint32]func(*mailbox.Args) error{
		0x06: func(args *mailbox.Args) error {
			if args[0] != 1 || args[1] != 1 {
				return mailbox.ResultError{Code: mailbox.ResultInvalidArgument}
			}
			args[0] = uint32(base)
			args[1] = uint32(base >> 32)
			return nil
		},
		0x08: func(args *mailbox.Args) error {
			args[0] = version
			return nil
		},
		0x05: func(args *mailbox.Args) error { return nil },
	}}
}

func TestReadDirect64(t *testing.T) {
	const base = 0x4_2000_0000
	const version = 0x240903 // 0x518 bytes
	const size = 0x518

	cmd := matisseCommander(base, version)
	mapper := &fakeMapper{regions: map[uint64][]byte{base: pattern(size, 0x10)}}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	buf := make([]byte, size)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != size {
		t.Fatalf("Read = %d bytes, want %d", n, size)
	}
	if !bytes.Equal(buf, pattern(size, 0x10)) {
		t.Fatal("table contents do not match backing region")
	}

	geo, err := r.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if geo.Base != base || geo.Size != size || geo.Version != version || geo.AltSize != 0 {
		t.Errorf("geometry = %+v", geo)
	}
}

func TestGeometryDiscoveredOnce(t *testing.T) {
	const base = 0x4_2000_0000
	cmd := matisseCommander(base, 0x240903)
	mapper := &fakeMapper{regions: map[uint64][]byte{base: pattern(0x518, 0)}}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	buf := make([]byte, 0x518)
	for i := 0; i < 3; i++ {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
	}
	if got := cmd.count(0x06); got != 1 {
		t.Errorf("base discovery commands = %d, want 1", got)
	}
	if got := cmd.count(0x08); got != 1 {
		t.Errorf("version queries = %d, want 1", got)
	}
	if mapper.maps != 1 {
		t.Errorf("mappings opened = %d, want 1", mapper.maps)
	}
}

func TestUnknownVersionIsUnsupported(t *testing.T) {
	cmd := matisseCommander(0x4_2000_0000, 0xBADBEEF)
	r := NewReader(cmd, cpuid.Matisse, &fakeMapper{}, time.Second)

	_, err := r.Read(make([]byte, 0x2000))
	if !errors.Is(err, mailbox.ErrUnsupported) {
		t.Fatalf("Read error = %v, want unsupported", err)
	}
}

func TestInsufficientSizeNegotiation(t *testing.T) {
	const base = 0x4_2000_0000
	const size = 0x518
	cmd := matisseCommander(base, 0x240903)
	mapper := &fakeMapper{regions: map[uint64][]byte{base: pattern(size, 0)}}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	_, err := r.Read(make([]byte, size-1))
	if !errors.Is(err, mailbox.ErrInsufficientSize) {
		t.Fatalf("Read error = %v, want insufficient size", err)
	}
	var sizeErr SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("Read error = %T, want SizeError", err)
	}
	if sizeErr.Required != size {
		t.Fatalf("required size = %d, want %d", sizeErr.Required, size)
	}

	// A too-small buffer must not have triggered a refresh.
	if got := cmd.count(0x05); got != 0 {
		t.Errorf("transfer commands after failed negotiation = %d, want 0", got)
	}

	// Retrying with the reported size succeeds.
	n, err := r.Read(make([]byte, sizeErr.Required))
	if err != nil {
		t.Fatalf("Read after negotiation: %v", err)
	}
	if n != size {
		t.Fatalf("Read = %d bytes, want %d", n, size)
	}
}

func TestRefreshThrottle(t *testing.T) {
	const base = 0x4_2000_0000
	const size = 0x518
	cmd := matisseCommander(base, 0x240903)
	mapper := &fakeMapper{regions: map[uint64][]byte{base: pattern(size, 0)}}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	buf := make([]byte, size)

	// Two reads within the interval trigger exactly one transfer.
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	now = now.Add(500 * time.Millisecond)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := cmd.count(0x05); got != 1 {
		t.Fatalf("transfer commands = %d, want 1", got)
	}

	// A read beyond the interval triggers another.
	now = now.Add(501 * time.Millisecond)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := cmd.count(0x05); got != 2 {
		t.Fatalf("transfer commands = %d, want 2", got)
	}
}

func TestSplitHighLowDiscoveryAndMerge(t *testing.T) {
	const lowBase = 0x9000_0000
	const highBase = 0x0000_0004
	primarySize := splitPrimarySize
	secondarySize := splitSecondarySize

	cmd := &fakeCommander{handlers: map[uint32]func(*mailbox.Args) error{}}
	// The latch sequence: setOp(3), getOp(3) -> low; flushOp(3), setOp(5),
	// getOp(5) -> high.
	cmd.handlers[0x0A] = func(args *mailbox.Args) error { return nil }
	cmd.handlers[0x3D] = func(args *mailbox.Args) error { return nil }
	cmd.handlers[0x0B] = func(args *mailbox.Args) error {
		switch args[0] {
		case 3:
			args[0] = lowBase
		case 5:
			args[0] = highBase
		default:
			return mailbox.ResultError{Code: mailbox.ResultInvalidArgument}
		}
		return nil
	}

	mapper := &fakeMapper{regions: map[uint64][]byte{
		lowBase:  pattern(primarySize, 0x20),
		highBase: pattern(secondarySize, 0x80),
	}}
	r := NewReader(cmd, cpuid.Picasso, mapper, time.Second)

	total := primarySize + secondarySize
	buf := make([]byte, total)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != total {
		t.Fatalf("Read = %d bytes, want %d", n, total)
	}
	if !bytes.Equal(buf[:primarySize], pattern(primarySize, 0x20)) {
		t.Error("primary region mismatch")
	}
	if !bytes.Equal(buf[primarySize:], pattern(secondarySize, 0x80)) {
		t.Error("secondary region not appended after primary")
	}

	geo, err := r.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if geo.Base != lowBase || geo.AltBase != highBase {
		t.Errorf("geometry bases = %#x/%#x, want %#x/%#x", geo.Base, geo.AltBase, lowBase, highBase)
	}
	if geo.AltSize != uint32(secondarySize) || geo.Size != uint32(total) {
		t.Errorf("geometry sizes = %#x/%#x", geo.Size, geo.AltSize)
	}

	// The discovery sequence latches with 3 before 5, and both transfer
	// selectors (3 then 5) ran for the refresh.
	wantPrefix := []issuedCommand{
		{op: 0x0A, arg0: 3},
		{op: 0x0B, arg0: 3},
		{op: 0x3D, arg0: 3},
		{op: 0x0A, arg0: 5},
		{op: 0x0B, arg0: 5},
		{op: 0x3D, arg0: 3},
		{op: 0x3D, arg0: 5},
	}
	if len(cmd.issued) != len(wantPrefix) {
		t.Fatalf("issued %d commands, want %d: %+v", len(cmd.issued), len(wantPrefix), cmd.issued)
	}
	for i, want := range wantPrefix {
		if cmd.issued[i] != want {
			t.Errorf("command %d = %+v, want %+v", i, cmd.issued[i], want)
		}
	}
}

func TestMapFailureIsRetryable(t *testing.T) {
	const base = 0x4_2000_0000
	const size = 0x518
	cmd := matisseCommander(base, 0x240903)
	mapper := &fakeMapper{
		regions:  map[uint64][]byte{base: pattern(size, 0)},
		failures: 1,
	}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	buf := make([]byte, size)
	_, err := r.Read(buf)
	if !errors.Is(err, mailbox.ErrMapFailed) {
		t.Fatalf("Read error = %v, want map failure", err)
	}

	// Geometry stays valid; the next read retries the mapping and works
	// without re-discovery.
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read after map failure: %v", err)
	}
	if n != size {
		t.Fatalf("Read = %d bytes, want %d", n, size)
	}
	if got := cmd.count(0x06); got != 1 {
		t.Errorf("base discovery commands = %d, want 1", got)
	}
}

func TestUnsupportedCodenames(t *testing.T) {
	// Zen1 has discovery and refresh commands but no known size table.
	cmd := &fakeCommander{handlers: map[uint32]func(*mailbox.Args) error{
		0x0A: func(args *mailbox.Args) error {
			args[0] = 0x9000_0000
			args[1] = 0x4
			return nil
		},
	}}
	r := NewReader(cmd, cpuid.SummitRidge, &fakeMapper{}, time.Second)
	if _, err := r.Read(make([]byte, 0x2000)); !errors.Is(err, mailbox.ErrUnsupported) {
		t.Errorf("SummitRidge read error = %v, want unsupported", err)
	}

	// VanGogh has no PM table interface at all.
	r = NewReader(&fakeCommander{}, cpuid.VanGogh, &fakeMapper{}, time.Second)
	if _, err := r.Read(make([]byte, 0x2000)); !errors.Is(err, mailbox.ErrUnsupported) {
		t.Errorf("VanGogh read error = %v, want unsupported", err)
	}
}

func TestVersionQuery(t *testing.T) {
	cmd := matisseCommander(0x4_2000_0000, 0x240902)
	r := NewReader(cmd, cpuid.Matisse, &fakeMapper{}, time.Second)

	version, err := r.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != 0x240902 {
		t.Fatalf("Version = %#x, want 0x240902", version)
	}

	// Dali exposes no version command.
	r = NewReader(&fakeCommander{}, cpuid.Dali, &fakeMapper{}, time.Second)
	if _, err := r.Version(); !errors.Is(err, mailbox.ErrUnsupported) {
		t.Errorf("Dali Version error = %v, want unsupported", err)
	}
}

func TestCloseReleasesWindows(t *testing.T) {
	const base = 0x4_2000_0000
	const size = 0x518
	cmd := matisseCommander(base, 0x240903)
	mapper := &fakeMapper{regions: map[uint64][]byte{base: pattern(size, 0)}}
	r := NewReader(cmd, cpuid.Matisse, mapper, time.Second)

	buf := make([]byte, size)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mapper.unmaps != 1 {
		t.Errorf("unmaps = %d, want 1", mapper.unmaps)
	}

	// Reads keep working after Close by re-mapping.
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read after Close: %v", err)
	}
	if mapper.maps != 2 {
		t.Errorf("mappings opened = %d, want 2", mapper.maps)
	}
}

func TestClampRefreshInterval(t *testing.T) {
	cases := []struct{ in, want time.Duration }{
		{0, MinRefreshInterval},
		{MinRefreshInterval, MinRefreshInterval},
		{DefaultRefreshInterval, DefaultRefreshInterval},
		{MaxRefreshInterval + time.Second, MaxRefreshInterval},
	}
	for _, tc := range cases {
		if got := ClampRefreshInterval(tc.in); got != tc.want {
			t.Errorf("ClampRefreshInterval(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEveryPlanHasConsistentShape(t *testing.T) {
	for codename, p := range plans {
		if p.base == nil {
			t.Errorf("%s: no base discovery", codename)
		}
		if p.transferOp == 0 {
			t.Errorf("%s: no transfer opcode", codename)
		}
		if p.queryVersion && p.versionOp == 0 {
			t.Errorf("%s: queryVersion set without a version opcode", codename)
		}
		if p.sizes.altSize != 0 && p.altTransferArg == 0 {
			t.Errorf("%s: split table without a secondary transfer selector", codename)
		}
	}
}
