package cpuid

import (
	"errors"
	"sync"
	"testing"
)

// countingLeafReader serves canned leaf values and counts reads so tests
// can observe how often identification touches the hardware.
type countingLeafReader struct {
	mu    sync.Mutex
	eax   uint32 // leaf 0x00000001 EAX
	ebx   uint32 // leaf 0x80000001 EBX
	err   error
	calls int
}

func (r *countingLeafReader) Leaf(fn uint32) (uint32, uint32, uint32, uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, 0, 0, 0, r.err
	}
	switch fn {
	case leafVersionInfo:
		return r.eax, 0, 0, 0, nil
	case leafExtendedInfo:
		return 0, r.ebx, 0, 0, nil
	}
	return 0, 0, 0, 0, nil
}

func (r *countingLeafReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestDecode(t *testing.T) {
	// Matisse: base family 0xF + extended 0x8 = 0x17, extended model 0x7
	// over base model 0x1 = 0x71, stepping 0, package type AM4 (2).
	id := Decode(0x00870F10, 2<<28)
	if id.Family != 0x17 {
		t.Errorf("family = %#x, want 0x17", id.Family)
	}
	if id.Model != 0x71 {
		t.Errorf("model = %#x, want 0x71", id.Model)
	}
	if id.Stepping != 0 {
		t.Errorf("stepping = %#x, want 0", id.Stepping)
	}
	if id.PkgType != 2 {
		t.Errorf("package type = %#x, want 2", id.PkgType)
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		family, model, pkg uint32
		want               Codename
	}{
		{0x17, 0x01, 7, Threadripper},
		{0x17, 0x01, 4, Naples},
		{0x17, 0x01, 2, SummitRidge},
		{0x17, 0x08, 7, Colfax},
		{0x17, 0x08, 4, Colfax},
		{0x17, 0x08, 2, PinnacleRidge},
		{0x17, 0x11, 0, RavenRidge},
		{0x17, 0x18, 2, RavenRidge2},
		{0x17, 0x18, 0, Picasso},
		{0x17, 0x20, 0, Dali},
		{0x17, 0x31, 7, CastlePeak},
		{0x17, 0x60, 0, Renoir},
		{0x17, 0x68, 0, Lucienne},
		{0x17, 0x71, 2, Matisse},
		{0x17, 0x90, 0, VanGogh},
		{0x19, 0x01, 4, Milan},
		{0x19, 0x08, 7, Chagall},
		{0x19, 0x20, 2, Vermeer},
		{0x19, 0x21, 2, Vermeer},
		{0x19, 0x40, 0, Rembrandt},
		{0x19, 0x44, 0, Rembrandt},
		{0x19, 0x50, 0, Cezanne},
		{0x19, 0x61, 2, Raphael},
		{0x19, 0x74, 0, Phoenix},
		{0x19, 0x75, 0, HawkPoint},
		{0x1a, 0x24, 0, StrixPoint},
		{0x1a, 0x44, 2, GraniteRidge},
	}

	for _, tc := range cases {
		id := Identity{Family: tc.family, Model: tc.model, PkgType: tc.pkg}
		got, err := Resolve(id)
		if err != nil {
			t.Errorf("Resolve(%#x, %#x, %d): unexpected error: %v", tc.family, tc.model, tc.pkg, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%#x, %#x, %d) = %s, want %s", tc.family, tc.model, tc.pkg, got, tc.want)
		}

		// Resolution is deterministic: a second call must agree.
		again, err := Resolve(id)
		if err != nil || again != got {
			t.Errorf("Resolve(%#x, %#x, %d) not deterministic: %s vs %s (err %v)",
				tc.family, tc.model, tc.pkg, got, again, err)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	cases := []Identity{
		{Family: 0x16, Model: 0x01},             // pre-Zen family
		{Family: 0x17, Model: 0x42},             // unknown Zen2 model
		{Family: 0x19, Model: 0x99},             // unknown Zen3/4 model
		{Family: 0x1a, Model: 0x99},             // unknown Zen5 model
		{Family: 0x1b, Model: 0x01, PkgType: 2}, // future family
	}
	for _, id := range cases {
		got, err := Resolve(id)
		if err == nil {
			t.Errorf("Resolve(%#x, %#x, %d) = %s, want error", id.Family, id.Model, id.PkgType, got)
		}
		if got != Undefined {
			t.Errorf("Resolve(%#x, %#x, %d) returned %s with error", id.Family, id.Model, id.PkgType, got)
		}
	}
}

func TestResolverCachesResult(t *testing.T) {
	leaves := &countingLeafReader{eax: 0x00870F10, ebx: 2 << 28}
	r := NewResolver(leaves)

	first, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != Matisse {
		t.Fatalf("Resolve = %s, want Matisse", first)
	}
	if got := leaves.callCount(); got != 2 {
		t.Fatalf("leaf reads after first Resolve = %d, want 2", got)
	}

	second, err := r.Resolve()
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second != first {
		t.Fatalf("second Resolve = %s, want %s", second, first)
	}
	if got := leaves.callCount(); got != 2 {
		t.Errorf("leaf reads after second Resolve = %d, want 2 (cached)", got)
	}
}

func TestResolverRetriesAfterFailure(t *testing.T) {
	leaves := &countingLeafReader{err: errors.New("device busy")}
	r := NewResolver(leaves)

	if _, err := r.Resolve(); err == nil {
		t.Fatal("Resolve succeeded with failing leaf reader")
	}

	leaves.mu.Lock()
	leaves.err = nil
	leaves.eax = 0x00870F10
	leaves.ebx = 2 << 28
	leaves.mu.Unlock()

	codename, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve after recovery: %v", err)
	}
	if codename != Matisse {
		t.Fatalf("Resolve = %s, want Matisse", codename)
	}
}

func TestResolverReset(t *testing.T) {
	leaves := &countingLeafReader{eax: 0x00870F10, ebx: 2 << 28}
	r := NewResolver(leaves)

	if _, err := r.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r.Reset()
	if _, err := r.Resolve(); err != nil {
		t.Fatalf("Resolve after Reset: %v", err)
	}
	if got := leaves.callCount(); got != 4 {
		t.Errorf("leaf reads = %d, want 4 (re-read after Reset)", got)
	}
}

func TestCodenameStrings(t *testing.T) {
	if got := Undefined.String(); got != "Undefined" {
		t.Errorf("Undefined.String() = %q", got)
	}
	if got := Matisse.String(); got != "Matisse" {
		t.Errorf("Matisse.String() = %q", got)
	}
	for c := Codename(1); c < codenameCount; c++ {
		if !c.Valid() {
			t.Errorf("%d should be valid", c)
		}
		if c.String() == "Undefined" {
			t.Errorf("codename %d has no name", c)
		}
	}
	if Codename(999).Valid() {
		t.Error("out-of-range codename reported valid")
	}
}
