// Package cpuid maps raw processor identification bits to the silicon
// codename that selects SMU mailbox layouts and PM table geometry.
//
// References:
//   - https://en.wikichip.org/wiki/amd/cpuid
//   - AMD64 APM Volume 3, Appendix E "Obtaining Processor Information"
package cpuid

import (
	"fmt"
	"log/slog"
	"sync"
)

// CPUID leaves consumed by identification. Leaf 1 EAX carries the packed
// family/model/stepping fields, extended leaf 0x80000001 EBX carries the
// package type in its top nibble.
const (
	leafVersionInfo  = 0x00000001
	leafExtendedInfo = 0x80000001
)

// LeafReader supplies raw CPUID leaves. Implementations must be safe for
// concurrent use.
type LeafReader interface {
	Leaf(fn uint32) (eax, ebx, ecx, edx uint32, err error)
}

// Identity holds the decoded identification fields used to pick a codename.
type Identity struct {
	Family   uint32 // base + extended family
	Model    uint32 // extended model high nibble | base model
	Stepping uint32
	PkgType  uint32 // CPUID_Fn80000001_EBX[31:28]
}

// Decode combines the split base/extended fields of leaf 1 EAX and the
// package-type nibble of leaf 0x80000001 EBX into an Identity.
func Decode(versionEAX, extendedEBX uint32) Identity {
	return Identity{
		Family:   ((versionEAX & 0xf00) >> 8) + ((versionEAX & 0xff00000) >> 20),
		Model:    ((versionEAX & 0xf0000) >> 12) + ((versionEAX & 0xf0) >> 4),
		Stepping: versionEAX & 0xf,
		PkgType:  extendedEBX >> 28,
	}
}

// Resolve maps an Identity to its Codename. It is a total deterministic
// function of (family, model, package type); unknown tuples return an error.
func Resolve(id Identity) (Codename, error) {
	switch id.Family {
	case 0x17: // Zen / Zen+ / Zen2
		switch id.Model {
		case 0x01:
			switch id.PkgType {
			case 7:
				return Threadripper, nil
			case 4:
				return Naples, nil
			default:
				return SummitRidge, nil
			}
		case 0x08:
			if id.PkgType == 7 || id.PkgType == 4 {
				return Colfax, nil
			}
			return PinnacleRidge, nil
		case 0x11:
			return RavenRidge, nil
		case 0x18:
			if id.PkgType == 2 {
				return RavenRidge2, nil
			}
			return Picasso, nil
		case 0x20:
			return Dali, nil
		case 0x31:
			return CastlePeak, nil
		case 0x60:
			return Renoir, nil
		case 0x68:
			return Lucienne, nil
		case 0x71:
			return Matisse, nil
		case 0x90:
			return VanGogh, nil
		}
		return Undefined, fmt.Errorf("unknown Zen/Zen+/Zen2 model %#x (package %#x)", id.Model, id.PkgType)
	case 0x19: // Zen3 / Zen4
		switch id.Model {
		case 0x01:
			return Milan, nil
		case 0x08:
			return Chagall, nil
		case 0x20, 0x21:
			return Vermeer, nil
		case 0x40, 0x44:
			return Rembrandt, nil
		case 0x50:
			return Cezanne, nil
		case 0x61:
			return Raphael, nil
		case 0x74:
			return Phoenix, nil
		case 0x75:
			return HawkPoint, nil
		}
		return Undefined, fmt.Errorf("unknown Zen3/Zen4 model %#x (package %#x)", id.Model, id.PkgType)
	case 0x1a: // Zen5 / Zen6
		switch id.Model {
		case 0x24:
			return StrixPoint, nil
		case 0x44:
			return GraniteRidge, nil
		}
		return Undefined, fmt.Errorf("unknown Zen5/Zen6 model %#x (package %#x)", id.Model, id.PkgType)
	}
	return Undefined, fmt.Errorf("unsupported processor family %#x", id.Family)
}

// Resolver runs identification against a LeafReader exactly once per
// lifetime. Hardware identity cannot change at runtime, so a second call
// returns the cached result without touching the reader again.
type Resolver struct {
	leaves LeafReader

	mu       sync.Mutex
	resolved bool
	codename Codename
	identity Identity
}

// NewResolver returns a Resolver reading raw leaves from r.
func NewResolver(r LeafReader) *Resolver {
	return &Resolver{leaves: r}
}

// Resolve identifies the processor, caching the result. Failures are not
// cached; a later call retries the leaf reads.
func (r *Resolver) Resolve() (Codename, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.codename, nil
	}

	eax, _, _, _, err := r.leaves.Leaf(leafVersionInfo)
	if err != nil {
		return Undefined, fmt.Errorf("read cpuid leaf %#x: %w", leafVersionInfo, err)
	}
	_, ebx, _, _, err := r.leaves.Leaf(leafExtendedInfo)
	if err != nil {
		return Undefined, fmt.Errorf("read cpuid leaf %#x: %w", leafExtendedInfo, err)
	}

	id := Decode(eax, ebx)
	slog.Debug("cpuid: identified processor",
		"family", fmt.Sprintf("%#x", id.Family),
		"model", fmt.Sprintf("%#x", id.Model),
		"stepping", fmt.Sprintf("%#x", id.Stepping),
		"package", fmt.Sprintf("%#x", id.PkgType))

	codename, err := Resolve(id)
	if err != nil {
		return Undefined, err
	}

	r.resolved = true
	r.codename = codename
	r.identity = id
	return codename, nil
}

// Identity returns the decoded identification fields from the last
// successful Resolve. The zero Identity is returned before resolution.
func (r *Resolver) Identity() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Reset discards the cached result, forcing the next Resolve to re-read
// the leaves.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = false
	r.codename = Undefined
	r.identity = Identity{}
}
