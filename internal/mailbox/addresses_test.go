package mailbox

import (
	"testing"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
)

func TestLookupCoversEveryResolvableCodename(t *testing.T) {
	// StormPeak appears in the codename enumeration but identification
	// never produces it, so it carries no layout.
	for c := cpuid.Undefined + 1; c.Valid(); c++ {
		if c == cpuid.StormPeak {
			continue
		}
		set, ok := Lookup(c)
		if !ok {
			t.Errorf("no mailbox layout for %s", c)
			continue
		}
		// MP1 is mandatory everywhere.
		if !set.MP1.Present() {
			t.Errorf("%s: MP1 mailbox missing", c)
		}
		if set.IF == IFVersionUnknown {
			t.Errorf("%s: MP1 interface version unresolved", c)
		}
	}

	if _, ok := Lookup(cpuid.Undefined); ok {
		t.Error("Lookup(Undefined) returned a layout")
	}
}

func TestAddressTriplesAllOrNothing(t *testing.T) {
	for c := cpuid.Undefined + 1; c.Valid(); c++ {
		set, ok := Lookup(c)
		if !ok {
			continue
		}
		for _, kind := range []Kind{RSMU, MP1, HSMP} {
			a := set.Lookup(kind)
			zeroes := 0
			for _, reg := range []uint32{a.Cmd, a.Rsp, a.Args} {
				if reg == 0 {
					zeroes++
				}
			}
			if zeroes != 0 && zeroes != 3 {
				t.Errorf("%s %s: partial address triple %+v", c, kind, a)
			}
			if a.Present() != (zeroes == 0) {
				t.Errorf("%s %s: Present() inconsistent with triple %+v", c, kind, a)
			}
		}
	}
}

func TestKnownLayouts(t *testing.T) {
	matisse, ok := Lookup(cpuid.Matisse)
	if !ok {
		t.Fatal("no layout for Matisse")
	}
	if matisse.RSMU != (Addresses{Cmd: 0x3B10524, Rsp: 0x3B10570, Args: 0x3B10A40}) {
		t.Errorf("Matisse RSMU = %+v", matisse.RSMU)
	}
	if matisse.MP1 != (Addresses{Cmd: 0x3B10530, Rsp: 0x3B1057C, Args: 0x3B109C4}) {
		t.Errorf("Matisse MP1 = %+v", matisse.MP1)
	}
	if !matisse.HSMP.Present() {
		t.Error("Matisse HSMP missing")
	}
	if matisse.IF != IFVersion11 {
		t.Errorf("Matisse IF version = %s, want v11", matisse.IF)
	}

	vangogh, ok := Lookup(cpuid.VanGogh)
	if !ok {
		t.Fatal("no layout for VanGogh")
	}
	if vangogh.RSMU.Present() {
		t.Error("VanGogh should have no RSMU mailbox")
	}
	if vangogh.HSMP.Present() {
		t.Error("VanGogh should have no HSMP mailbox")
	}

	strix, ok := Lookup(cpuid.StrixPoint)
	if !ok {
		t.Fatal("no layout for StrixPoint")
	}
	if strix.MP1 != (Addresses{Cmd: 0x3B10928, Rsp: 0x3B10978, Args: 0x3B10998}) {
		t.Errorf("StrixPoint MP1 = %+v", strix.MP1)
	}
}
