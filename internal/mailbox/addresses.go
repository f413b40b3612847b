// Package mailbox implements the host side of the SMU request/response
// mailbox protocol: per-codename register layouts and the polled command
// handshake over the SMN transport.
package mailbox

import "github.com/amkillam/ryzen-smu/internal/cpuid"

// Kind selects one of the independent SMU mailboxes.
type Kind int

const (
	// RSMU is the general-purpose mailbox, used among other things for PM
	// table discovery and refresh. Optional; not all silicon exposes it.
	RSMU Kind = iota
	// MP1 is the power-management firmware mailbox, present everywhere.
	MP1
	// HSMP is the host system management port found on server and
	// high-end desktop parts.
	HSMP
)

func (k Kind) String() string {
	switch k {
	case RSMU:
		return "RSMU"
	case MP1:
		return "MP1"
	case HSMP:
		return "HSMP"
	}
	return "unknown"
}

// IFVersion is the MP1 interface version, which selects opcode numbering
// for some PM-table operations.
type IFVersion int

const (
	IFVersionUnknown IFVersion = iota
	IFVersion9
	IFVersion10
	IFVersion11
	IFVersion12
	IFVersion13
)

func (v IFVersion) String() string {
	switch v {
	case IFVersion9:
		return "v9"
	case IFVersion10:
		return "v10"
	case IFVersion11:
		return "v11"
	case IFVersion12:
		return "v12"
	case IFVersion13:
		return "v13"
	}
	return "unknown"
}

// Addresses is the SMN register triple of one mailbox. A zero triple means
// the mailbox is not implemented on the codename; issuing commands against
// it fails with Unsupported before any transport access.
type Addresses struct {
	Cmd  uint32 // command (message ID) register
	Rsp  uint32 // response register
	Args uint32 // base of the six-dword argument block
}

// Present reports whether the mailbox exists on this codename.
func (a Addresses) Present() bool {
	return a.Cmd != 0 && a.Rsp != 0 && a.Args != 0
}

// Set carries all mailbox layouts resolved for one codename.
type Set struct {
	RSMU Addresses
	MP1  Addresses
	HSMP Addresses

	// MP1 interface version, consumed by PM-table geometry logic.
	IF IFVersion
}

// Lookup returns k's register triple from the set.
func (s Set) Lookup(k Kind) Addresses {
	switch k {
	case RSMU:
		return s.RSMU
	case MP1:
		return s.MP1
	case HSMP:
		return s.HSMP
	}
	return Addresses{}
}

// Shared register layouts. Several codenames map to the same physical
// offsets, reflecting shared silicon designs.
var (
	rsmuZen1    = Addresses{Cmd: 0x3B1051C, Rsp: 0x3B10568, Args: 0x3B10590}
	rsmuMatisse = Addresses{Cmd: 0x3B10524, Rsp: 0x3B10570, Args: 0x3B10A40}
	rsmuAPU     = Addresses{Cmd: 0x3B10A20, Rsp: 0x3B10A80, Args: 0x3B10A88}

	hsmpMatisse = Addresses{Cmd: 0x3B10534, Rsp: 0x3B10980, Args: 0x3B109E0}

	mp1V9    = Addresses{Cmd: 0x3B10528, Rsp: 0x3B10564, Args: 0x3B10598}
	mp1V10   = Addresses{Cmd: 0x3B10528, Rsp: 0x3B10564, Args: 0x3B10998}
	mp1V11   = Addresses{Cmd: 0x3B10530, Rsp: 0x3B1057C, Args: 0x3B109C4}
	mp1V12   = Addresses{Cmd: 0x3B10528, Rsp: 0x3B10564, Args: 0x3B10998}
	mp1V13   = Addresses{Cmd: 0x3B10528, Rsp: 0x3B10578, Args: 0x3B10998}
	mp1Strix = Addresses{Cmd: 0x3B10928, Rsp: 0x3B10978, Args: 0x3B10998}
)

// addressTable maps each supported codename to its mailbox layouts.
var addressTable = map[cpuid.Codename]Set{
	// Zen / Zen+
	cpuid.Colfax:        {RSMU: rsmuZen1, MP1: mp1V9, IF: IFVersion9},
	cpuid.Naples:        {RSMU: rsmuZen1, MP1: mp1V9, IF: IFVersion9},
	cpuid.SummitRidge:   {RSMU: rsmuZen1, MP1: mp1V9, IF: IFVersion9},
	cpuid.Threadripper:  {RSMU: rsmuZen1, MP1: mp1V9, IF: IFVersion9},
	cpuid.PinnacleRidge: {RSMU: rsmuZen1, MP1: mp1V9, IF: IFVersion9},

	// Zen / Zen+ APUs
	cpuid.RavenRidge:  {RSMU: rsmuAPU, MP1: mp1V10, IF: IFVersion10},
	cpuid.RavenRidge2: {RSMU: rsmuAPU, MP1: mp1V10, IF: IFVersion10},
	cpuid.Picasso:     {RSMU: rsmuAPU, MP1: mp1V10, IF: IFVersion10},
	cpuid.Dali:        {RSMU: rsmuAPU, MP1: mp1V10, IF: IFVersion10},

	// Zen2 / Zen3 / Zen4 / Zen5 desktop and server
	cpuid.Matisse:      {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.CastlePeak:   {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.Vermeer:      {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.Milan:        {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.Chagall:      {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.Raphael:      {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},
	cpuid.GraniteRidge: {RSMU: rsmuMatisse, HSMP: hsmpMatisse, MP1: mp1V11, IF: IFVersion11},

	// Zen2 / Zen3 APUs
	cpuid.Renoir:   {RSMU: rsmuAPU, MP1: mp1V12, IF: IFVersion12},
	cpuid.Lucienne: {RSMU: rsmuAPU, MP1: mp1V12, IF: IFVersion12},
	cpuid.Cezanne:  {RSMU: rsmuAPU, MP1: mp1V12, IF: IFVersion12},

	// Zen3+ / Zen4 / Zen5 APUs
	cpuid.VanGogh:    {MP1: mp1V13, IF: IFVersion13},
	cpuid.Rembrandt:  {RSMU: rsmuAPU, MP1: mp1V13, IF: IFVersion13},
	cpuid.Phoenix:    {RSMU: rsmuAPU, MP1: mp1V13, IF: IFVersion13},
	cpuid.HawkPoint:  {RSMU: rsmuAPU, MP1: mp1V13, IF: IFVersion13},
	cpuid.StrixPoint: {RSMU: rsmuAPU, MP1: mp1Strix, IF: IFVersion13},
}

// Lookup resolves the mailbox layouts for a codename. ok is false when the
// codename has no known layout (a failed identification or silicon this
// table has no entries for).
func Lookup(codename cpuid.Codename) (Set, bool) {
	set, ok := addressTable[codename]
	return set, ok
}
