// Package pmtable discovers, refreshes and reads the power-management
// telemetry table the SMU maintains in a fixed DRAM region.
package pmtable

import (
	"fmt"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
	"github.com/amkillam/ryzen-smu/internal/mailbox"
)

// Commander issues mailbox commands. Satisfied by *mailbox.Executor.
type Commander interface {
	Exec(op uint32, args *mailbox.Args, kind mailbox.Kind) error
}

// Geometry describes where the PM table lives and how big it is. The base
// addresses are stable for the process lifetime (fixed at boot by firmware),
// so geometry is discovered once and cached.
type Geometry struct {
	Base    uint64 // physical base of the primary region
	AltBase uint64 // physical base of the secondary region, split models only
	Size    uint32 // total byte size, secondary region included
	AltSize uint32 // secondary region byte size, zero when not split
	Version uint32 // format tag, zero when the codename has no version query
}

// baseQuery is one strategy for retrieving the table's physical base
// address from the RSMU mailbox.
type baseQuery interface {
	queryBase(c Commander) (uint64, error)
}

// direct64 issues a single command whose two result words carry the 64-bit
// base, low word first. Both leading arguments are preset to 1.
type direct64 struct {
	op uint32
}

func (q direct64) queryBase(c Commander) (uint64, error) {
	args := mailbox.Args{1, 1}
	if err := c.Exec(q.op, &args, mailbox.RSMU); err != nil {
		return 0, err
	}
	return uint64(args[0]) | uint64(args[1])<<32, nil
}

// chained32 issues two commands in sequence; the second's first result word
// is a 32-bit base.
type chained32 struct {
	first  uint32
	second uint32
}

func (q chained32) queryBase(c Commander) (uint64, error) {
	args := mailbox.Args{}
	if err := c.Exec(q.first, &args, mailbox.RSMU); err != nil {
		return 0, err
	}
	args = mailbox.Args{}
	if err := c.Exec(q.second, &args, mailbox.RSMU); err != nil {
		return 0, err
	}
	return uint64(args[0]), nil
}

// splitHighLow latches the low and high halves of the base separately: a
// selector value of 3 yields the low word, 5 the high word, each latched
// through setOp (and a flushOp between halves) before getOp reads it out.
type splitHighLow struct {
	setOp   uint32
	flushOp uint32
	getOp   uint32
}

func (q splitHighLow) queryBase(c Commander) (uint64, error) {
	run := func(op, selector uint32) (uint32, error) {
		args := mailbox.NewArgs(selector)
		if err := c.Exec(op, &args, mailbox.RSMU); err != nil {
			return 0, err
		}
		return args[0], nil
	}

	// Low half: select 3, read out.
	if _, err := run(q.setOp, 3); err != nil {
		return 0, err
	}
	low, err := run(q.getOp, 3)
	if err != nil {
		return 0, err
	}

	// High half: flush, re-latch with 5, read out.
	if _, err := run(q.flushOp, 3); err != nil {
		return 0, err
	}
	if _, err := run(q.setOp, 5); err != nil {
		return 0, err
	}
	high, err := run(q.getOp, 5)
	if err != nil {
		return 0, err
	}

	return uint64(high)<<32 | uint64(low), nil
}

// plan is the full per-codename recipe: how to find the base, whether and
// how to query the format version, which opcode refreshes the table, and
// how to derive the byte size.
type plan struct {
	base baseQuery

	// versionOp queries the table format tag; zero when the codename has
	// no such command. queryVersion marks codenames whose geometry
	// discovery records the tag (size lookup or informational).
	versionOp    uint32
	queryVersion bool

	// transferOp copies the table from SMU SRAM into DRAM. transferArg is
	// the table selector; altTransferArg selects the secondary table on
	// split models.
	transferOp     uint32
	transferArg    uint32
	altTransferArg uint32

	sizes sizeRule
}

// sizeRule derives the table byte size. Exactly one of fixed/byVersion is
// set; neither set means reads are unsupported for the codename even though
// discovery or refresh commands may exist.
type sizeRule struct {
	fixed     uint32
	byVersion map[uint32]uint32
	altSize   uint32 // secondary table size on split models
}

func (r sizeRule) resolve(version uint32) (uint32, error) {
	if r.fixed != 0 {
		return r.fixed, nil
	}
	if r.byVersion != nil {
		size, ok := r.byVersion[version]
		if !ok {
			// The size tables are an allow-list. Guessing a size for an
			// unknown firmware revision risks reading past the real table
			// in physical memory.
			return 0, fmt.Errorf("unknown PM table version %#08x: %w", version, mailbox.ErrUnsupported)
		}
		return size, nil
	}
	return 0, mailbox.ErrUnsupported
}

func lookupPlan(codename cpuid.Codename) (plan, bool) {
	p, ok := plans[codename]
	return p, ok
}
