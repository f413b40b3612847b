package pmtable

import "github.com/amkillam/ryzen-smu/internal/cpuid"

// Split-table models carry a large primary table and a small secondary one
// at a second physical address. Sizes are fixed across firmware revisions.
// Source: Ryzen Master.
const (
	splitSecondarySize = 0xA4
	splitPrimarySize   = 0x608
)

// Version-to-size allow-lists, shared between codenames on the same silicon.
// Source: Ryzen Master; these are exact, not guessed.
var (
	matisseSizes = map[uint32]uint32{
		0x240902: 0x514,
		0x240903: 0x518,
		0x240802: 0x7E0,
		0x240803: 0x7E4,
	}
	vermeerSizes = map[uint32]uint32{
		0x2D0903: 0x594,
		0x380904: 0x5A4,
		0x380005: 0x1BB0, // 64 core
		0x380505: 0xF30,  // 32 core
		0x380605: 0xC10,  // 24 core
		0x380705: 0x8F0,  // 16 core
		0x380905: 0x5D0,  // 8 core
		0x2D0803: 0x894,
		0x380804: 0x8A4,
		0x380805: 0x8F0,
	}
	milanSizes = map[uint32]uint32{
		0x2D0008: 0x1AB0,
	}
	renoirSizes = map[uint32]uint32{
		0x370000: 0x794,
		0x370001: 0x884,
		0x370002: 0x88C,
		0x370003: 0x88C,
		0x370004: 0x8AC,
		0x370005: 0x8F0,
	}
	cezanneSizes = map[uint32]uint32{
		0x400005: 0x944,
	}
	rembrandtSizes = map[uint32]uint32{
		0x450004: 0xA44,
		0x450005: 0xA44,
	}
	raphaelSizes = map[uint32]uint32{
		0x540104: 0x6A8,
		0x000400: 0x948,
	}
	phoenixSizes = map[uint32]uint32{
		0x4C0006: 0xAA0,
		0x4C0007: 0xAA0,
		0x4C0008: 0xAA0,
	}
	hawkPointSizes = map[uint32]uint32{
		0x4C0008: 0xA00,
	}
)

// Shared recipes for codename groups on identical silicon.
var (
	planZen1 = plan{
		base:       direct64{op: 0x0A},
		transferOp: 0x0A,
		// No known size table; reads report Unsupported.
	}
	planZen1Workstation = plan{
		base:           chained32{first: 0x0B, second: 0x0C},
		transferOp:     0x3D,
		transferArg:    3,
		altTransferArg: 5,
		// No known size table; reads report Unsupported.
	}
	planZen1APU = plan{
		base:           splitHighLow{setOp: 0x0A, flushOp: 0x3D, getOp: 0x0B},
		versionOp:      0x0C,
		transferOp:     0x3D,
		transferArg:    3,
		altTransferArg: 5,
		sizes: sizeRule{
			fixed:   splitPrimarySize + splitSecondarySize,
			altSize: splitSecondarySize,
		},
	}
)

func matissePlan(sizes map[uint32]uint32) plan {
	return plan{
		base:         direct64{op: 0x06},
		versionOp:    0x08,
		queryVersion: true,
		transferOp:   0x05,
		sizes:        sizeRule{byVersion: sizes},
	}
}

func renoirPlan(sizes map[uint32]uint32, fixed uint32, transferArg uint32) plan {
	return plan{
		base:         direct64{op: 0x66},
		versionOp:    0x06,
		queryVersion: true,
		transferOp:   0x65,
		transferArg:  transferArg,
		sizes:        sizeRule{byVersion: sizes, fixed: fixed},
	}
}

// plans selects, per codename, the discovery/version/refresh recipe.
// Codenames with no entry (VanGogh, StormPeak) have no reachable RSMU PM
// table interface.
var plans = map[cpuid.Codename]plan{
	cpuid.Naples:       planZen1,
	cpuid.SummitRidge:  planZen1,
	cpuid.Threadripper: planZen1,

	cpuid.Colfax:        planZen1Workstation,
	cpuid.PinnacleRidge: planZen1Workstation,

	cpuid.RavenRidge:  planZen1APU,
	cpuid.Picasso:     planZen1APU,
	cpuid.RavenRidge2: func() plan { p := planZen1APU; p.versionOp = 0; return p }(),
	cpuid.Dali: func() plan {
		// Dali shares the latch sequence but no table size is known.
		p := planZen1APU
		p.versionOp = 0
		p.sizes = sizeRule{}
		return p
	}(),

	cpuid.Matisse:    matissePlan(matisseSizes),
	cpuid.CastlePeak: matissePlan(matisseSizes),
	cpuid.Vermeer:    matissePlan(vermeerSizes),
	cpuid.Chagall:    matissePlan(vermeerSizes),
	cpuid.Milan:      matissePlan(milanSizes),

	cpuid.Raphael: {
		base:         direct64{op: 0x04},
		versionOp:    0x05,
		queryVersion: true,
		transferOp:   0x03,
		sizes:        sizeRule{byVersion: raphaelSizes},
	},
	cpuid.GraniteRidge: {
		base:         direct64{op: 0x04},
		versionOp:    0x05,
		queryVersion: true,
		transferOp:   0x03,
		sizes:        sizeRule{fixed: 0x948},
	},

	cpuid.Renoir:     renoirPlan(renoirSizes, 0, 3),
	cpuid.Lucienne:   renoirPlan(renoirSizes, 0, 3),
	cpuid.Cezanne:    renoirPlan(cezanneSizes, 0, 0),
	cpuid.Rembrandt:  renoirPlan(rembrandtSizes, 0, 3),
	cpuid.Phoenix:    renoirPlan(phoenixSizes, 0, 3),
	cpuid.HawkPoint:  renoirPlan(hawkPointSizes, 0, 3),
	cpuid.StrixPoint: renoirPlan(nil, 0xAA0, 3),
}
