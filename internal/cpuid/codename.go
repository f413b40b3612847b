package cpuid

// Codename identifies one silicon generation with SMU support. The zero
// value is Undefined, meaning identification has not run (or was reset).
type Codename int

const (
	Undefined Codename = iota
	Colfax
	Renoir
	Picasso
	Matisse
	Threadripper
	CastlePeak
	RavenRidge
	RavenRidge2
	SummitRidge
	PinnacleRidge
	Rembrandt
	Vermeer
	VanGogh
	Cezanne
	Milan
	Dali
	Lucienne
	Naples
	Chagall
	Raphael
	Phoenix
	StrixPoint
	GraniteRidge
	HawkPoint
	StormPeak

	codenameCount
)

var codenameNames = map[Codename]string{
	Colfax:        "Colfax",
	Renoir:        "Renoir",
	Picasso:       "Picasso",
	Matisse:       "Matisse",
	Threadripper:  "ThreadRipper",
	CastlePeak:    "CastlePeak",
	RavenRidge:    "RavenRidge",
	RavenRidge2:   "RavenRidge2",
	SummitRidge:   "SummitRidge",
	PinnacleRidge: "PinnacleRidge",
	Rembrandt:     "Rembrandt",
	Vermeer:       "Vermeer",
	VanGogh:       "VanGogh",
	Cezanne:       "Cezanne",
	Milan:         "Milan",
	Dali:          "Dali",
	Lucienne:      "Lucienne",
	Naples:        "Naples",
	Chagall:       "Chagall",
	Raphael:       "Raphael",
	Phoenix:       "Phoenix",
	StrixPoint:    "StrixPoint",
	GraniteRidge:  "GraniteRidge",
	HawkPoint:     "HawkPoint",
	StormPeak:     "StormPeak",
}

func (c Codename) String() string {
	if name, ok := codenameNames[c]; ok {
		return name
	}
	return "Undefined"
}

// Valid reports whether c names a known silicon generation.
func (c Codename) Valid() bool {
	return c > Undefined && c < codenameCount
}
