package ring

import "github.com/vampirenirmal/storyweave/internal/domain"

// Include selects which rings carry content in the packet. Ablation
// builds zero out the excluded rings rather than omitting them, so the
// packet shape never changes.
type Include string

const (
	IncludeAll   Include = "all"
	IncludeRingA Include = "ringA"
	IncludeRingB Include = "ringB"
	IncludeRingC Include = "ringC"
)

func (i Include) Valid() bool {
	switch i {
	case IncludeAll, IncludeRingA, IncludeRingB, IncludeRingC:
		return true
	}
	return false
}

// ApplyInclude zeroes the rings the include mode excludes. Unknown
// modes behave like "all".
func ApplyInclude(include Include, ringA domain.RingA, ringB domain.RingB, ringC domain.RingC) (domain.RingA, domain.RingB, domain.RingC) {
	switch include {
	case IncludeRingA:
		return ringA, domain.EmptyRingB(), domain.EmptyRingC()
	case IncludeRingB:
		return domain.EmptyRingA(), ringB, domain.EmptyRingC()
	case IncludeRingC:
		return domain.EmptyRingA(), domain.EmptyRingB(), ringC
	default:
		return ringA, ringB, ringC
	}
}
