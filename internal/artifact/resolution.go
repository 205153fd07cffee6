package artifact

import (
	"encoding/json"
	"path/filepath"
)

// Resolution is the requested fidelity tier for tiered artifacts.
type Resolution string

const (
	ResolutionAuto   Resolution = "auto"
	ResolutionTiny   Resolution = "tiny"
	ResolutionMedium Resolution = "medium"
	ResolutionFull   Resolution = "full"
)

// Valid reports whether r names a known resolution strategy.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionAuto, ResolutionTiny, ResolutionMedium, ResolutionFull:
		return true
	}
	return false
}

// Order returns the tier fallback sequence for the requested resolution:
// the requested tier first, then the remaining tiers in a fixed order.
// Auto (and anything unrecognized) behaves as tiny-first.
func (r Resolution) Order() []Resolution {
	switch r {
	case ResolutionMedium:
		return []Resolution{ResolutionMedium, ResolutionTiny, ResolutionFull}
	case ResolutionFull:
		return []Resolution{ResolutionFull, ResolutionMedium, ResolutionTiny}
	default:
		return []Resolution{ResolutionTiny, ResolutionMedium, ResolutionFull}
	}
}

// Normalize maps a strategy to the concrete tier recorded in provenance:
// auto and unknown values record as tiny.
func (r Resolution) Normalize() Resolution {
	switch r {
	case ResolutionTiny, ResolutionMedium, ResolutionFull:
		return r
	}
	return ResolutionTiny
}

// SelectTiered tries <dir>/<tier>.json in the fallback order for the
// requested resolution and returns the first tier present. Absence of all
// tiers is not an error.
func SelectTiered(dir string, requested Resolution) (json.RawMessage, Resolution, bool, error) {
	for _, tier := range requested.Order() {
		path := filepath.Join(dir, string(tier)+".json")
		raw, ok, err := ReadOptional(path)
		if err != nil {
			return nil, "", false, err
		}
		if ok {
			return raw, tier, true, nil
		}
	}
	return nil, "", false, nil
}
