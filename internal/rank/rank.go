// Package rank implements the comparator that orders candidate covers
// by relevance, matching a reference image, and closeness to a target
// size.
package rank

import (
	"covergrab/internal/cover"
	"covergrab/internal/phash"
)

// Mode selects which of the comparator's target-size-dependent steps
// apply.
type Mode int

const (
	// Reference mode is used to pick which candidate's perceptual hash
	// becomes the reference hash; it skips every target-size-dependent
	// step.
	Reference Mode = iota
	// Search mode is the full comparator used to sort final results.
	Search
)

// aspectTolerance is the maximum aspect-ratio difference step 1
// ignores; beyond it, the squarer cover always wins regardless of mode.
const aspectTolerance = 0.15

// HashLookup resolves a cover's computed perceptual hash, if any.
type HashLookup func(cover.Cover) (phash.Hash, bool)

// Params bundles the mode-dependent inputs Compare needs beyond the
// two covers being compared.
type Params struct {
	Mode          Mode
	ReferenceHash phash.Hash
	HaveReference bool
	Hashes        HashLookup
	TargetSize    float64
}

// Compare returns <0 if a should sort before b (a is "better"), >0 if
// b is better, 0 if the two are equivalent under every step. Steps are
// applied in sequence; the first one that decides wins.
func Compare(a, b cover.Cover, p Params) int {
	if d := compareAspectRatio(a, b); d != 0 {
		return d
	}

	if p.Mode == Search {
		if d := compareReferenceSimilarity(a, b, p); d != 0 {
			return d
		}
		if d := compareAboveTarget(a, b, p.TargetSize); d != 0 {
			return d
		}
		if d := compareBothBelowTarget(a, b, p.TargetSize); d != 0 {
			return d
		}
	}

	if d := compareRelevance(a, b); d != 0 {
		return d
	}
	if d := compareRank(a, b); d != 0 {
		return d
	}
	if d := compareSizeCertainty(a, b); d != 0 {
		return d
	}
	if d := compareFormatCertainty(a, b); d != 0 {
		return d
	}

	if p.Mode == Search {
		if d := compareCloserToTarget(a, b, p.TargetSize); d != 0 {
			return d
		}
	}

	if d := compareFormatPreference(a, b); d != 0 {
		return d
	}
	return compareAspectRatioTiebreak(a, b)
}

func ratio(c cover.Cover) float64 {
	if !c.Size.Value().Valid() {
		return 0
	}
	return c.Size.Value().Ratio()
}

func avg(c cover.Cover) float64 {
	return c.Size.Value().Avg()
}

// better returns a value with the same sign convention as Compare:
// negative means x beats y, positive means y beats x.
func better(xBetter, yBetter bool) int {
	switch {
	case xBetter:
		return -1
	case yBetter:
		return 1
	default:
		return 0
	}
}

func compareAspectRatio(a, b cover.Cover) int {
	ra, rb := ratio(a), ratio(b)
	if abs(ra-rb) <= aspectTolerance {
		return 0
	}
	return better(ra < rb, rb < ra)
}

func compareAspectRatioTiebreak(a, b cover.Cover) int {
	ra, rb := ratio(a), ratio(b)
	return better(ra < rb, rb < ra)
}

func compareReferenceSimilarity(a, b cover.Cover, p Params) int {
	if !p.HaveReference || p.Hashes == nil {
		return 0
	}
	ha, aok := p.Hashes(a)
	hb, bok := p.Hashes(b)
	if !aok || !bok {
		return 0
	}
	simA := phash.IsSimilar(ha, p.ReferenceHash)
	simB := phash.IsSimilar(hb, p.ReferenceHash)
	if simA == simB {
		return 0
	}
	return better(simA, simB)
}

func compareAboveTarget(a, b cover.Cover, target float64) int {
	if target <= 0 {
		return 0
	}
	aAbove := avg(a) >= target
	bAbove := avg(b) >= target
	if aAbove == bAbove {
		return 0
	}
	return better(aAbove, bAbove)
}

func compareBothBelowTarget(a, b cover.Cover, target float64) int {
	if target <= 0 {
		return 0
	}
	avgA, avgB := avg(a), avg(b)
	if avgA >= target || avgB >= target {
		return 0
	}
	if avgA == avgB {
		return 0
	}
	return better(avgA > avgB, avgB > avgA)
}

func compareRelevance(a, b cover.Cover) int {
	c := a.Relevance.Compare(b.Relevance)
	return better(c > 0, c < 0)
}

func compareRank(a, b cover.Cover) int {
	if a.Rank == b.Rank {
		return 0
	}
	return better(a.Rank < b.Rank, b.Rank < a.Rank)
}

func compareSizeCertainty(a, b cover.Cover) int {
	aKnown, bKnown := a.Size.IsKnown(), b.Size.IsKnown()
	if aKnown == bKnown {
		return 0
	}
	return better(aKnown, bKnown)
}

func compareFormatCertainty(a, b cover.Cover) int {
	aKnown, bKnown := a.Format.IsKnown(), b.Format.IsKnown()
	if aKnown == bKnown {
		return 0
	}
	return better(aKnown, bKnown)
}

func compareCloserToTarget(a, b cover.Cover, target float64) int {
	avgA, avgB := avg(a), avg(b)
	if avgA == avgB {
		return 0
	}
	da, db := abs(avgA-target), abs(avgB-target)
	if da == db {
		return 0
	}
	return better(da < db, db < da)
}

func compareFormatPreference(a, b cover.Cover) int {
	fa, fb := a.Format.Value(), b.Format.Value()
	if fa == fb {
		return 0
	}
	return better(fa == cover.Png, fb == cover.Png)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
