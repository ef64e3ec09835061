// Package loadshed is the "what if everyone put the kettle on" calculator
// shown next to the capacity dashboard.
package loadshed

import (
	"errors"
	"math"
)

// DefaultKettleKW is the draw of a typical UK kettle.
const DefaultKettleKW = 3.0

// Tier is the grid status for a given load ratio.
type Tier string

const (
	TierStable   Tier = "stable"
	TierStrained Tier = "strained"
	TierBrownout Tier = "brownout"
	TierBlackout Tier = "blackout"
)

// Result of one what-if calculation.
type Result struct {
	Kettles     int     `json:"kettles"`
	KettleKW    float64 `json:"kettle_kw"`
	LoadMW      float64 `json:"load_mw"`
	CapacityMW  float64 `json:"capacity_mw"`
	LoadRatio   float64 `json:"load_ratio"`
	HeadroomMW  float64 `json:"headroom_mw"`
	Tier        Tier    `json:"tier"`
	KettlesToGo int     `json:"kettles_to_blackout"`
}

// Calculate works out what kettles×kettleKW would do to capacityMW.
// A kettleKW of zero means DefaultKettleKW. With no capacity at all the
// result is a blackout whatever the load.
func Calculate(kettles int, kettleKW, capacityMW float64) (Result, error) {
	if kettles < 0 {
		return Result{}, errors.New("kettles must be >= 0")
	}
	if kettleKW == 0 {
		kettleKW = DefaultKettleKW
	}
	if kettleKW < 0 || math.IsNaN(kettleKW) || math.IsInf(kettleKW, 0) {
		return Result{}, errors.New("kettle_kw must be a positive number")
	}
	if capacityMW < 0 {
		capacityMW = 0
	}

	load := float64(kettles) * kettleKW / 1000
	r := Result{
		Kettles:    kettles,
		KettleKW:   kettleKW,
		LoadMW:     load,
		CapacityMW: capacityMW,
		HeadroomMW: capacityMW - load,
	}
	if capacityMW == 0 {
		// Ratio is undefined; left at zero so the result still encodes as JSON.
		r.Tier = TierBlackout
		return r, nil
	}
	r.LoadRatio = load / capacityMW
	r.Tier = Classify(r.LoadRatio)
	if remaining := capacityMW - load; remaining > 0 {
		r.KettlesToGo = kettlesFor(remaining, kettleKW)
	}
	return r, nil
}

// kettlesFor is how many kettles fit in mw, saturating at math.MaxInt.
func kettlesFor(mw, kettleKW float64) int {
	n := math.Ceil(mw * 1000 / kettleKW)
	if n >= math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// Classify maps a load ratio to a tier.
func Classify(ratio float64) Tier {
	switch {
	case ratio < 0.5:
		return TierStable
	case ratio < 0.8:
		return TierStrained
	case ratio < 1.0:
		return TierBrownout
	default:
		return TierBlackout
	}
}
