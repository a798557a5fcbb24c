package basemap

import "fmt"

// DefaultTileScheme is the process-wide constant Tile-Scheme Table: an
// ordered sequence of 20 scales (index 0 = lowest zoom, index 19 =
// highest), partitioned into three named extent phases covering scales
// 0-17 and two named grid levels, CacheGrids_18 and CacheGrids_19, that
// the production build iterates feature-by-feature for scales 18 and 19.
var DefaultTileScheme = TileScheme{
	Scales: []float64{
		591657527.591555,
		295828763.795777,
		147914381.897889,
		73957190.948944,
		36978595.474472,
		18489297.737236,
		9244648.868618,
		4622324.434309,
		2311162.217155,
		1155581.108577,
		577790.554289,
		288895.277144,
		144447.638572,
		72223.819286,
		36111.909643,
		18055.954822,
		9027.977411,
		4513.988705,
		2256.994353,
		1128.497176,
	},
	CacheExtents: []ExtentPhase{
		{Name: "CacheExtent_0_7", ScaleIndices: indexRange(0, 7)},
		{Name: "CacheExtent_8_9", ScaleIndices: indexRange(8, 9)},
		{Name: "CacheExtent_10_17", ScaleIndices: indexRange(10, 17)},
	},
	Grids: []GridLevel{
		{Name: "CacheGrids_18", ScaleIndex: 18},
		{Name: "CacheGrids_19", ScaleIndex: 19},
	},
}

// TileScheme is the process-wide constant set of scales, extent phases,
// and grid levels that the Cache Orchestrator drives a production build
// through.
type TileScheme struct {
	Scales       []float64
	CacheExtents []ExtentPhase
	Grids        []GridLevel
}

// ExtentPhase is one (named area-of-interest polygon, scale subset) pair
// processed in the order declared here.
type ExtentPhase struct {
	Name         string
	ScaleIndices []int
}

// GridLevel names one zoom level whose cache extent is a collection of
// grid-cell polygon features, each cached independently.
type GridLevel struct {
	Name       string
	ScaleIndex int
}

// ScalesFor returns the scale values for a set of indices, in the order
// the indices were declared.
func (t TileScheme) ScalesFor(indices []int) []float64 {
	out := make([]float64, 0, len(indices))
	for _, i := range indices {
		out = append(out, t.Scales[i])
	}
	return out
}

// RestrictedScales returns the subset of scales in [minLevel, maxLevel]
// (inclusive, zero-indexed), used to implement the --levels N-M flag.
func (t TileScheme) RestrictedScales(minLevel, maxLevel int) ([]float64, error) {
	if minLevel < 0 || maxLevel >= len(t.Scales) || minLevel > maxLevel {
		return nil, fmt.Errorf("invalid level range %d-%d for %d scales", minLevel, maxLevel, len(t.Scales))
	}
	return append([]float64(nil), t.Scales[minLevel:maxLevel+1]...), nil
}

// Intersect returns the subset of scales present in both want and
// restrict, preserving want's order. A nil restrict means "no restriction".
func Intersect(want, restrict []float64) []float64 {
	if restrict == nil {
		return want
	}
	allowed := make(map[float64]bool, len(restrict))
	for _, s := range restrict {
		allowed[s] = true
	}
	out := make([]float64, 0, len(want))
	for _, s := range want {
		if allowed[s] {
			out = append(out, s)
		}
	}
	return out
}

func indexRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}
