package basemap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GridFeature is one polygon feature from a grid-cell collection, keyed
// by its object identifier so grid phases can be processed in
// ascending-OID order (spec §4.6 step 6, Grid phases).
type GridFeature struct {
	OID      int
	Geometry orb.Geometry
}

// LoadGridFeatures reads a GeoJSON FeatureCollection exported from the
// named grid's source feature class and returns its features ordered by
// ascending OBJECTID. The export step itself is an external
// collaborator's responsibility; this only parses the result.
func LoadGridFeatures(path string) ([]GridFeature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid source %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing grid source %s: %w", path, err)
	}

	features := make([]GridFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		oid, err := featureOID(f)
		if err != nil {
			return nil, fmt.Errorf("grid source %s: %w", path, err)
		}
		features = append(features, GridFeature{OID: oid, Geometry: f.Geometry})
	}

	sort.Slice(features, func(i, j int) bool { return features[i].OID < features[j].OID })
	return features, nil
}

func featureOID(f *geojson.Feature) (int, error) {
	for _, key := range []string{"OBJECTID", "objectid", "OID", "oid"} {
		raw, ok := f.Properties[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return int(v), nil
		case json.Number:
			n, err := v.Int64()
			if err == nil {
				return int(n), nil
			}
		}
	}
	return 0, fmt.Errorf("feature missing an OBJECTID property")
}

// LoadPolygon reads a single-polygon GeoJSON file, such as a spot-mode
// area of interest or one of the fixed cache extent polygons.
func LoadPolygon(path string) (orb.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading polygon %s: %w", path, err)
	}

	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return f.Geometry, nil
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("parsing polygon %s: %w", path, err)
	}
	return g.Geometry(), nil
}

// IntersectBound computes the bounding-box intersection of two polygon
// geometries and writes it out as a single-feature GeoJSON polygon file
// in dir, returning its path. Exact polygon clipping is the rendering
// engine's job (it owns the real AoI semantics); this bounding-box
// approximation is only used to hand a non-empty, correctly-placed AoI
// to BuildTiles for the spot-mode 18/19 sub-phase. If the two bounds do
// not overlap, ok is false and no file is written.
func IntersectBound(a, b orb.Geometry, dir string) (path string, ok bool, err error) {
	ba := a.Bound()
	bb := b.Bound()
	if !ba.Intersects(bb) {
		return "", false, nil
	}

	min := orb.Point{maxF(ba.Min[0], bb.Min[0]), maxF(ba.Min[1], bb.Min[1])}
	max := orb.Point{minF(ba.Max[0], bb.Max[0]), minF(ba.Max[1], bb.Max[1])}
	if min[0] >= max[0] || min[1] >= max[1] {
		return "", false, nil
	}

	ring := orb.Ring{
		{min[0], min[1]},
		{max[0], min[1]},
		{max[0], max[1]},
		{min[0], max[1]},
		{min[0], min[1]},
	}
	poly := orb.Polygon{ring}

	out := filepath.Join(dir, "spot-1819-intersection.geojson")
	f := geojson.NewFeature(poly)
	data, err := f.MarshalJSON()
	if err != nil {
		return "", false, fmt.Errorf("marshaling intersection polygon: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", false, fmt.Errorf("writing intersection polygon: %w", err)
	}
	return out, true, nil
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
