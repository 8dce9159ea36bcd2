package tiledrop

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// descriptionKeys are tried in order when describing a feature.
var descriptionKeys = []string{"name", "_name", "layer"}

// Describe returns the display text for a feature, or "" if it has none.
// Empty, zero and false values are skipped.
func Describe(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	for _, key := range descriptionKeys {
		v, ok := f.Properties[key]
		if !ok || isBlank(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

func isBlank(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0 || math.IsNaN(v)
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case int:
		return v == 0
	case int64:
		return v == 0
	case uint64:
		return v == 0
	}
	return false
}

func DescribeFeatures(features []*geojson.Feature) string {
	info := make([]string, 0, len(features))
	for _, f := range features {
		if d := Describe(f); d != "" {
			info = append(info, d)
		}
	}
	return strings.Join(info, ", ")
}

// FeaturesAt returns the features under point. Polygonal features match by
// containment, everything else by its bound padded by tolerance.
func FeaturesAt(fc *geojson.FeatureCollection, point orb.Point, tolerance float64) []*geojson.Feature {
	var hits []*geojson.Feature
	if fc == nil {
		return hits
	}

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if geometryContains(f.Geometry, point, tolerance) {
			hits = append(hits, f)
		}
	}
	return hits
}

func geometryContains(g orb.Geometry, point orb.Point, tolerance float64) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, point)
	case orb.Collection:
		for _, child := range g {
			if geometryContains(child, point, tolerance) {
				return true
			}
		}
		return false
	}
	return g.Bound().Pad(tolerance).Contains(point)
}

// CollectionBound is the union of all feature bounds.
func CollectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	var bound orb.Bound
	found := false
	if fc == nil {
		return bound, false
	}

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if !found {
			bound = b
			found = true
			continue
		}
		bound = bound.Union(b)
	}
	return bound, found
}
