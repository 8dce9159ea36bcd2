package tiledrop

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// defaultLayerExtent is the MVT layer extent assumed when a layer omits it.
const defaultLayerExtent = 4096

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMissingExtent     = errors.New("vector tile decoding requires a tile extent")
)

// Format is a feature encoding accepted by DecodeFeatures.
type Format string

const (
	FormatMVT     Format = "mvt"
	FormatGeoJSON Format = "geojson"
	FormatWKT     Format = "wkt"
	FormatWKB     Format = "wkb"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "mvt", "pbf":
		return FormatMVT, nil
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "wkt":
		return FormatWKT, nil
	case "wkb":
		return FormatWKB, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename picks a format from a dropped file's extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, name)
	}
	return ParseFormat(ext)
}

// NeedsExtent reports whether the format carries tile-local coordinates.
func (f Format) NeedsExtent() bool {
	return f == FormatMVT
}

type DecodeOptions struct {
	// Extent places tile-local MVT coordinates. Required for FormatMVT.
	Extent *GeoExtent
	// Unproject is applied to MVT geometries after placement.
	Unproject orb.Projection
}

// DecodeFeatures decodes a payload into features. The collection's bbox is
// the union of the feature bounds.
func DecodeFeatures(data []byte, format Format, opts DecodeOptions) (*geojson.FeatureCollection, error) {
	var fc *geojson.FeatureCollection
	var err error

	switch format {
	case FormatMVT:
		fc, err = decodeMVT(data, opts)
	case FormatGeoJSON:
		fc, err = decodeGeoJSON(data)
	case FormatWKT:
		fc, err = decodeGeometry(func() (orb.Geometry, error) { return wkt.Unmarshal(string(data)) })
	case FormatWKB:
		fc, err = decodeGeometry(func() (orb.Geometry, error) { return wkb.Unmarshal(data) })
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if bound, ok := CollectionBound(fc); ok {
		fc.BBox = geojson.NewBBox(bound)
	}
	return fc, nil
}

// IsGzipped reports whether data starts with the gzip magic bytes.
func IsGzipped(data []byte) bool {
	return len(data) >= 2 && data[0] == 31 && data[1] == 139
}

func decodeMVT(data []byte, opts DecodeOptions) (*geojson.FeatureCollection, error) {
	if opts.Extent == nil {
		return nil, ErrMissingExtent
	}

	var layers mvt.Layers
	var err error
	if IsGzipped(data) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to decode vector tile, %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for _, layer := range layers {
		place := tileToMap(*opts.Extent, layer.Extent)

		for _, f := range layer.Features {
			if f.Geometry == nil {
				continue
			}
			f.Geometry = project.Geometry(f.Geometry, place)
			if opts.Unproject != nil {
				f.Geometry = project.Geometry(f.Geometry, opts.Unproject)
			}

			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
			if _, ok := f.Properties["layer"]; !ok {
				f.Properties["layer"] = layer.Name
			}
			fc.Append(f)
		}
	}

	return fc, nil
}

// tileToMap maps layer pixel coordinates, origin top-left and y down, into
// the tile's extent.
func tileToMap(extent GeoExtent, layerExtent uint32) orb.Projection {
	if layerExtent == 0 {
		layerExtent = defaultLayerExtent
	}
	sx := extent.Width() / float64(layerExtent)
	sy := extent.Height() / float64(layerExtent)

	return func(p orb.Point) orb.Point {
		return orb.Point{extent.MinX + p.X()*sx, extent.MaxY - p.Y()*sy}
	}
}

func decodeGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var doc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("Failed to parse GeoJSON, %w", err)
	}

	switch doc.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse GeoJSON feature collection, %w", err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse GeoJSON feature, %w", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	case "":
		return nil, fmt.Errorf("%w: GeoJSON document has no type", ErrUnsupportedFormat)
	}

	return decodeGeometry(func() (orb.Geometry, error) {
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return g.Geometry(), nil
	})
}

func decodeGeometry(decode func() (orb.Geometry, error)) (*geojson.FeatureCollection, error) {
	g, err := decode()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode geometry, %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("Failed to decode geometry, empty document")
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g))
	return fc, nil
}
