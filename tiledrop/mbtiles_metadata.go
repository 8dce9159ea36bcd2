package tiledrop

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// MbtilesMetadata wraps the metadata table of an MBTiles archive. Bounds and
// center are longitude/latitude.
type MbtilesMetadata struct {
	metadata map[string]string
}

func NewMbtilesMetadata(metadata map[string]string) *MbtilesMetadata {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &MbtilesMetadata{metadata: metadata}
}

func (m *MbtilesMetadata) Get(k string) (string, bool) {
	v, exists := m.metadata[k]
	return v, exists
}

func (m *MbtilesMetadata) Set(key string, value string) {
	m.metadata[key] = value
}

func (m *MbtilesMetadata) Keys() []string {
	keys := make([]string, 0, len(m.metadata))
	for k := range m.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MbtilesMetadata) floats(key string, n int) ([]float64, error) {
	str, exists := m.Get(key)
	if !exists {
		return nil, fmt.Errorf("Metadata is missing %s", key)
	}

	parts := strings.Split(str, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("Invalid %s metadata", key)
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse %s value %d, %w", key, i, err)
		}
		values[i] = v
	}
	return values, nil
}

func (m *MbtilesMetadata) Bounds() (orb.Bound, error) {
	v, err := m.floats("bounds", 4)
	if err != nil {
		return orb.Bound{}, err
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// Center ignores the optional zoom that follows longitude and latitude.
func (m *MbtilesMetadata) Center() (orb.Point, error) {
	v, err := m.floats("center", 2)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{v[0], v[1]}, nil
}

func (m *MbtilesMetadata) zoom(key string) (int, error) {
	str, exists := m.Get(key)
	if !exists {
		return 0, fmt.Errorf("Metadata is missing %s", key)
	}

	i, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return 0, fmt.Errorf("Failed to parse %s value, %w", key, err)
	}
	return i, nil
}

func (m *MbtilesMetadata) MinZoom() (int, error) {
	return m.zoom("minzoom")
}

func (m *MbtilesMetadata) MaxZoom() (int, error) {
	return m.zoom("maxzoom")
}

func (m *MbtilesMetadata) Format() string {
	return m.metadata["format"]
}

func (m *MbtilesMetadata) Name() string {
	return m.metadata["name"]
}

// ConstrainScheme narrows the scheme's zoom bounds to the archive's.
func (m *MbtilesMetadata) ConstrainScheme(scheme TilingScheme) TilingScheme {
	if minZoom, err := m.MinZoom(); err == nil && minZoom > scheme.MinZoom && minZoom <= scheme.MaxZoom {
		scheme.MinZoom = minZoom
	}
	if maxZoom, err := m.MaxZoom(); err == nil && maxZoom < scheme.MaxZoom && maxZoom >= scheme.MinZoom {
		scheme.MaxZoom = maxZoom
	}
	return scheme
}
