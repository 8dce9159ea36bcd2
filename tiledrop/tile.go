package tiledrop

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var zoomRangeRegex = regexp.MustCompile(`^\d+\-\d+$`)

type GenerateTilesConsumerFunc func(addr TileAddress)

type GenerateTilesOptions struct {
	Extent       GeoExtent
	Zooms        []int
	Scheme       TilingScheme
	ConsumerFunc GenerateTilesConsumerFunc
}

// GenerateTiles calls the consumer for every tile intersecting the extent at
// each requested zoom. The extent is clamped to the scheme extent first.
func GenerateTiles(opts *GenerateTilesOptions) error {
	full := opts.Scheme.Extent
	clamped := GeoExtent{
		MinX: max(full.MinX, opts.Extent.MinX),
		MinY: max(full.MinY, opts.Extent.MinY),
		MaxX: min(full.MaxX, opts.Extent.MaxX),
		MaxY: min(full.MaxY, opts.Extent.MaxY),
	}
	if clamped.MinX > clamped.MaxX || clamped.MinY > clamped.MaxY {
		return nil
	}

	for _, z := range opts.Zooms {
		minCol, minCell, err := opts.Scheme.cellAt(orb.Point{clamped.MinX, clamped.MinY}, z, false)
		if err != nil {
			return err
		}
		// The max corner is exclusive unless it lies on the scheme bound
		maxCol, maxCell, err := opts.Scheme.cellAt(orb.Point{clamped.MaxX, clamped.MaxY}, z, true)
		if err != nil {
			return err
		}
		maxCol = max(maxCol, minCol)
		maxCell = max(maxCell, minCell)

		n := GridSize(z)
		// Rows run opposite to y in top-down schemes
		minY, maxY := opts.Scheme.rowOf(minCell, n), opts.Scheme.rowOf(maxCell, n)
		if minY > maxY {
			minY, maxY = maxY, minY
		}

		for x := minCol; x <= maxCol; x++ {
			for y := minY; y <= maxY; y++ {
				opts.ConsumerFunc(TileAddress{Zoom: z, X: x, Y: y})
			}
		}
	}

	return nil
}

// CountTiles is the number of tiles GenerateTiles would produce.
func CountTiles(extent GeoExtent, zooms []int, scheme TilingScheme) (int, error) {
	count := 0
	err := GenerateTiles(&GenerateTilesOptions{
		Extent:       extent,
		Zooms:        zooms,
		Scheme:       scheme,
		ConsumerFunc: func(TileAddress) { count++ },
	})
	return count, err
}

// ParseZooms reads a comma-separated zoom list or a "{min}-{max}" range.
func ParseZooms(s string) ([]int, error) {
	s = strings.TrimSpace(s)

	if zoomRangeRegex.MatchString(s) {
		parts := strings.Split(s, "-")

		minZoom, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("Failed to parse min zoom (%s), %w", parts[0], err)
		}

		maxZoom, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("Failed to parse max zoom (%s), %w", parts[1], err)
		}

		if minZoom > maxZoom {
			return nil, fmt.Errorf("Invalid zoom range %s", s)
		}

		zooms := make([]int, 0, maxZoom-minZoom+1)
		for z := minZoom; z <= maxZoom; z++ {
			zooms = append(zooms, z)
		}
		return zooms, nil
	}

	parts := strings.Split(s, ",")
	zooms := make([]int, len(parts))
	for i, part := range parts {
		z, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || z < 0 {
			return nil, fmt.Errorf("Zoom list could not be parsed: %q", part)
		}
		zooms[i] = z
	}

	return zooms, nil
}

// ParseExtent reads "minx,miny,maxx,maxy".
func ParseExtent(s string) (GeoExtent, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return GeoExtent{}, fmt.Errorf("extent must be a comma-separated list of 4 numbers")
	}

	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return GeoExtent{}, fmt.Errorf("Failed to parse extent value %q, %w", part, err)
		}
		values[i] = v
	}

	e := GeoExtent{MinX: values[0], MinY: values[1], MaxX: values[2], MaxY: values[3]}
	if e.MinX > e.MaxX || e.MinY > e.MaxY {
		return GeoExtent{}, fmt.Errorf("inverted extent %s", e)
	}
	return e, nil
}
