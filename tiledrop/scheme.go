package tiledrop

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// WebMercatorHalfWorld is half the width of the EPSG:3857 world in meters.
const WebMercatorHalfWorld float64 = 20037508.342789244

const maxSchemeZoom = 30

var (
	ErrInvalidAddress  = errors.New("invalid tile address")
	ErrUnsupportedZoom = errors.New("unsupported zoom")
)

// Orientation is the direction in which tile rows are numbered.
type Orientation int

const (
	// TopDown numbers row 0 at the top of the extent (XYZ / slippy map).
	TopDown Orientation = iota
	// BottomUp numbers row 0 at the bottom of the extent (TMS).
	BottomUp
)

func (o Orientation) String() string {
	if o == BottomUp {
		return "tms"
	}
	return "xyz"
}

// ParseOrientation accepts "xyz" or "tms".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "", "xyz", "top-down":
		return TopDown, nil
	case "tms", "bottom-up":
		return BottomUp, nil
	}
	return TopDown, fmt.Errorf("unknown row orientation %q", s)
}

// GeoExtent is an axis aligned rectangle in projected map coordinates.
type GeoExtent struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

func ExtentFromBound(b orb.Bound) GeoExtent {
	return GeoExtent{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
}

func (e GeoExtent) Width() float64 {
	return e.MaxX - e.MinX
}

func (e GeoExtent) Height() float64 {
	return e.MaxY - e.MinY
}

func (e GeoExtent) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.MinX, e.MinY},
		Max: orb.Point{e.MaxX, e.MaxY},
	}
}

// Array returns the extent in [minx, miny, maxx, maxy] order.
func (e GeoExtent) Array() []float64 {
	return []float64{e.MinX, e.MinY, e.MaxX, e.MaxY}
}

// Polygon returns the extent as a closed counter-clockwise ring.
func (e GeoExtent) Polygon() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{e.MinX, e.MinY},
		{e.MaxX, e.MinY},
		{e.MaxX, e.MaxY},
		{e.MinX, e.MaxY},
		{e.MinX, e.MinY},
	}}
}

func (e GeoExtent) String() string {
	return fmt.Sprintf("(%v, %v, %v, %v)", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// TilingScheme maps zoom levels to grid sizes and grid cells to extents.
// Every zoom level halves the tile span along both axes.
type TilingScheme struct {
	Name        string
	Extent      GeoExtent
	Orientation Orientation
	MinZoom     int
	MaxZoom     int
	TileSize    int

	// Unproject converts scheme coordinates to longitude/latitude. Nil when the
	// scheme is already geographic.
	Unproject orb.Projection
}

// WebMercator is the EPSG:3857 XYZ pyramid with zoom levels 0 through 22.
func WebMercator() TilingScheme {
	return TilingScheme{
		Name: "EPSG:3857",
		Extent: GeoExtent{
			MinX: -WebMercatorHalfWorld,
			MinY: -WebMercatorHalfWorld,
			MaxX: WebMercatorHalfWorld,
			MaxY: WebMercatorHalfWorld,
		},
		Orientation: TopDown,
		MinZoom:     0,
		MaxZoom:     22,
		TileSize:    256,
		Unproject:   project.Mercator.ToWGS84,
	}
}

// WithZoomRange returns a copy of the scheme with different zoom bounds.
func (s TilingScheme) WithZoomRange(minZoom, maxZoom int) TilingScheme {
	s.MinZoom = minZoom
	s.MaxZoom = maxZoom
	return s
}

func (s TilingScheme) WithOrientation(o Orientation) TilingScheme {
	s.Orientation = o
	return s
}

func (s TilingScheme) Validate() error {
	if !(s.Extent.MinX < s.Extent.MaxX) || !(s.Extent.MinY < s.Extent.MaxY) {
		return fmt.Errorf("scheme %s: empty or inverted extent %s", s.Name, s.Extent)
	}
	if s.MinZoom < 0 || s.MaxZoom < s.MinZoom {
		return fmt.Errorf("scheme %s: invalid zoom range %d-%d", s.Name, s.MinZoom, s.MaxZoom)
	}
	if s.MaxZoom > maxSchemeZoom {
		return fmt.Errorf("scheme %s: max zoom %d above %d", s.Name, s.MaxZoom, maxSchemeZoom)
	}
	return nil
}

// GridSize is the number of tiles along one axis at zoom.
func GridSize(zoom int) int {
	return 1 << uint(zoom)
}

// checkZoom validates zoom on its own, before any x/y checks.
func (s TilingScheme) checkZoom(zoom int) error {
	if zoom < 0 {
		return fmt.Errorf("%w: negative zoom %d", ErrInvalidAddress, zoom)
	}
	if zoom < s.MinZoom || zoom > s.MaxZoom {
		return fmt.Errorf("%w: zoom %d outside %d-%d", ErrUnsupportedZoom, zoom, s.MinZoom, s.MaxZoom)
	}
	return nil
}

// Check reports whether addr names a tile that exists in the scheme.
func (s TilingScheme) Check(addr TileAddress) error {
	if err := s.checkZoom(addr.Zoom); err != nil {
		return err
	}
	n := GridSize(addr.Zoom)
	if addr.X < 0 || addr.X >= n {
		return fmt.Errorf("%w: x=%d outside [0, %d) at zoom %d", ErrInvalidAddress, addr.X, n, addr.Zoom)
	}
	if addr.Y < 0 || addr.Y >= n {
		return fmt.Errorf("%w: y=%d outside [0, %d) at zoom %d", ErrInvalidAddress, addr.Y, n, addr.Zoom)
	}
	return nil
}

// edge is the coordinate of grid line i of n between lo and hi. The last line
// is hi itself so the full grid always covers [lo, hi] exactly.
func edge(lo, hi float64, i, n int) float64 {
	if i >= n {
		return hi
	}
	return lo + (hi-lo)*float64(i)/float64(n)
}

// edgeDown is edge counted from hi towards lo.
func edgeDown(lo, hi float64, i, n int) float64 {
	if i >= n {
		return lo
	}
	return hi - (hi-lo)*float64(i)/float64(n)
}

// ResolveExtent computes the extent that addr covers in scheme. Tiles at the
// same zoom share bit-identical boundaries with their neighbours.
func ResolveExtent(addr TileAddress, scheme TilingScheme) (GeoExtent, error) {
	if err := scheme.Check(addr); err != nil {
		return GeoExtent{}, err
	}

	full := scheme.Extent
	n := GridSize(addr.Zoom)

	extent := GeoExtent{
		MinX: edge(full.MinX, full.MaxX, addr.X, n),
		MaxX: edge(full.MinX, full.MaxX, addr.X+1, n),
	}

	if scheme.Orientation == BottomUp {
		extent.MinY = edge(full.MinY, full.MaxY, addr.Y, n)
		extent.MaxY = edge(full.MinY, full.MaxY, addr.Y+1, n)
	} else {
		extent.MaxY = edgeDown(full.MinY, full.MaxY, addr.Y, n)
		extent.MinY = edgeDown(full.MinY, full.MaxY, addr.Y+1, n)
	}

	return extent, nil
}

// TileAt returns the tile at zoom covering point. A tile owns its min edges,
// so the result always agrees with ResolveExtent. Points on the scheme's max
// edges belong to the last column or row.
func TileAt(point orb.Point, zoom int, scheme TilingScheme) (TileAddress, error) {
	col, cell, err := scheme.cellAt(point, zoom, false)
	if err != nil {
		return TileAddress{}, err
	}
	return TileAddress{Zoom: zoom, X: col, Y: scheme.rowOf(cell, GridSize(zoom))}, nil
}

// cellAt finds the column and the bottom-up cell covering point. With upper
// set, a point on a shared edge belongs to the cell below it instead, which
// treats the point as an exclusive max corner.
func (s TilingScheme) cellAt(point orb.Point, zoom int, upper bool) (int, int, error) {
	if err := s.checkZoom(zoom); err != nil {
		return 0, 0, err
	}
	full := s.Extent
	if !full.Bound().Contains(point) {
		return 0, 0, fmt.Errorf("%w: point %v outside scheme extent %s", ErrInvalidAddress, point, full)
	}

	n := GridSize(zoom)
	col := cellIndex(point.X(), (point.X()-full.MinX)/full.Width(), n, func(c int) float64 {
		return edge(full.MinX, full.MaxX, c, n)
	}, upper)
	cell := cellIndex(point.Y(), (point.Y()-full.MinY)/full.Height(), n, func(c int) float64 {
		return s.yLower(c, n)
	}, upper)
	return col, cell, nil
}

// yLower is the min y edge of the c-th cell counted from the bottom, computed
// exactly as ResolveExtent computes it.
func (s TilingScheme) yLower(c, n int) float64 {
	full := s.Extent
	if s.Orientation == BottomUp {
		return edge(full.MinY, full.MaxY, c, n)
	}
	return edgeDown(full.MinY, full.MaxY, n-c, n)
}

// rowOf converts a bottom-up cell to the scheme's row numbering.
func (s TilingScheme) rowOf(cell, n int) int {
	if s.Orientation == TopDown {
		return n - 1 - cell
	}
	return cell
}

// cellIndex estimates the cell of v from its fraction along the axis, then
// settles it against the real edges so that cell i covers
// [lower(i), lower(i+1)).
func cellIndex(v, frac float64, n int, lower func(int) float64, upper bool) int {
	i := gridIndex(frac, n)
	for i > 0 && v < lower(i) {
		i--
	}
	for i < n-1 && v >= lower(i+1) {
		i++
	}
	if upper && i > 0 && v == lower(i) {
		i--
	}
	return i
}

// gridIndex maps a fraction in [0, 1] to a cell in [0, n).
func gridIndex(frac float64, n int) int {
	i := int(frac * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
