package tiledrop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
	"github.com/protomaps/go-pmtiles/pmtiles"
)

// TileAddress identifies one tile of a quad-tree pyramid. It is not checked
// against any scheme until it is resolved.
type TileAddress struct {
	Zoom int `json:"z"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

func NewTileAddress(zoom, x, y int) TileAddress {
	return TileAddress{Zoom: zoom, X: x, Y: y}
}

// AddressFromTile converts an orb maptile.
func AddressFromTile(t maptile.Tile) TileAddress {
	return TileAddress{Zoom: int(t.Z), X: int(t.X), Y: int(t.Y)}
}

// ParseTileAddress reads an address from three form values.
func ParseTileAddress(z, x, y string) (TileAddress, error) {
	var addr TileAddress
	fields := []struct {
		name  string
		value string
		dst   *int
	}{
		{"z", z, &addr.Zoom},
		{"x", x, &addr.X},
		{"y", y, &addr.Y},
	}

	for _, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f.value))
		if err != nil {
			return TileAddress{}, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidAddress, f.name, f.value)
		}
		*f.dst = v
	}

	return addr, nil
}

func (a TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

// InPyramid reports whether the address exists in a quad-tree of up to 30
// zoom levels, independent of any scheme's zoom bounds.
func (a TileAddress) InPyramid() bool {
	if a.Zoom < 0 || a.Zoom > maxSchemeZoom {
		return false
	}
	n := GridSize(a.Zoom)
	return a.X >= 0 && a.X < n && a.Y >= 0 && a.Y < n
}

// Tile converts the address to an orb maptile. The address must be valid.
func (a TileAddress) Tile() maptile.Tile {
	return maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Zoom))
}

// FlipY converts between XYZ and TMS row numbering.
func (a TileAddress) FlipY() TileAddress {
	a.Y = GridSize(a.Zoom) - 1 - a.Y
	return a
}

// ID is the PMTiles tile id of an XYZ address. The address must be valid.
func (a TileAddress) ID() uint64 {
	return pmtiles.ZxyToID(uint8(a.Zoom), uint32(a.X), uint32(a.Y))
}

// AddressFromID is the inverse of ID.
func AddressFromID(id uint64) TileAddress {
	z, x, y := pmtiles.IDToZxy(id)
	return TileAddress{Zoom: int(z), X: int(x), Y: int(y)}
}

// Filename is the name a tile is saved under when downloaded, z-x-y.ext.
func (a TileAddress) Filename(ext string) string {
	return fmt.Sprintf("%d-%d-%d.%s", a.Zoom, a.X, a.Y, strings.TrimPrefix(ext, "."))
}
