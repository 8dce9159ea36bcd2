package tiledrop

import (
	"errors"
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestParseTileAddress(t *testing.T) {
	got, err := ParseTileAddress("3", " 5", "2 ")
	if err != nil {
		t.Fatal(err)
	}
	if want := (TileAddress{3, 5, 2}); got != want {
		t.Errorf("ParseTileAddress = %v, want %v", got, want)
	}

	for _, in := range [][3]string{{"", "0", "0"}, {"1", "a", "0"}, {"1", "0", "1.5"}} {
		if _, err := ParseTileAddress(in[0], in[1], in[2]); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseTileAddress(%q) error = %v, want ErrInvalidAddress", in, err)
		}
	}
}

func TestTileAddressConversions(t *testing.T) {
	addr := TileAddress{Zoom: 4, X: 3, Y: 1}

	if got := addr.String(); got != "4/3/1" {
		t.Errorf("String() = %q", got)
	}
	if got := addr.FlipY(); got != (TileAddress{4, 3, 14}) {
		t.Errorf("FlipY() = %v", got)
	}
	if got := addr.FlipY().FlipY(); got != addr {
		t.Errorf("FlipY().FlipY() = %v", got)
	}
	if got := addr.Tile(); got != maptile.New(3, 1, 4) {
		t.Errorf("Tile() = %v", got)
	}
	if got := AddressFromTile(addr.Tile()); got != addr {
		t.Errorf("AddressFromTile() = %v", got)
	}
	if got := addr.Filename("pbf"); got != "4-3-1.pbf" {
		t.Errorf("Filename() = %q", got)
	}
	if got := addr.Filename(".mvt"); got != "4-3-1.mvt" {
		t.Errorf("Filename(.mvt) = %q", got)
	}
}

func TestTileAddressID(t *testing.T) {
	if id := (TileAddress{0, 0, 0}).ID(); id != 0 {
		t.Errorf("ID of z0 = %d, want 0", id)
	}

	seen := map[uint64]TileAddress{}
	for z := 0; z <= 3; z++ {
		n := GridSize(z)
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				addr := TileAddress{z, x, y}
				id := addr.ID()
				if other, ok := seen[id]; ok {
					t.Fatalf("%s and %s share id %d", addr, other, id)
				}
				seen[id] = addr
				if back := AddressFromID(id); back != addr {
					t.Errorf("AddressFromID(%d) = %s, want %s", id, back, addr)
				}
			}
		}
	}
}

func TestTileAddressInPyramid(t *testing.T) {
	tests := []struct {
		addr TileAddress
		want bool
	}{
		{TileAddress{0, 0, 0}, true},
		{TileAddress{3, 7, 7}, true},
		{TileAddress{3, 8, 0}, false},
		{TileAddress{-1, 0, 0}, false},
		{TileAddress{31, 0, 0}, false},
	}
	for _, tt := range tests {
		if got := tt.addr.InPyramid(); got != tt.want {
			t.Errorf("%s.InPyramid() = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
