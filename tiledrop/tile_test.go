package tiledrop

import (
	"reflect"
	"testing"
)

func TestGenerateTiles(t *testing.T) {
	scheme := WebMercator()

	t.Run("whole world to z2", func(t *testing.T) {
		count, err := CountTiles(scheme.Extent, []int{0, 1, 2}, scheme)
		if err != nil {
			t.Fatal(err)
		}
		if count != 21 {
			t.Fatalf("Expected 21 tiles, got %d", count)
		}
	})

	t.Run("one quadrant", func(t *testing.T) {
		quadrant, _ := ResolveExtent(TileAddress{1, 1, 0}, scheme)
		inner := GeoExtent{
			MinX: quadrant.MinX + 1,
			MinY: quadrant.MinY + 1,
			MaxX: quadrant.MaxX - 1,
			MaxY: quadrant.MaxY - 1,
		}

		var got []TileAddress
		err := GenerateTiles(&GenerateTilesOptions{
			Extent:       inner,
			Zooms:        []int{1, 2},
			Scheme:       scheme,
			ConsumerFunc: func(addr TileAddress) { got = append(got, addr) },
		})
		if err != nil {
			t.Fatal(err)
		}

		want := []TileAddress{{1, 1, 0}, {2, 2, 0}, {2, 2, 1}, {2, 3, 0}, {2, 3, 1}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GenerateTiles() = %v, want %v", got, want)
		}
	})

	t.Run("extent ending on grid lines", func(t *testing.T) {
		for _, s := range []TilingScheme{scheme, scheme.WithOrientation(BottomUp)} {
			exact, _ := ResolveExtent(TileAddress{1, 0, 0}, s)

			var got []TileAddress
			err := GenerateTiles(&GenerateTilesOptions{
				Extent:       exact,
				Zooms:        []int{1, 2},
				Scheme:       s,
				ConsumerFunc: func(addr TileAddress) { got = append(got, addr) },
			})
			if err != nil {
				t.Fatal(err)
			}

			want := []TileAddress{{1, 0, 0}, {2, 0, 0}, {2, 0, 1}, {2, 1, 0}, {2, 1, 1}}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%s: GenerateTiles(extent of 1/0/0) = %v, want %v", s.Orientation, got, want)
			}
		}
	})

	t.Run("point on a grid corner", func(t *testing.T) {
		var got []TileAddress
		err := GenerateTiles(&GenerateTilesOptions{
			Extent:       GeoExtent{},
			Zooms:        []int{1},
			Scheme:       scheme,
			ConsumerFunc: func(addr TileAddress) { got = append(got, addr) },
		})
		if err != nil {
			t.Fatal(err)
		}
		if want := []TileAddress{{1, 1, 0}}; !reflect.DeepEqual(got, want) {
			t.Errorf("GenerateTiles(origin) = %v, want %v", got, want)
		}
	})

	t.Run("outside the scheme", func(t *testing.T) {
		far := GeoExtent{MinX: 3e7, MinY: 3e7, MaxX: 4e7, MaxY: 4e7}
		count, err := CountTiles(far, []int{0, 1}, scheme)
		if err != nil || count != 0 {
			t.Errorf("CountTiles(outside) = %d, %v", count, err)
		}
	})
}

func TestParseZooms(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"0-3", []int{0, 1, 2, 3}},
		{"5", []int{5}},
		{"0, 2,5", []int{0, 2, 5}},
	}
	for _, tt := range tests {
		got, err := ParseZooms(tt.in)
		if err != nil || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseZooms(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}

	for _, in := range []string{"3-1", "a", "1,-2", ""} {
		if _, err := ParseZooms(in); err == nil {
			t.Errorf("ParseZooms(%q) = nil error", in)
		}
	}
}

func TestParseExtent(t *testing.T) {
	got, err := ParseExtent("-1, -2, 3, 4")
	if err != nil {
		t.Fatal(err)
	}
	if want := (GeoExtent{-1, -2, 3, 4}); got != want {
		t.Errorf("ParseExtent() = %s, want %s", got, want)
	}

	for _, in := range []string{"1,2,3", "1,2,x,4", "5,0,1,1"} {
		if _, err := ParseExtent(in); err == nil {
			t.Errorf("ParseExtent(%q) = nil error", in)
		}
	}
}
