package tiledrop

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func createTestMbtiles(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.mbtiles")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
		CREATE TABLE metadata (name TEXT, value TEXT);
		INSERT INTO metadata (name, value) VALUES
			('name', 'test'),
			('format', 'pbf'),
			('minzoom', '1'),
			('maxzoom', '14'),
			('bounds', '-10.5,20,30,45.25'),
			('center', '1.5,2.5,4');
		INSERT INTO tiles VALUES (2, 1, 3, x'6e6f727468');
		INSERT INTO tiles VALUES (2, 1, 0, x'736f757468');
	`)
	if err != nil {
		t.Fatal(err)
	}
	return dsn
}

func TestMbtilesReaderGetTile(t *testing.T) {
	reader, err := NewMbtilesReader(createTestMbtiles(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	ctx := context.Background()

	// TMS row 3 is XYZ row 0 at zoom 2
	tests := []struct {
		addr TileAddress
		want string
	}{
		{TileAddress{2, 1, 0}, "north"},
		{TileAddress{2, 1, 3}, "south"},
	}
	for _, tt := range tests {
		got, err := reader.GetTile(ctx, tt.addr)
		if err != nil {
			t.Fatal(err)
		}
		if string(got.Data) != tt.want {
			t.Errorf("GetTile(%s) = %q, want %q", tt.addr, got.Data, tt.want)
		}
	}

	missing, err := reader.GetTile(ctx, TileAddress{2, 2, 2})
	if err != nil || !missing.Empty() {
		t.Errorf("GetTile(missing) = %v, %v", missing, err)
	}
}

func TestMbtilesReaderVisitAllTiles(t *testing.T) {
	reader, err := NewMbtilesReader(createTestMbtiles(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got := map[TileAddress]string{}
	err = reader.VisitAllTiles(context.Background(), func(addr TileAddress, data []byte) {
		got[addr] = string(data)
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[TileAddress{2, 1, 0}] != "north" || got[TileAddress{2, 1, 3}] != "south" {
		t.Errorf("VisitAllTiles visited %v", got)
	}
}

func TestMbtilesMetadata(t *testing.T) {
	reader, err := NewMbtilesReader(createTestMbtiles(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	metadata, err := reader.Metadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if metadata.Name() != "test" || metadata.Format() != "pbf" {
		t.Errorf("name/format = %q/%q", metadata.Name(), metadata.Format())
	}

	bounds, err := metadata.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if bounds.Min.X() != -10.5 || bounds.Max.Y() != 45.25 {
		t.Errorf("Bounds() = %v", bounds)
	}

	center, err := metadata.Center()
	if err != nil || center.X() != 1.5 || center.Y() != 2.5 {
		t.Errorf("Center() = %v, %v", center, err)
	}

	scheme := metadata.ConstrainScheme(WebMercator())
	if scheme.MinZoom != 1 || scheme.MaxZoom != 14 {
		t.Errorf("ConstrainScheme zooms = %d-%d, want 1-14", scheme.MinZoom, scheme.MaxZoom)
	}

	empty := NewMbtilesMetadata(nil)
	if _, err := empty.Bounds(); err == nil {
		t.Error("Bounds() on empty metadata = nil error")
	}
	if _, err := empty.MaxZoom(); err == nil {
		t.Error("MaxZoom() on empty metadata = nil error")
	}
}
