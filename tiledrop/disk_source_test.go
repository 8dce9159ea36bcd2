package tiledrop

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestTile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskSource(t *testing.T) {
	root := t.TempDir()
	writeTestTile(t, root, "0/0/0.mvt", []byte("world"))
	writeTestTile(t, root, "2/3/1.mvt", []byte("tile"))
	writeTestTile(t, root, "2/3/readme.txt", []byte("ignored"))

	ctx := context.Background()

	for _, index := range []bool{false, true} {
		source, err := NewDiskSource(root, DiskSourceOptions{Index: index})
		if err != nil {
			t.Fatal(err)
		}

		got, err := source.GetTile(ctx, TileAddress{2, 3, 1})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got.Data, []byte("tile")) {
			t.Errorf("index=%v: GetTile(2/3/1) = %q", index, got.Data)
		}

		missing, err := source.GetTile(ctx, TileAddress{2, 0, 0})
		if err != nil {
			t.Fatal(err)
		}
		if !missing.Empty() {
			t.Errorf("index=%v: GetTile(2/0/0) = %q, want empty", index, missing.Data)
		}

		outside, err := source.GetTile(ctx, TileAddress{1, 5, 0})
		if err != nil || !outside.Empty() {
			t.Errorf("index=%v: GetTile(1/5/0) = %v, %v", index, outside, err)
		}

		wantCount := int64(-1)
		if index {
			wantCount = 2
		}
		if got := source.Count(); got != wantCount {
			t.Errorf("index=%v: Count() = %d, want %d", index, got, wantCount)
		}
		source.Close()
	}
}

func TestDiskSourceTemplate(t *testing.T) {
	root := t.TempDir()
	writeTestTile(t, root, "4/9/3.pbf", []byte("swapped"))

	source, err := NewDiskSource(root, DiskSourceOptions{Template: MustPathTemplate("{z}/{y}/{x}.pbf")})
	if err != nil {
		t.Fatal(err)
	}

	got, err := source.GetTile(context.Background(), TileAddress{4, 3, 9})
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "swapped" {
		t.Errorf("GetTile(4/3/9) = %q", got.Data)
	}
}

func TestNewDiskSourceErrors(t *testing.T) {
	if _, err := NewDiskSource(filepath.Join(t.TempDir(), "missing"), DiskSourceOptions{}); err == nil {
		t.Error("NewDiskSource(missing) = nil error")
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0644)
	if _, err := NewDiskSource(file, DiskSourceOptions{}); err == nil {
		t.Error("NewDiskSource(file) = nil error")
	}
}
