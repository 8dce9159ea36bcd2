package tiledrop

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mapSource struct {
	tiles  map[TileAddress][]byte
	calls  int
	closed bool
}

func (m *mapSource) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	m.calls++
	data, ok := m.tiles[addr]
	if !ok {
		return blankTile(addr), nil
	}
	return &TileData{Address: addr, Data: data}, nil
}

func (m *mapSource) Close() error {
	m.closed = true
	return nil
}

func TestCachedSourceBypassesUnavailableCache(t *testing.T) {
	source := &mapSource{tiles: map[TileAddress][]byte{{1, 0, 0}: []byte("tile")}}

	// Nothing listens on port 1, so every cache call fails fast
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cached := NewCachedSource(source, client, "EPSG:3857", time.Minute, logger)

	ctx := context.Background()
	tile, err := cached.GetTile(ctx, TileAddress{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if string(tile.Data) != "tile" {
		t.Errorf("GetTile() = %q", tile.Data)
	}

	miss, err := cached.GetTile(ctx, TileAddress{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !miss.Empty() {
		t.Errorf("expected empty tile, got %q", miss.Data)
	}

	if _, err := cached.GetTile(ctx, TileAddress{1, 2, 0}); err != nil {
		t.Fatal(err)
	}
	if source.calls != 2 {
		t.Errorf("wrapped source called %d times, want 2", source.calls)
	}

	cached.Close()
	if !source.closed {
		t.Error("Close() did not close the wrapped source")
	}
}

func TestCachedSourceReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	source := &mapSource{tiles: map[TileAddress][]byte{{1, 0, 0}: []byte("tile")}}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cached := NewCachedSource(source, client, "EPSG:3857", 90*time.Second, logger)
	defer cached.Close()

	ctx := context.Background()
	hit := TileAddress{1, 0, 0}
	miss := TileAddress{1, 1, 1}

	for i := 0; i < 2; i++ {
		tile, err := cached.GetTile(ctx, hit)
		if err != nil {
			t.Fatal(err)
		}
		if string(tile.Data) != "tile" {
			t.Errorf("GetTile(%s) pass %d = %q", hit, i, tile.Data)
		}

		empty, err := cached.GetTile(ctx, miss)
		if err != nil {
			t.Fatal(err)
		}
		if !empty.Empty() {
			t.Errorf("GetTile(%s) pass %d = %q, want empty", miss, i, empty.Data)
		}
	}

	if source.calls != 2 {
		t.Errorf("wrapped source called %d times, want 2", source.calls)
	}

	key := CacheKey("EPSG:3857", hit)
	if got, err := mr.Get(key); err != nil || got != "tile" {
		t.Errorf("cached %s = %q, %v", key, got, err)
	}
	if ttl := mr.TTL(key); ttl != 90*time.Second {
		t.Errorf("TTL(%s) = %v, want 90s", key, ttl)
	}

	missKey := CacheKey("EPSG:3857", miss)
	if got, err := mr.Get(missKey); err != nil || got != "" {
		t.Errorf("miss marker %s = %q, %v", missKey, got, err)
	}

	// Expired entries go back to the wrapped source
	mr.FastForward(91 * time.Second)
	if _, err := cached.GetTile(ctx, hit); err != nil {
		t.Fatal(err)
	}
	if source.calls != 3 {
		t.Errorf("wrapped source called %d times after expiry, want 3", source.calls)
	}
}
