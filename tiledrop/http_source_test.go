package tiledrop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPSource(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/2/1.mvt":
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("tile"))
		case "/4/0/0.mvt":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.URL+"/{z}/{x}/{y}.mvt", 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()
	source.backoff = time.Millisecond

	ctx := context.Background()

	got, err := source.GetTile(ctx, TileAddress{3, 2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "tile" {
		t.Errorf("GetTile(3/2/1) = %q", got.Data)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("made %d attempts, want 3", n)
	}

	missing, err := source.GetTile(ctx, TileAddress{3, 0, 0})
	if err != nil || !missing.Empty() {
		t.Errorf("GetTile(missing) = %v, %v", missing, err)
	}

	if _, err := source.GetTile(ctx, TileAddress{4, 0, 0}); err == nil {
		t.Error("GetTile(forbidden) = nil error")
	}
}

func TestNewHTTPSourceRequiresPlaceholders(t *testing.T) {
	if _, err := NewHTTPSource("https://example.com/{z}/{x}.mvt", time.Second, nil); err == nil {
		t.Error("NewHTTPSource without {y} = nil error")
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("EPSG:3857", TileAddress{1, 0, 0}); got != "tiledrop:EPSG:3857:1" {
		t.Errorf("CacheKey() = %q", got)
	}
}
