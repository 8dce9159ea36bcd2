package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	gohttp "net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tilezen/go-tiledrop/config"
	"github.com/tilezen/go-tiledrop/tiledrop"
)

func TestServeDrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	server := &gohttp.Server{
		Handler: gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
			close(started)
			time.Sleep(200 * time.Millisecond)
			finished.Store(true)
			w.Write([]byte("ok"))
		}),
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serve(ctx, server, ln, logger) }()

	response := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			response <- 0
			return
		}
		resp.Body.Close()
		response <- resp.StatusCode
	}()

	<-started
	cancel()

	if err := <-served; err != nil {
		t.Fatalf("serve() = %v", err)
	}
	if !finished.Load() {
		t.Error("serve returned before the in-flight request finished")
	}
	if code := <-response; code != gohttp.StatusOK {
		t.Errorf("in-flight request got status %d", code)
	}
}

func TestOpenSourceDisk(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "0", "0"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "0", "0", "0.mvt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Tiles: config.TilesConfig{
		Source:    "disk",
		Root:      root,
		FetchPath: "{z}/{x}/{y}.mvt",
		Index:     true,
		Timeout:   1,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	source, scheme, err := openSource(context.Background(), cfg, tiledrop.WebMercator(), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	if scheme.MaxZoom != 22 {
		t.Errorf("scheme max zoom = %d", scheme.MaxZoom)
	}
	tile, err := source.GetTile(context.Background(), tiledrop.TileAddress{})
	if err != nil || string(tile.Data) != "world" {
		t.Errorf("GetTile(0/0/0) = %v, %v", tile, err)
	}

	cfg.Tiles.Source = "ftp"
	if _, _, err := openSource(context.Background(), cfg, tiledrop.WebMercator(), logger); err == nil {
		t.Error("expected error for unknown source")
	}
}
