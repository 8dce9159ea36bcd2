package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	gohttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilezen/go-tiledrop/config"
	"github.com/tilezen/go-tiledrop/http"
	"github.com/tilezen/go-tiledrop/tiledrop"
)

// openSource builds the configured tile source. MBTiles archives narrow the
// scheme's zoom bounds to their metadata.
func openSource(ctx context.Context, cfg *config.Config, scheme tiledrop.TilingScheme, logger *slog.Logger) (tiledrop.TileSource, tiledrop.TilingScheme, error) {
	tiles := cfg.Tiles
	timeout := time.Duration(tiles.Timeout) * time.Second

	var source tiledrop.TileSource
	var err error

	switch tiles.Source {
	case "disk":
		var tmpl *tiledrop.PathTemplate
		tmpl, err = cfg.FetchTemplate()
		if err != nil {
			return nil, scheme, err
		}
		source, err = tiledrop.NewDiskSource(tiles.Root, tiledrop.DiskSourceOptions{
			Template: tmpl,
			Index:    tiles.Index,
			Logger:   logger,
		})
	case "mbtiles":
		var reader tiledrop.MbtilesReader
		reader, err = tiledrop.NewMbtilesReader(tiles.Root, logger)
		if err != nil {
			return nil, scheme, err
		}
		if metadata, mdErr := reader.Metadata(ctx); mdErr == nil {
			scheme = metadata.ConstrainScheme(scheme)
		} else {
			logger.Warn("Couldn't read mbtiles metadata", "path", tiles.Root, "error", mdErr)
		}
		source = reader
	case "pmtiles":
		source, err = tiledrop.NewPmtilesReader(tiles.Root)
	case "http":
		source, err = tiledrop.NewHTTPSource(tiles.URL, timeout, logger)
	case "s3":
		var tmpl *tiledrop.PathTemplate
		tmpl, err = cfg.FetchTemplate()
		if err != nil {
			return nil, scheme, err
		}
		source, err = tiledrop.NewS3Source(tiles.Bucket, tiles.RequesterPays, tmpl)
	default:
		return nil, scheme, errors.New("Unknown tile source " + tiles.Source)
	}
	if err != nil {
		return nil, scheme, err
	}

	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		ttl := time.Duration(cfg.Cache.TTL) * time.Second
		source = tiledrop.NewCachedSource(source, client, scheme.Name, ttl, logger)
		logger.Info("Caching tiles in redis", "addr", cfg.Cache.RedisAddr, "ttl", ttl)
	}

	return source, scheme, nil
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file.")
	addr := flag.String("listen", "", "The address and port to listen on, overriding server.listen.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Couldn't load config, %v", err)
	}
	if *addr != "" {
		cfg.Server.Listen = *addr
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	scheme, err := cfg.TilingScheme()
	if err != nil {
		log.Fatalf("Invalid tiling scheme, %v", err)
	}
	fetch, err := cfg.FetchTemplate()
	if err != nil {
		log.Fatalf("Invalid fetch path, %v", err)
	}
	download, err := cfg.DownloadTemplate()
	if err != nil {
		log.Fatalf("Invalid download path, %v", err)
	}

	source, scheme, err := openSource(context.Background(), cfg, scheme, logger)
	if err != nil {
		log.Fatalf("Couldn't open %s tile source, %v", cfg.Tiles.Source, err)
	}
	defer source.Close()

	router := http.NewRouter(http.RouterOptions{
		Source:           source,
		Scheme:           scheme,
		FetchPrefix:      cfg.Tiles.FetchPrefix,
		FetchTemplate:    fetch,
		DownloadPrefix:   cfg.Tiles.DownloadPrefix,
		DownloadTemplate: download,
		MaxDecodeBytes:   cfg.Decode.MaxBytes,
		Logger:           logger,
	})

	readTimeout, writeTimeout, idleTimeout := cfg.Server.Timeouts()
	server := &gohttp.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		log.Fatalf("Could not listen on %s: %v\n", cfg.Server.Listen, err)
	}

	logger.Info("Serving tiles",
		"listen", ln.Addr().String(),
		"source", cfg.Tiles.Source,
		"scheme", scheme.Name,
		"fetch", cfg.Tiles.FetchPrefix+fetch.String(),
		"download", cfg.Tiles.DownloadPrefix+download.String())

	if err := serve(ctx, server, ln, logger); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// serve runs server on ln until ctx is cancelled. It returns once in-flight
// requests have drained, so the tile source can be closed afterwards.
func serve(ctx context.Context, server *gohttp.Server, ln net.Listener, logger *slog.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && err != gohttp.ErrServerClosed {
		return err
	}
	<-done
	return nil
}
