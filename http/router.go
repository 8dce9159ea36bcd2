package http

import (
	"log/slog"
	gohttp "net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

type RouterOptions struct {
	Source tiledrop.TileSource
	Scheme tiledrop.TilingScheme

	FetchPrefix      string
	FetchTemplate    *tiledrop.PathTemplate
	DownloadPrefix   string
	DownloadTemplate *tiledrop.PathTemplate

	MaxDecodeBytes int64
	Logger         *slog.Logger
	// Registry receives the request metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

func prefixPattern(method, prefix, fallback string) string {
	if prefix == "" {
		prefix = fallback
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return method + " " + prefix
}

// NewRouter wires the tile, download, extent and decode endpoints.
func NewRouter(opts RouterOptions) gohttp.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)

	fetch := opts.FetchTemplate
	if fetch == nil {
		fetch = tiledrop.MustPathTemplate("{z}/{x}/{y}.mvt")
	}
	download := opts.DownloadTemplate
	if download == nil {
		download = tiledrop.MustPathTemplate("{z}/{x}/{y}.pbf")
	}

	router := gohttp.NewServeMux()
	router.Handle(prefixPattern("GET", opts.FetchPrefix, "/tiles/"),
		metrics.instrument("tiles", TileHandler(opts.Source, opts.Scheme, fetch, logger)))
	router.Handle(prefixPattern("GET", opts.DownloadPrefix, "/download/"),
		metrics.instrument("download", DownloadHandler(opts.Source, opts.Scheme, download, logger)))
	router.Handle("GET /extent", metrics.instrument("extent", ExtentHandler(opts.Scheme)))
	router.Handle("POST /decode", metrics.instrument("decode", DecodeHandler(opts.Scheme, opts.MaxDecodeBytes, logger)))
	router.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.HandleFunc("GET /healthz", healthHandler)
	router.HandleFunc("/", defaultHandler)

	return loggingMiddleware(logger)(router)
}

func healthHandler(w gohttp.ResponseWriter, r *gohttp.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

func defaultHandler(w gohttp.ResponseWriter, r *gohttp.Request) {
	gohttp.NotFound(w, r)
}
