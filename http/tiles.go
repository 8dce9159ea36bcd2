package http

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"mime"
	gohttp "net/http"
	"strconv"
	"strings"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

// TileHandler serves stored tiles on the fetch path. Addresses that do not
// exist in the scheme are 404s.
func TileHandler(source tiledrop.TileSource, scheme tiledrop.TilingScheme, tmpl *tiledrop.PathTemplate, logger *slog.Logger) gohttp.HandlerFunc {
	contentType := contentTypeForExt(tmpl.Ext())

	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		result, ok := lookupTile(w, r, source, scheme, tmpl, logger)
		if !ok {
			return
		}

		data := result.Data
		if tiledrop.IsGzipped(data) {
			w.Header().Add("Vary", "Accept-Encoding")
			if acceptsGzip(r.Header.Values("Accept-Encoding")) {
				w.Header().Set("Content-Encoding", "gzip")
			} else {
				plain, err := gunzip(data)
				if err != nil {
					logger.Error("Couldn't decompress stored tile", "tile", result.Address, "error", err)
					gohttp.Error(w, "corrupt tile", gohttp.StatusInternalServerError)
					return
				}
				data = plain
			}
		}

		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
}

// DownloadHandler serves the raw stored payload as a file attachment named
// z-x-y.<ext>.
func DownloadHandler(source tiledrop.TileSource, scheme tiledrop.TilingScheme, tmpl *tiledrop.PathTemplate, logger *slog.Logger) gohttp.HandlerFunc {
	ext := tmpl.Ext()
	if ext == "" {
		ext = "pbf"
	}

	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		result, ok := lookupTile(w, r, source, scheme, tmpl, logger)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": result.Address.Filename(ext),
		}))
		w.Write(result.Data)
	}
}

func lookupTile(w gohttp.ResponseWriter, r *gohttp.Request, source tiledrop.TileSource, scheme tiledrop.TilingScheme, tmpl *tiledrop.PathTemplate, logger *slog.Logger) (*tiledrop.TileData, bool) {
	requested, ok := tmpl.Match(r.URL.Path)
	if !ok {
		gohttp.NotFound(w, r)
		return nil, false
	}

	if err := scheme.Check(requested); err != nil {
		logger.Debug("Rejected tile request", "path", r.URL.Path, "error", err)
		gohttp.NotFound(w, r)
		return nil, false
	}

	result, err := source.GetTile(r.Context(), requested)
	if err != nil {
		logger.Error("Error getting tile", "tile", requested, "error", err)
		gohttp.Error(w, "tile source error", gohttp.StatusBadGateway)
		return nil, false
	}

	if result.Empty() {
		gohttp.NotFound(w, r)
		return nil, false
	}

	return result, true
}

func contentTypeForExt(ext string) string {
	switch ext {
	case "mvt", "pbf":
		return "application/x-protobuf"
	case "geojson", "json":
		return "application/geo+json"
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// acceptsGzip reads Accept-Encoding values. A coding listed with q=0 is
// refused, and "*" stands for gzip when gzip is not listed itself.
func acceptsGzip(values []string) bool {
	wildcard := false
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			coding, params, _ := strings.Cut(part, ";")
			coding = strings.ToLower(strings.TrimSpace(coding))
			if coding != "gzip" && coding != "*" {
				continue
			}

			accepted := true
			for _, param := range strings.Split(params, ";") {
				k, v, ok := strings.Cut(param, "=")
				if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
					continue
				}
				q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				accepted = err == nil && q > 0
			}

			if coding == "gzip" {
				return accepted
			}
			wildcard = accepted
		}
	}
	return wildcard
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
