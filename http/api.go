package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	gohttp "net/http"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

const defaultMaxDecodeBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type extentResponse struct {
	Address string    `json:"address"`
	Scheme  string    `json:"scheme"`
	Extent  []float64 `json:"extent"`
	LonLat  []float64 `json:"lonlat,omitempty"`
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, tiledrop.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, tiledrop.ErrUnsupportedZoom):
		return "unsupported_zoom"
	case errors.Is(err, tiledrop.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, tiledrop.ErrMissingExtent):
		return "missing_extent"
	}
	return "decode_failed"
}

func writeJSON(w gohttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w gohttp.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

// resolveRequest reads z, x and y from the query and resolves their extent.
func resolveRequest(r *gohttp.Request, scheme tiledrop.TilingScheme) (tiledrop.TileAddress, tiledrop.GeoExtent, error) {
	q := r.URL.Query()
	addr, err := tiledrop.ParseTileAddress(q.Get("z"), q.Get("x"), q.Get("y"))
	if err != nil {
		return addr, tiledrop.GeoExtent{}, err
	}
	extent, err := tiledrop.ResolveExtent(addr, scheme)
	return addr, extent, err
}

// ExtentHandler answers GET /extent?z=&x=&y= with the tile's extent.
func ExtentHandler(scheme tiledrop.TilingScheme) gohttp.HandlerFunc {
	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		addr, extent, err := resolveRequest(r, scheme)
		if err != nil {
			writeError(w, gohttp.StatusBadRequest, err)
			return
		}

		resp := extentResponse{
			Address: addr.String(),
			Scheme:  scheme.Name,
			Extent:  extent.Array(),
		}
		if scheme.Unproject != nil {
			lo := scheme.Unproject(orb.Point{extent.MinX, extent.MinY})
			hi := scheme.Unproject(orb.Point{extent.MaxX, extent.MaxY})
			resp.LonLat = []float64{lo.Lon(), lo.Lat(), hi.Lon(), hi.Lat()}
		}

		writeJSON(w, gohttp.StatusOK, resp)
	}
}

// DecodeHandler decodes a dropped file posted as the request body. Vector
// tiles need z, x and y; decoding is declined when they do not resolve.
func DecodeHandler(scheme tiledrop.TilingScheme, maxBytes int64, logger *slog.Logger) gohttp.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxDecodeBytes
	}

	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		q := r.URL.Query()

		var format tiledrop.Format
		var err error
		if f := q.Get("format"); f != "" {
			format, err = tiledrop.ParseFormat(f)
		} else {
			format, err = tiledrop.FormatFromFilename(q.Get("filename"))
		}
		if err != nil {
			writeError(w, gohttp.StatusUnsupportedMediaType, err)
			return
		}

		opts := tiledrop.DecodeOptions{}
		if format.NeedsExtent() {
			_, extent, err := resolveRequest(r, scheme)
			if err != nil {
				writeError(w, gohttp.StatusBadRequest, err)
				return
			}
			opts.Extent = &extent
			opts.Unproject = scheme.Unproject
		}

		data, err := io.ReadAll(gohttp.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			writeJSON(w, gohttp.StatusRequestEntityTooLarge, errorResponse{Error: err.Error(), Kind: "too_large"})
			return
		}

		fc, err := tiledrop.DecodeFeatures(data, format, opts)
		if err != nil {
			logger.Debug("Declined to decode upload", "format", format, "error", err)
			writeError(w, gohttp.StatusUnprocessableEntity, err)
			return
		}

		described := fc.Features
		if q.Has("lon") || q.Has("lat") {
			point, tolerance, err := parsePoint(q.Get("lon"), q.Get("lat"), q.Get("tolerance"))
			if err != nil {
				writeJSON(w, gohttp.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "invalid_point"})
				return
			}
			described = tiledrop.FeaturesAt(fc, point, tolerance)
		}

		fc.ExtraMembers = map[string]interface{}{
			"info": tiledrop.DescribeFeatures(described),
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(fc); err != nil {
			logger.Error("Couldn't write decoded features", "error", err)
		}
	}
}

func parsePoint(lon, lat, tolerance string) (orb.Point, float64, error) {
	x, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return orb.Point{}, 0, errors.New("lon must be a number")
	}
	y, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return orb.Point{}, 0, errors.New("lat must be a number")
	}
	tol := 0.0
	if tolerance != "" {
		tol, err = strconv.ParseFloat(tolerance, 64)
		if err != nil || tol < 0 {
			return orb.Point{}, 0, errors.New("tolerance must be a non-negative number")
		}
	}
	return orb.Point{x, y}, tol, nil
}
