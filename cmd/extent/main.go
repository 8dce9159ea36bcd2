package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/schollz/progressbar/v3"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

func printExtent(w io.Writer, addr tiledrop.TileAddress, scheme tiledrop.TilingScheme) error {
	extent, err := tiledrop.ResolveExtent(addr, scheme)
	if err != nil {
		return err
	}

	f := geojson.NewFeature(extent.Polygon())
	f.Properties["address"] = addr.String()
	f.Properties["scheme"] = scheme.Name
	f.BBox = geojson.NewBBox(extent.Bound())

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// coverTiles writes one polygon feature per tile intersecting bounds, given
// as west,south,east,north in degrees.
func coverTiles(w io.Writer, bounds string, zooms []int, scheme tiledrop.TilingScheme) error {
	lonlat, err := tiledrop.ParseExtent(bounds)
	if err != nil {
		return err
	}
	lo := project.WGS84.ToMercator(orb.Point{lonlat.MinX, lonlat.MinY})
	hi := project.WGS84.ToMercator(orb.Point{lonlat.MaxX, lonlat.MaxY})
	extent := tiledrop.GeoExtent{MinX: lo.X(), MinY: lo.Y(), MaxX: hi.X(), MaxY: hi.Y()}

	count, err := tiledrop.CountTiles(extent, zooms, scheme)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions64(int64(count),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Resolving tiles"),
		progressbar.OptionShowCount())

	fc := geojson.NewFeatureCollection()
	var resolveErr error
	err = tiledrop.GenerateTiles(&tiledrop.GenerateTilesOptions{
		Extent: extent,
		Zooms:  zooms,
		Scheme: scheme,
		ConsumerFunc: func(addr tiledrop.TileAddress) {
			bar.Add(1)
			tileExtent, err := tiledrop.ResolveExtent(addr, scheme)
			if err != nil {
				resolveErr = err
				return
			}
			f := geojson.NewFeature(project.Polygon(tileExtent.Polygon(), project.Mercator.ToWGS84))
			f.Properties["address"] = addr.String()
			fc.Append(f)
		},
	})
	bar.Finish()
	if err != nil {
		return err
	}
	if resolveErr != nil {
		return resolveErr
	}

	if bound, ok := tiledrop.CollectionBound(fc); ok {
		fc.BBox = geojson.NewBBox(bound)
	}
	return json.NewEncoder(w).Encode(fc)
}

// summarizeMbtiles reports the extent and zoom range actually covered by the
// tiles of an archive next to what its metadata claims.
func summarizeMbtiles(ctx context.Context, w io.Writer, path string, scheme tiledrop.TilingScheme) error {
	reader, err := tiledrop.NewMbtilesReader(path, nil)
	if err != nil {
		return fmt.Errorf("Couldn't read input mbtiles %s: %w", path, err)
	}
	defer reader.Close()

	var bounds *orb.Bound
	minZoom, maxZoom := scheme.MaxZoom, scheme.MinZoom
	count := 0
	var visitErr error

	err = reader.VisitAllTiles(ctx, func(addr tiledrop.TileAddress, data []byte) {
		extent, err := tiledrop.ResolveExtent(addr, scheme)
		if err != nil {
			visitErr = err
			return
		}

		tb := extent.Bound()
		if bounds == nil {
			bounds = &tb
		} else {
			tb = bounds.Union(tb)
			bounds = &tb
		}

		minZoom = min(minZoom, addr.Zoom)
		maxZoom = max(maxZoom, addr.Zoom)
		count++
	})
	if err != nil {
		return fmt.Errorf("Couldn't read tiles from %s: %w", path, err)
	}
	if visitErr != nil {
		return fmt.Errorf("%s contains a tile outside the scheme: %w", path, visitErr)
	}
	if bounds == nil {
		return fmt.Errorf("%s contains no tiles", path)
	}

	lo := project.Mercator.ToWGS84(bounds.Min)
	hi := project.Mercator.ToWGS84(bounds.Max)
	fmt.Fprintf(w, "%s: %d tiles, zooms %d-%d, bounds %f,%f,%f,%f\n", path, count, minZoom, maxZoom, lo.Lon(), lo.Lat(), hi.Lon(), hi.Lat())

	metadata, err := reader.Metadata(ctx)
	if err != nil {
		log.Printf("Unable to read metadata for %s, %v", path, err)
		return nil
	}
	fmt.Fprintf(w, "%s: metadata keys %s\n", path, strings.Join(metadata.Keys(), ", "))
	if b, err := metadata.Bounds(); err == nil {
		fmt.Fprintf(w, "%s: metadata bounds %f,%f,%f,%f\n", path, b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
	}
	mdMin, minErr := metadata.MinZoom()
	mdMax, maxErr := metadata.MaxZoom()
	if minErr == nil && maxErr == nil && (mdMin != minZoom || mdMax != maxZoom) {
		fmt.Fprintf(w, "%s: metadata zooms %d-%d do not match the stored tiles\n", path, mdMin, mdMax)
	}
	return nil
}

func main() {
	z := flag.Int("z", -1, "Zoom of a single tile to resolve.")
	x := flag.Int("x", 0, "Column of a single tile to resolve.")
	y := flag.Int("y", 0, "Row of a single tile to resolve.")
	tms := flag.Bool("tms", false, "Number rows bottom-up (TMS) instead of top-down (XYZ).")
	boundsStr := flag.String("bounds", "-180.0,-85.0511,180.0,85.0511", "Comma-separated bounding box in west,south,east,north format, used with -zooms.")
	zoomsStr := flag.String("zooms", "", "Comma-separated list of zoom levels or a '{MIN_ZOOM}-{MAX_ZOOM}' range string to cover -bounds with.")
	mbtilesPath := flag.String("mbtiles", "", "Summarize the tiles stored in an mbtiles archive.")
	flag.Parse()

	scheme := tiledrop.WebMercator().WithZoomRange(0, 30)
	if *tms {
		scheme = scheme.WithOrientation(tiledrop.BottomUp)
	}

	switch {
	case *mbtilesPath != "":
		// MBTiles rows are flipped to XYZ on read
		if err := summarizeMbtiles(context.Background(), os.Stdout, *mbtilesPath, tiledrop.WebMercator().WithZoomRange(0, 30)); err != nil {
			log.Fatal(err)
		}
	case *zoomsStr != "":
		zooms, err := tiledrop.ParseZooms(*zoomsStr)
		if err != nil {
			log.Fatal(err)
		}
		if err := coverTiles(os.Stdout, *boundsStr, zooms, scheme); err != nil {
			log.Fatalf("Couldn't cover bounds, %v", err)
		}
	case *z >= 0:
		addr := tiledrop.NewTileAddress(*z, *x, *y)
		if err := printExtent(os.Stdout, addr, scheme); err != nil {
			log.Fatalf("Couldn't resolve %s, %v", addr, err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
