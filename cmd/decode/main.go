package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

func main() {
	formatStr := flag.String("format", "", "Input format: mvt, geojson, wkt or wkb. Defaults to the file extension.")
	zStr := flag.String("z", "", "Zoom of the tile, required for vector tiles.")
	xStr := flag.String("x", "", "Column of the tile, required for vector tiles.")
	yStr := flag.String("y", "", "Row of the tile, required for vector tiles.")
	projected := flag.Bool("projected", false, "Keep vector tile geometries in Web Mercator instead of longitude/latitude.")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %s [flags] <file>", filepath.Base(os.Args[0]))
	}
	path := flag.Arg(0)

	var format tiledrop.Format
	var err error
	if *formatStr != "" {
		format, err = tiledrop.ParseFormat(*formatStr)
	} else {
		format, err = tiledrop.FormatFromFilename(path)
	}
	if err != nil {
		log.Fatal(err)
	}

	scheme := tiledrop.WebMercator()
	opts := tiledrop.DecodeOptions{}
	if format.NeedsExtent() {
		addr, err := tiledrop.ParseTileAddress(*zStr, *xStr, *yStr)
		if err != nil {
			log.Fatalf("Vector tiles need -z, -x and -y, %v", err)
		}
		extent, err := tiledrop.ResolveExtent(addr, scheme)
		if err != nil {
			log.Fatalf("Couldn't resolve %s, %v", addr, err)
		}
		opts.Extent = &extent
		if !*projected {
			opts.Unproject = scheme.Unproject
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Couldn't read %s, %v", path, err)
	}

	fc, err := tiledrop.DecodeFeatures(data, format, opts)
	if err != nil {
		log.Fatalf("Couldn't decode %s, %v", path, err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(fc); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintln(os.Stderr, tiledrop.DescribeFeatures(fc.Features))
}
