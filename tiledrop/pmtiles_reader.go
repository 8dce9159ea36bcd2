package tiledrop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/protomaps/go-pmtiles/pmtiles"
)

// maxDirectoryDepth bounds leaf directory recursion in a PMTiles archive.
const maxDirectoryDepth = 4

// PmtilesReader serves tiles from a local PMTiles v3 archive.
type PmtilesReader struct {
	file   *os.File
	header pmtiles.HeaderV3
	root   []pmtiles.EntryV3
}

var _ TileSource = (*PmtilesReader)(nil)

func NewPmtilesReader(path string) (*PmtilesReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &PmtilesReader{file: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading pmtiles archive %s: %w", path, err)
	}
	return r, nil
}

func (r *PmtilesReader) readHeader() error {
	headerBytes := make([]byte, pmtiles.HeaderV3LenBytes)
	if _, err := r.file.ReadAt(headerBytes, 0); err != nil {
		return fmt.Errorf("error reading pmtiles header: %w", err)
	}

	header, err := pmtiles.DeserializeHeader(headerBytes)
	if err != nil {
		return err
	}
	r.header = header

	root, err := r.readDirectory(header.RootOffset, header.RootLength)
	if err != nil {
		return fmt.Errorf("error reading pmtiles root directory: %w", err)
	}
	r.root = root
	return nil
}

func (r *PmtilesReader) readDirectory(offset uint64, length uint64) ([]pmtiles.EntryV3, error) {
	data, err := r.readRange(offset, length)
	if err != nil {
		return nil, err
	}
	return pmtiles.DeserializeEntries(bytes.NewBuffer(data), r.header.InternalCompression), nil
}

func (r *PmtilesReader) readRange(offset uint64, length uint64) ([]byte, error) {
	data := make([]byte, length)
	n, err := r.file.ReadAt(data, int64(offset))
	if err != nil && !(err == io.EOF && uint64(n) == length) {
		return nil, err
	}
	return data, nil
}

// Header is the archive header, including its zoom range and tile type.
func (r *PmtilesReader) Header() pmtiles.HeaderV3 {
	return r.header
}

func (r *PmtilesReader) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if !addr.InPyramid() || addr.Zoom < int(r.header.MinZoom) || addr.Zoom > int(r.header.MaxZoom) {
		return blankTile(addr), nil
	}

	id := addr.ID()
	entries := r.root

	for depth := 0; depth < maxDirectoryDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, ok := findEntry(entries, id)
		if !ok {
			return blankTile(addr), nil
		}

		if entry.RunLength > 0 {
			data, err := r.readRange(r.header.TileDataOffset+entry.Offset, uint64(entry.Length))
			if err != nil {
				return nil, fmt.Errorf("error reading tile %s: %w", addr, err)
			}
			return &TileData{Address: addr, Data: data}, nil
		}

		leaf, err := r.readDirectory(r.header.LeafDirectoryOffset+entry.Offset, uint64(entry.Length))
		if err != nil {
			return nil, fmt.Errorf("error reading leaf directory for %s: %w", addr, err)
		}
		entries = leaf
	}

	return blankTile(addr), nil
}

// findEntry locates the directory entry covering id in entries sorted by
// tile id. An entry with a zero run length points at a leaf directory that
// covers every id from its own up to the next entry.
func findEntry(entries []pmtiles.EntryV3, id uint64) (pmtiles.EntryV3, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].TileID > id }) - 1
	if i < 0 {
		return pmtiles.EntryV3{}, false
	}

	entry := entries[i]
	if entry.RunLength == 0 || id-entry.TileID < uint64(entry.RunLength) {
		return entry, true
	}
	return pmtiles.EntryV3{}, false
}

func (r *PmtilesReader) Close() error {
	return r.file.Close()
}
