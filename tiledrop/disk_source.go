package tiledrop

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/roaring64"
)

type DiskSourceOptions struct {
	// Template lays tiles out below the root, "{z}/{x}/{y}.mvt" when nil.
	Template *PathTemplate
	// Index walks the root once at open so misses skip the filesystem.
	Index  bool
	Logger *slog.Logger
}

// DiskSource serves tiles from a static directory tree.
type DiskSource struct {
	root     string
	template *PathTemplate
	index    *roaring64.Bitmap
	logger   *slog.Logger
}

var _ TileSource = (*DiskSource)(nil)

func NewDiskSource(dsn string, opts DiskSourceOptions) (*DiskSource, error) {
	root, err := filepath.Abs(dsn)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("Root is not a directory")
	}

	tmpl := opts.Template
	if tmpl == nil {
		tmpl = MustPathTemplate("{z}/{x}/{y}.mvt")
	}

	s := &DiskSource{
		root:     root,
		template: tmpl,
		logger:   loggerOrDefault(opts.Logger),
	}

	if opts.Index {
		if err := s.buildIndex(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *DiskSource) buildIndex() error {
	index := roaring64.New()

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		addr, ok := s.template.Match(filepath.ToSlash(rel))
		if !ok || !addr.InPyramid() {
			return nil
		}
		index.Add(addr.ID())
		return nil
	})
	if err != nil {
		return err
	}

	s.index = index
	s.logger.Info("Indexed tile directory", "root", s.root, "tiles", index.GetCardinality())
	return nil
}

// Count is the number of indexed tiles, or -1 without an index.
func (s *DiskSource) Count() int64 {
	if s.index == nil {
		return -1
	}
	return int64(s.index.GetCardinality())
}

func (s *DiskSource) Path(addr TileAddress) string {
	return filepath.Join(s.root, filepath.FromSlash(s.template.Expand(addr)))
}

func (s *DiskSource) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !addr.InPyramid() {
		return blankTile(addr), nil
	}
	if s.index != nil && !s.index.Contains(addr.ID()) {
		return blankTile(addr), nil
	}

	data, err := os.ReadFile(s.Path(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return blankTile(addr), nil
		}
		return nil, err
	}

	return &TileData{Address: addr, Data: data}, nil
}

func (s *DiskSource) Close() error {
	return nil
}
