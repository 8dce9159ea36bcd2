package tiledrop

import (
	"context"
	"database/sql"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver
)

// MbtilesReader reads an MBTiles archive. Rows are stored TMS style and
// flipped to XYZ on the way in and out.
type MbtilesReader interface {
	TileSource
	Metadata(ctx context.Context) (*MbtilesMetadata, error)
	VisitAllTiles(ctx context.Context, visitor func(TileAddress, []byte)) error
}

func NewMbtilesReader(dsn string, logger *slog.Logger) (MbtilesReader, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return NewMbtilesReaderWithDatabase(db, logger)
}

func NewMbtilesReaderWithDatabase(db *sql.DB, logger *slog.Logger) (MbtilesReader, error) {
	return &mbtilesReader{db: db, logger: loggerOrDefault(logger)}, nil
}

type mbtilesReader struct {
	db     *sql.DB
	logger *slog.Logger
}

// Close gracefully tears down the mbtiles connection.
func (o *mbtilesReader) Close() error {
	var err error

	if o.db != nil {
		if err2 := o.db.Close(); err2 != nil {
			err = err2
		}
	}

	return err
}

// GetTile returns data for the given XYZ address.
func (o *mbtilesReader) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if !addr.InPyramid() {
		return blankTile(addr), nil
	}

	row := addr.FlipY()

	var data []byte
	result := o.db.QueryRowContext(ctx, "SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=? LIMIT 1", row.Zoom, row.X, row.Y)
	err := result.Scan(&data)

	if err != nil {
		if err == sql.ErrNoRows {
			return blankTile(addr), nil
		}
		return nil, err
	}

	return &TileData{Address: addr, Data: data}, nil
}

// Metadata reads the name/value pairs of the metadata table.
func (o *mbtilesReader) Metadata(ctx context.Context) (*MbtilesMetadata, error) {
	rows, err := o.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		if name.Valid {
			metadata[name.String] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewMbtilesMetadata(metadata), nil
}

// VisitAllTiles runs the given function on all tiles in this mbtiles archive.
func (o *mbtilesReader) VisitAllTiles(ctx context.Context, visitor func(TileAddress, []byte)) error {
	rows, err := o.db.QueryContext(ctx, "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var z, x, y int
		data := []byte{}
		if err := rows.Scan(&z, &x, &y, &data); err != nil {
			o.logger.Warn("Couldn't scan row", "error", err)
			continue
		}

		addr := TileAddress{Zoom: z, X: x, Y: y}
		if !addr.InPyramid() {
			o.logger.Warn("Skipping tile outside the pyramid", "tile", addr)
			continue
		}
		visitor(addr.FlipY(), data)
	}
	return rows.Err()
}
