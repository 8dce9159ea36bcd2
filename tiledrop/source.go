package tiledrop

import (
	"context"
	"log/slog"
)

// TileData is one stored tile payload. Data is nil when the source has no
// tile at Address.
type TileData struct {
	Address TileAddress
	Data    []byte
}

// Empty reports whether the source had no tile.
func (t *TileData) Empty() bool {
	return t == nil || t.Data == nil
}

// TileSource is a read-only tile store addressed in XYZ rows.
type TileSource interface {
	GetTile(ctx context.Context, addr TileAddress) (*TileData, error)
	Close() error
}

func blankTile(addr TileAddress) *TileData {
	return &TileData{Address: addr, Data: nil}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
