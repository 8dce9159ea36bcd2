package tiledrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// missMarker is cached for tiles the wrapped source does not have.
var missMarker = []byte{}

// CachedSource is a read-through Redis cache in front of another source.
// Cache failures are logged and the wrapped source is used directly.
type CachedSource struct {
	source TileSource
	client redis.UniversalClient
	scheme string
	ttl    time.Duration
	logger *slog.Logger
}

var _ TileSource = (*CachedSource)(nil)

func NewCachedSource(source TileSource, client redis.UniversalClient, scheme string, ttl time.Duration, logger *slog.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		client: client,
		scheme: scheme,
		ttl:    ttl,
		logger: loggerOrDefault(logger),
	}
}

func CacheKey(scheme string, addr TileAddress) string {
	return fmt.Sprintf("tiledrop:%s:%d", scheme, addr.ID())
}

func (c *CachedSource) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if !addr.InPyramid() {
		return blankTile(addr), nil
	}
	key := CacheKey(c.scheme, addr)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if len(data) == 0 {
			return blankTile(addr), nil
		}
		return &TileData{Address: addr, Data: data}, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Tile cache read failed", "tile", addr, "error", err)
	}

	tile, err := c.source.GetTile(ctx, addr)
	if err != nil {
		return nil, err
	}

	value := missMarker
	if !tile.Empty() {
		value = tile.Data
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("Tile cache write failed", "tile", addr, "error", err)
	}

	return tile, nil
}

func (c *CachedSource) Close() error {
	err := c.source.Close()
	if err2 := c.client.Close(); err2 != nil && err == nil {
		err = err2
	}
	return err
}
