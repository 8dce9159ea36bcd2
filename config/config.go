package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tilezen/go-tiledrop/tiledrop"
)

// Config holds all server configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Scheme SchemeConfig `mapstructure:"scheme"`
	Tiles  TilesConfig  `mapstructure:"tiles"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Decode DecodeConfig `mapstructure:"decode"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

type SchemeConfig struct {
	MinZoom     int    `mapstructure:"min_zoom"`
	MaxZoom     int    `mapstructure:"max_zoom"`
	Orientation string `mapstructure:"orientation"`
}

type TilesConfig struct {
	Source         string `mapstructure:"source"`
	Root           string `mapstructure:"root"`
	URL            string `mapstructure:"url"`
	Bucket         string `mapstructure:"bucket"`
	RequesterPays  bool   `mapstructure:"requester_pays"`
	FetchPrefix    string `mapstructure:"fetch_prefix"`
	FetchPath      string `mapstructure:"fetch_path"`
	DownloadPrefix string `mapstructure:"download_prefix"`
	DownloadPath   string `mapstructure:"download_path"`
	Index          bool   `mapstructure:"index"`
	Timeout        int    `mapstructure:"timeout"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
	TTL       int    `mapstructure:"ttl"`
}

type DecodeConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", 5)
	v.SetDefault("server.write_timeout", 5)
	v.SetDefault("server.idle_timeout", 30)
	v.SetDefault("scheme.min_zoom", 0)
	v.SetDefault("scheme.max_zoom", 22)
	v.SetDefault("scheme.orientation", "xyz")
	v.SetDefault("tiles.source", "disk")
	v.SetDefault("tiles.root", "tiles")
	v.SetDefault("tiles.url", "")
	v.SetDefault("tiles.bucket", "")
	v.SetDefault("tiles.requester_pays", false)
	v.SetDefault("tiles.fetch_prefix", "/tiles/")
	v.SetDefault("tiles.fetch_path", "{z}/{x}/{y}.mvt")
	v.SetDefault("tiles.download_prefix", "/download/")
	v.SetDefault("tiles.download_path", "{z}/{x}/{y}.pbf")
	v.SetDefault("tiles.index", false)
	v.SetDefault("tiles.timeout", 10)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", 3600)
	v.SetDefault("decode.max_bytes", 32<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional config file and the
// environment. An empty path looks for config.{yaml,toml} in the working
// directory and ./configs.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: TILEDROP_TILES_ROOT → tiles.root
	v.SetEnvPrefix("TILEDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var sources = map[string]bool{
	"disk":    true,
	"mbtiles": true,
	"pmtiles": true,
	"http":    true,
	"s3":      true,
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Listen == "" {
		errs = append(errs, "server.listen is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if _, err := tiledrop.ParseOrientation(c.Scheme.Orientation); err != nil {
		errs = append(errs, fmt.Sprintf("scheme.orientation: %v", err))
	} else if _, err := c.TilingScheme(); err != nil {
		errs = append(errs, fmt.Sprintf("scheme: %v", err))
	}

	if !sources[c.Tiles.Source] {
		errs = append(errs, fmt.Sprintf("tiles.source must be one of disk, mbtiles, pmtiles, http, s3, got %q", c.Tiles.Source))
	}
	switch c.Tiles.Source {
	case "disk", "mbtiles", "pmtiles":
		if c.Tiles.Root == "" {
			errs = append(errs, fmt.Sprintf("tiles.root is required for the %s source", c.Tiles.Source))
		}
	case "http":
		if c.Tiles.URL == "" {
			errs = append(errs, "tiles.url is required for the http source")
		}
	case "s3":
		if c.Tiles.Bucket == "" {
			errs = append(errs, "tiles.bucket is required for the s3 source")
		}
	}

	if _, err := tiledrop.NewPathTemplate(c.Tiles.FetchPath); err != nil {
		errs = append(errs, fmt.Sprintf("tiles.fetch_path: %v", err))
	}
	if _, err := tiledrop.NewPathTemplate(c.Tiles.DownloadPath); err != nil {
		errs = append(errs, fmt.Sprintf("tiles.download_path: %v", err))
	}
	if normalizePrefix(c.Tiles.FetchPrefix) == normalizePrefix(c.Tiles.DownloadPrefix) {
		errs = append(errs, "tiles.fetch_prefix and tiles.download_prefix must differ")
	}
	if c.Tiles.Timeout <= 0 {
		errs = append(errs, "tiles.timeout must be positive")
	}

	if c.Cache.RedisAddr != "" && c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}
	if c.Decode.MaxBytes <= 0 {
		errs = append(errs, "decode.max_bytes must be positive")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func normalizePrefix(p string) string {
	return "/" + strings.Trim(p, "/") + "/"
}

// TilingScheme is Web Mercator restricted to the configured zooms and
// row orientation.
func (c *Config) TilingScheme() (tiledrop.TilingScheme, error) {
	orientation, err := tiledrop.ParseOrientation(c.Scheme.Orientation)
	if err != nil {
		return tiledrop.TilingScheme{}, err
	}

	scheme := tiledrop.WebMercator().
		WithZoomRange(c.Scheme.MinZoom, c.Scheme.MaxZoom).
		WithOrientation(orientation)
	if err := scheme.Validate(); err != nil {
		return tiledrop.TilingScheme{}, err
	}
	return scheme, nil
}

func (c *Config) FetchTemplate() (*tiledrop.PathTemplate, error) {
	return tiledrop.NewPathTemplate(c.Tiles.FetchPath)
}

func (c *Config) DownloadTemplate() (*tiledrop.PathTemplate, error) {
	return tiledrop.NewPathTemplate(c.Tiles.DownloadPath)
}

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(s.ReadTimeout) * time.Second,
		time.Duration(s.WriteTimeout) * time.Second,
		time.Duration(s.IdleTimeout) * time.Second
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, err
	}
	return level, nil
}

// NewLogger builds the process logger. Output goes to stderr.
func (l LogConfig) NewLogger() *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
