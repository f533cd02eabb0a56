// Package config loads shopd and shopctl settings from a TOML file laid over Default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Server struct {
	Addr            string        `toml:"addr"`
	AdvertiseAddr   string        `toml:"advertise_addr"`
	ServiceName     string        `toml:"service_name"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	HandlerTimeout  time.Duration `toml:"handler_timeout"`
	Retries         int           `toml:"retries"`
}

type Client struct {
	ServerAddr  string        `toml:"server_addr"`
	PoolSize    int           `toml:"pool_size"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	CallTimeout time.Duration `toml:"call_timeout"`
	Balancer    string        `toml:"balancer"`
}

type Heartbeat struct {
	Interval  time.Duration `toml:"interval"`
	DeadAfter time.Duration `toml:"dead_after"`
}

type Transfer struct {
	ChunkSize    int           `toml:"chunk_size"`
	MaxTransfers int           `toml:"max_transfers"`
	Timeout      time.Duration `toml:"timeout"`
}

type Limits struct {
	MaxImageSize     int           `toml:"max_image_size"`
	MaxCorruptFrames int           `toml:"max_corrupt_frames"`
	Rate             float64       `toml:"rate"`
	Burst            int           `toml:"burst"`
	PageSize         int32         `toml:"page_size"`
	MaxPageSize      int32         `toml:"max_page_size"`
	SessionTTL       time.Duration `toml:"session_ttl"`
	InitialBalance   float64       `toml:"initial_balance"`
	ImageCacheCount  int           `toml:"image_cache_count"`
	ImageCacheBytes  int64         `toml:"image_cache_bytes"`
}

type Store struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type Registry struct {
	Enabled     bool          `toml:"enabled"`
	Endpoints   []string      `toml:"endpoints"`
	DialTimeout time.Duration `toml:"dial_timeout"`
	TTL         int64         `toml:"ttl"`
}

type Metrics struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Namespace string `toml:"namespace"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

type Config struct {
	Server    Server    `toml:"server"`
	Client    Client    `toml:"client"`
	Heartbeat Heartbeat `toml:"heartbeat"`
	Transfer  Transfer  `toml:"transfer"`
	Limits    Limits    `toml:"limits"`
	Store     Store     `toml:"store"`
	Registry  Registry  `toml:"registry"`
	Metrics   Metrics   `toml:"metrics"`
	Log       Log       `toml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:            "127.0.0.1:8888",
			ServiceName:     "shop",
			ShutdownTimeout: 10 * time.Second,
			HandlerTimeout:  5 * time.Second,
			Retries:         2,
		},
		Client: Client{
			ServerAddr:  "127.0.0.1:8888",
			PoolSize:    4,
			DialTimeout: 3 * time.Second,
			CallTimeout: 30 * time.Second,
			Balancer:    "round_robin",
		},
		Heartbeat: Heartbeat{
			Interval:  10 * time.Second,
			DeadAfter: 30 * time.Second,
		},
		Transfer: Transfer{
			ChunkSize:    32 << 10,
			MaxTransfers: 8,
			Timeout:      time.Minute,
		},
		Limits: Limits{
			MaxImageSize:     10 << 20,
			MaxCorruptFrames: 8,
			Rate:             200,
			Burst:            400,
			PageSize:         20,
			MaxPageSize:      100,
			SessionTTL:       30 * time.Minute,
			ImageCacheCount:  4096,
			ImageCacheBytes:  256 << 20,
		},
		Store: Store{
			Driver: "memory",
			Path:   "shop.db",
		},
		Registry: Registry{
			Endpoints:   []string{"127.0.0.1:2379"},
			DialTimeout: 5 * time.Second,
			TTL:         10,
		},
		Metrics: Metrics{
			Enabled:   true,
			Addr:      "127.0.0.1:9100",
			Namespace: "shopwire",
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

func overlay[T any](meta toml.MetaData, dst *T, v T, key ...string) {
	if meta.IsDefined(key...) {
		*dst = v
	}
}

func overlayString(meta toml.MetaData, dst *string, v string, key ...string) {
	if meta.IsDefined(key...) {
		*dst = strings.TrimSpace(v)
	}
}

// Load reads path and lays every key it defines over Default. Keys absent from the
// file keep their defaults, so an explicit zero is honoured.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	overlayString(meta, &cfg.Server.Addr, raw.Server.Addr, "server", "addr")
	overlayString(meta, &cfg.Server.AdvertiseAddr, raw.Server.AdvertiseAddr, "server", "advertise_addr")
	overlayString(meta, &cfg.Server.ServiceName, raw.Server.ServiceName, "server", "service_name")
	overlay(meta, &cfg.Server.ShutdownTimeout, raw.Server.ShutdownTimeout, "server", "shutdown_timeout")
	overlay(meta, &cfg.Server.HandlerTimeout, raw.Server.HandlerTimeout, "server", "handler_timeout")
	overlay(meta, &cfg.Server.Retries, raw.Server.Retries, "server", "retries")

	overlayString(meta, &cfg.Client.ServerAddr, raw.Client.ServerAddr, "client", "server_addr")
	overlay(meta, &cfg.Client.PoolSize, raw.Client.PoolSize, "client", "pool_size")
	overlay(meta, &cfg.Client.DialTimeout, raw.Client.DialTimeout, "client", "dial_timeout")
	overlay(meta, &cfg.Client.CallTimeout, raw.Client.CallTimeout, "client", "call_timeout")
	overlayString(meta, &cfg.Client.Balancer, raw.Client.Balancer, "client", "balancer")

	overlay(meta, &cfg.Heartbeat.Interval, raw.Heartbeat.Interval, "heartbeat", "interval")
	overlay(meta, &cfg.Heartbeat.DeadAfter, raw.Heartbeat.DeadAfter, "heartbeat", "dead_after")

	overlay(meta, &cfg.Transfer.ChunkSize, raw.Transfer.ChunkSize, "transfer", "chunk_size")
	overlay(meta, &cfg.Transfer.MaxTransfers, raw.Transfer.MaxTransfers, "transfer", "max_transfers")
	overlay(meta, &cfg.Transfer.Timeout, raw.Transfer.Timeout, "transfer", "timeout")

	overlay(meta, &cfg.Limits.MaxImageSize, raw.Limits.MaxImageSize, "limits", "max_image_size")
	overlay(meta, &cfg.Limits.MaxCorruptFrames, raw.Limits.MaxCorruptFrames, "limits", "max_corrupt_frames")
	overlay(meta, &cfg.Limits.Rate, raw.Limits.Rate, "limits", "rate")
	overlay(meta, &cfg.Limits.Burst, raw.Limits.Burst, "limits", "burst")
	overlay(meta, &cfg.Limits.PageSize, raw.Limits.PageSize, "limits", "page_size")
	overlay(meta, &cfg.Limits.MaxPageSize, raw.Limits.MaxPageSize, "limits", "max_page_size")
	overlay(meta, &cfg.Limits.SessionTTL, raw.Limits.SessionTTL, "limits", "session_ttl")
	overlay(meta, &cfg.Limits.InitialBalance, raw.Limits.InitialBalance, "limits", "initial_balance")
	overlay(meta, &cfg.Limits.ImageCacheCount, raw.Limits.ImageCacheCount, "limits", "image_cache_count")
	overlay(meta, &cfg.Limits.ImageCacheBytes, raw.Limits.ImageCacheBytes, "limits", "image_cache_bytes")

	overlayString(meta, &cfg.Store.Driver, raw.Store.Driver, "store", "driver")
	overlayString(meta, &cfg.Store.Path, raw.Store.Path, "store", "path")

	overlay(meta, &cfg.Registry.Enabled, raw.Registry.Enabled, "registry", "enabled")
	overlay(meta, &cfg.Registry.Endpoints, raw.Registry.Endpoints, "registry", "endpoints")
	overlay(meta, &cfg.Registry.DialTimeout, raw.Registry.DialTimeout, "registry", "dial_timeout")
	overlay(meta, &cfg.Registry.TTL, raw.Registry.TTL, "registry", "ttl")

	overlay(meta, &cfg.Metrics.Enabled, raw.Metrics.Enabled, "metrics", "enabled")
	overlayString(meta, &cfg.Metrics.Addr, raw.Metrics.Addr, "metrics", "addr")
	overlayString(meta, &cfg.Metrics.Namespace, raw.Metrics.Namespace, "metrics", "namespace")

	overlayString(meta, &cfg.Log.Level, raw.Log.Level, "log", "level")
	overlayString(meta, &cfg.Log.Format, raw.Log.Format, "log", "format")

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every setting that cannot work, joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is empty")
	check(c.Server.ServiceName != "", "server.service_name is empty")
	check(c.Server.Retries >= 0, "server.retries is negative")
	check(c.Client.PoolSize > 0, "client.pool_size must be positive")
	switch c.Client.Balancer {
	case "", "round_robin", "weighted_random":
	default:
		errs = append(errs, fmt.Errorf("client.balancer %q is not supported", c.Client.Balancer))
	}
	check(c.Heartbeat.Interval > 0, "heartbeat.interval must be positive")
	check(c.Heartbeat.DeadAfter > c.Heartbeat.Interval, "heartbeat.dead_after must exceed heartbeat.interval")
	// the frame body also holds the chunk header and the checksum
	check(c.Transfer.ChunkSize > 0 && c.Transfer.ChunkSize <= 65506, "transfer.chunk_size %d outside 1..65506", c.Transfer.ChunkSize)
	check(c.Transfer.MaxTransfers > 0, "transfer.max_transfers must be positive")
	check(c.Limits.MaxImageSize > 0, "limits.max_image_size must be positive")
	check(c.Limits.Rate >= 0 && c.Limits.Burst >= 0, "limits.rate and limits.burst must not be negative")
	check(c.Limits.PageSize > 0 && c.Limits.PageSize <= c.Limits.MaxPageSize, "limits.page_size must be in 1..max_page_size")
	check(c.Limits.InitialBalance >= 0, "limits.initial_balance is negative")
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		check(c.Store.Path != "", "store.path is required for sqlite")
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	check(!c.Registry.Enabled || len(c.Registry.Endpoints) > 0, "registry.endpoints is empty")
	check(!c.Metrics.Enabled || c.Metrics.Addr != "", "metrics.addr is empty")
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
