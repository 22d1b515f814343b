// Package config loads popmatch settings from a YAML or JSON file on top of defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go4.org/netipx"
)

var (
	ErrLoad    = errors.New("config: failed to load")
	ErrParse   = errors.New("config: failed to parse")
	ErrInvalid = errors.New("config: invalid value")
)

type Config struct {
	Log     LogConf     `koanf:"log"`
	Redis   RedisConf   `koanf:"redis"`
	PopMap  PopMapConf  `koanf:"popmap"`
	Match   MatchConf   `koanf:"match"`
	Onionoo OnionooConf `koanf:"onionoo"`
	GRPC    GRPCConf    `koanf:"grpc"`
}

type LogConf struct {
	Level string `koanf:"level"`
}

type RedisConf struct {
	Addr       string `koanf:"addr"`
	DB         int    `koanf:"db"`
	Password   string `koanf:"password"`
	IPListKey  string `koanf:"iplist_key"`
	ForceLocal bool   `koanf:"force_local"`
}

// PopMapConf points at a YAML PoP map. When File is set it replaces Redis as the store.
type PopMapConf struct {
	File string `koanf:"file"`
}

type MatchConf struct {
	Workers      int           `koanf:"workers"`
	Exclude      []string      `koanf:"exclude"`
	PopCacheSize int           `koanf:"pop_cache_size"`
	PopCacheTTL  time.Duration `koanf:"pop_cache_ttl"`
}

type OnionooConf struct {
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	Attempts uint          `koanf:"attempts"`
}

type GRPCConf struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func Default() *Config {
	return &Config{
		Log:   LogConf{Level: "info"},
		Redis: RedisConf{Addr: "localhost:6379", IPListKey: "iplist"},
		Match: MatchConf{
			Workers:      8,
			PopCacheSize: 65536,
			PopCacheTTL:  10 * time.Minute,
		},
		Onionoo: OnionooConf{
			URL:      "https://onionoo.torproject.org/summary",
			Timeout:  30 * time.Second,
			Attempts: 3,
		},
		GRPC: GRPCConf{
			Addr:            "localhost:50051",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads the file at path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	k := koanf.New(".")
	if err = k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	if err = k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return cfg, cfg.Validate()
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: unknown config extension %q", ErrLoad, ext)
	}
}

func (cfg *Config) Validate() error {
	if cfg.Match.Workers < 1 {
		return fmt.Errorf("%w: match.workers must be positive, got %d", ErrInvalid, cfg.Match.Workers)
	}
	if cfg.Match.PopCacheSize < 1 {
		return fmt.Errorf("%w: match.pop_cache_size must be positive, got %d", ErrInvalid, cfg.Match.PopCacheSize)
	}
	if cfg.Match.PopCacheTTL < 0 {
		return fmt.Errorf("%w: match.pop_cache_ttl must not be negative", ErrInvalid)
	}
	if cfg.Onionoo.Attempts < 1 {
		return fmt.Errorf("%w: onionoo.attempts must be positive", ErrInvalid)
	}
	if cfg.PopMap.File == "" {
		if _, _, err := net.SplitHostPort(cfg.Redis.Addr); err != nil {
			return fmt.Errorf("%w: redis.addr %q: %w", ErrInvalid, cfg.Redis.Addr, err)
		}
	}
	if _, err := cfg.ExcludedSet(); err != nil {
		return err
	}
	return nil
}

// IsLocalRedis reports whether the Redis address points at this host.
func (cfg *Config) IsLocalRedis() bool {
	host, _, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return false
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// ExcludedSet builds the set of query ranges to skip from match.exclude.
// Entries are CIDRs or single addresses.
func (cfg *Config) ExcludedSet() (*netipx.IPSet, error) {
	var builder netipx.IPSetBuilder
	for _, entry := range cfg.Match.Exclude {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: match.exclude %q: %w", ErrInvalid, entry, err)
			}
			builder.Add(addr)
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: match.exclude %q: %w", ErrInvalid, entry, err)
		}
		builder.AddPrefix(prefix.Masked())
	}
	set, err := builder.IPSet()
	if err != nil {
		return nil, fmt.Errorf("%w: match.exclude: %w", ErrInvalid, err)
	}
	return set, nil
}
