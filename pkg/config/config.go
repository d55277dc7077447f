/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the parksession configuration file and keeps it current while the
// file changes on disk.
package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/numaproj/parksession/pkg/correlate"
	"github.com/numaproj/parksession/pkg/shared/util"
)

const (
	DefaultConfigPath     = "/etc/parksession/config.yaml"
	DefaultReloadSchedule = "@every 1m"
	DefaultReloadTimeout  = 30 * time.Second
	DefaultCacheSize      = 500
	DefaultCacheTTL       = 30 * time.Second
	DefaultServerPort     = 8443
	DefaultMetricsPort    = 9090
)

// Env variables that override the built-in defaults. Values in the file still win.
const (
	EnvReloadTimeout = "PARKSESSION_RELOAD_TIMEOUT"
	EnvMetricsPort   = "PARKSESSION_METRICS_PORT"
)

// Source types.
const (
	SourceFile     = "file"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceKafka    = "kafka"
	SourceNATS     = "nats"
)

type Config struct {
	Tolerance        time.Duration  `json:"tolerance"`
	MatchPolicy      string         `json:"matchPolicy"`
	TimestampLayouts []string       `json:"timestampLayouts"`
	Reload           ReloadConfig   `json:"reload"`
	Cache            CacheConfig    `json:"cache"`
	Server           ServerConfig   `json:"server"`
	Metrics          MetricsConfig  `json:"metrics"`
	Sources          []SourceConfig `json:"sources"`
}

type ReloadConfig struct {
	Schedule string        `json:"schedule"`
	Timeout  time.Duration `json:"timeout"`
}

type CacheConfig struct {
	Size int           `json:"size"`
	TTL  time.Duration `json:"ttl"`
}

type ServerConfig struct {
	Port               int    `json:"port"`
	// Insecure serves plain HTTP instead of TLS with a self-signed certificate.
	Insecure           bool   `json:"insecure"`
	ReadOnly           bool   `json:"readOnly"`
	CorsAllowedOrigins string `json:"corsAllowedOrigins"`
}

type MetricsConfig struct {
	Port int `json:"port"`
}

// SourceConfig describes one event source. Which fields apply depends on Type.
type SourceConfig struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// file, s3
	Path     string `json:"path"`
	Format   string `json:"format"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`

	// postgres
	DatabaseURL string `json:"databaseURL"`
	Table       string `json:"table"`

	// redis
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PageSize int64  `json:"pageSize"`

	// redis stream key, nats jetstream stream
	Stream string `json:"stream"`

	// kafka
	Brokers      []string `json:"brokers"`
	Topic        string   `json:"topic"`
	SaramaConfig string   `json:"saramaConfig"`

	// nats
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// Validate checks the fields Type requires.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	missing := func(field string) error {
		return fmt.Errorf("source %q of type %q requires %s", s.Name, s.Type, field)
	}
	switch s.Type {
	case SourceFile:
		if s.Path == "" {
			return missing("path")
		}
	case SourceS3:
		if s.Bucket == "" || s.Key == "" {
			return missing("bucket and key")
		}
	case SourcePostgres:
		if s.DatabaseURL == "" {
			return missing("databaseURL")
		}
	case SourceRedis:
		if s.Addr == "" || s.Stream == "" {
			return missing("addr and stream")
		}
	case SourceKafka:
		if len(s.Brokers) == 0 || s.Topic == "" {
			return missing("brokers and topic")
		}
	case SourceNATS:
		if s.URL == "" || s.Stream == "" {
			return missing("url and stream")
		}
	default:
		return fmt.Errorf("source %q has unsupported type %q", s.Name, s.Type)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	if _, err := correlate.ParseMatchPolicy(c.MatchPolicy); err != nil {
		return err
	}
	if strings.TrimSpace(c.Reload.Schedule) == "" {
		return fmt.Errorf("reload.schedule is required")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	names := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, ok := names[s.Name]; ok {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		names[s.Name] = struct{}{}
	}
	return nil
}

// Policy returns the parsed match policy. Validate has already rejected unknown values.
func (c Config) Policy() correlate.MatchPolicy {
	p, _ := correlate.ParseMatchPolicy(c.MatchPolicy)
	return p
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tolerance", correlate.DefaultTolerance)
	v.SetDefault("matchPolicy", string(correlate.MatchNearest))
	v.SetDefault("reload.schedule", DefaultReloadSchedule)
	v.SetDefault("reload.timeout", util.LookupEnvDurationOr(EnvReloadTimeout, DefaultReloadTimeout))
	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.insecure", false)
	v.SetDefault("server.readOnly", false)
	v.SetDefault("server.corsAllowedOrigins", "")
	v.SetDefault("metrics.port", util.LookupEnvIntOr(EnvMetricsPort, DefaultMetricsPort))
}

func unmarshal(v *viper.Viper) (*Config, error) {
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration. %w", err)
	}
	return conf, nil
}

// GlobalConfig holds the latest valid configuration. A change on disk that fails to parse or
// validate is reported and the previous configuration stays in effect.
type GlobalConfig struct {
	conf      *Config
	lock      *sync.RWMutex
	listeners []func(Config)
}

// Get returns a copy of the current configuration.
func (g *GlobalConfig) Get() Config {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return *g.conf
}

// OnChange registers fn to run after every successful reload of the file.
func (g *GlobalConfig) OnChange(fn func(Config)) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *GlobalConfig) update(conf *Config) {
	g.lock.Lock()
	g.conf = conf
	listeners := slices.Clone(g.listeners)
	g.lock.Unlock()
	for _, fn := range listeners {
		fn(*conf)
	}
}

// New wraps a static configuration, e.g. for one-shot commands.
func New(conf Config) *GlobalConfig {
	return &GlobalConfig{conf: &conf, lock: new(sync.RWMutex)}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	conf := Config{}
	_ = v.Unmarshal(&conf)
	return conf
}

// LoadConfig reads the YAML file at path and watches it for changes.
func LoadConfig(path string, onErrorReloading func(error)) (*GlobalConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	conf, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	r := &GlobalConfig{
		conf: conf,
		lock: new(sync.RWMutex),
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cf, err := unmarshal(v)
		if err != nil {
			if onErrorReloading != nil {
				onErrorReloading(err)
			}
			return
		}
		r.update(cf)
	})
	v.WatchConfig()
	return r, nil
}
