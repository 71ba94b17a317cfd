package config

import (
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/validation"
)

// Server настройки сервера журнала операций
type Server struct {
	Archive   ArchiveConfig    `mapstructure:"archive" yaml:"archive"`
	JWT       JWTConfig        `mapstructure:"jwt" yaml:"jwt"`
	Addr      string           `mapstructure:"addr" yaml:"addr"`
	DB        string           `mapstructure:"db" yaml:"db"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Sync      ServerSyncConfig `mapstructure:"sync" yaml:"sync"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Realtime  RealtimeConfig   `mapstructure:"realtime" yaml:"realtime"`
}

// JWTConfig параметры подписи токенов доступа
type JWTConfig struct {
	Secret string        `mapstructure:"secret" yaml:"-"`
	Issuer string        `mapstructure:"issuer" yaml:"issuer"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// ServerSyncConfig ограничения протокола синхронизации
type ServerSyncConfig struct {
	MaxBatchSize     int   `mapstructure:"max_batch_size" yaml:"max_batch_size"`
	DefaultPullLimit int   `mapstructure:"default_pull_limit" yaml:"default_pull_limit"`
	MaxPullLimit     int   `mapstructure:"max_pull_limit" yaml:"max_pull_limit"`
	MaxRequestBytes  int64 `mapstructure:"max_request_bytes" yaml:"max_request_bytes"` // предел тела push запроса
}

// RateLimitConfig ограничение частоты запросов; Requests=0 отключает лимит
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" yaml:"requests"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

// ArchiveConfig выгрузка журнала в S3-совместимое хранилище.
// Пустой Bucket отключает архивирование.
type ArchiveConfig struct {
	Bucket       string        `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string        `mapstructure:"prefix" yaml:"prefix"`
	Region       string        `mapstructure:"region" yaml:"region"`
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey    string        `mapstructure:"access_key" yaml:"-"`
	SecretKey    string        `mapstructure:"secret_key" yaml:"-"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	UsePathStyle bool          `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// Enabled сообщает, настроено ли архивирование
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

func setServerDefaults(v interface{ SetDefault(string, any) }) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "opsync-server.db")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "opsync")
	v.SetDefault("jwt.ttl", "720h")

	v.SetDefault("sync.max_batch_size", 500)
	v.SetDefault("sync.default_pull_limit", 500)
	v.SetDefault("sync.max_pull_limit", 1000)
	v.SetDefault("sync.max_request_bytes", 16<<20)

	v.SetDefault("rate_limit.requests", 600)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("realtime.enabled", true)

	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "opsync/")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.interval", "0s")
	v.SetDefault("archive.batch_size", 10000)
	v.SetDefault("archive.use_path_style", false)

	v.SetDefault("log.level", "info")
}

// LoadServer загружает конфигурацию сервера (файл opsync-server.yaml)
func LoadServer(path string) (*Server, error) {
	v := newViper(path, configName+"-server", ServerEnvPrefix)
	setServerDefaults(v)

	if err := readConfig(v, path != ""); err != nil {
		return nil, err
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек сервера.
// Секрет JWT проверяется командами, которым он нужен.
func (c *Server) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DB == "" {
		return fmt.Errorf("db path is required")
	}
	if err := positive("jwt.ttl", c.JWT.TTL); err != nil {
		return err
	}
	if c.Sync.MaxBatchSize <= 0 || c.Sync.MaxPullLimit <= 0 || c.Sync.DefaultPullLimit <= 0 {
		return fmt.Errorf("sync limits must be positive")
	}
	if c.Sync.MaxRequestBytes <= validation.MaxPayloadSize {
		return fmt.Errorf("sync.max_request_bytes must exceed the %d byte payload limit", validation.MaxPayloadSize)
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate_limit.requests cannot be negative")
	}
	if c.RateLimit.Requests > 0 {
		if err := positive("rate_limit.window", c.RateLimit.Window); err != nil {
			return err
		}
	}
	if c.Archive.Interval < 0 {
		return fmt.Errorf("archive.interval cannot be negative")
	}
	if c.Archive.Enabled() && c.Archive.BatchSize <= 0 {
		return fmt.Errorf("archive.batch_size must be positive")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// RequireSecret проверяет наличие секрета для подписи токенов
func (c *Server) RequireSecret() error {
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("jwt.secret must be at least 16 characters (set %s_JWT_SECRET)", ServerEnvPrefix)
	}
	return nil
}
