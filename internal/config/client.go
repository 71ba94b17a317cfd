package config

import (
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// Client настройки клиентского движка синхронизации
type Client struct {
	Conflicts   ConflictsConfig `mapstructure:"conflicts" yaml:"conflicts"`
	Server      EndpointConfig  `mapstructure:"server" yaml:"server"`
	DB          string          `mapstructure:"db" yaml:"db"`
	UserID      string          `mapstructure:"user_id" yaml:"user_id"`
	Log         LogConfig       `mapstructure:"log" yaml:"log"`
	Sync        SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Probe       ProbeConfig     `mapstructure:"probe" yaml:"probe"`
	Realtime    RealtimeConfig  `mapstructure:"realtime" yaml:"realtime"`
	LockTimeout time.Duration   `mapstructure:"lock_timeout" yaml:"lock_timeout"` // ожидание файла базы, занятого другим процессом
}

// EndpointConfig адрес сервера и токен доступа
type EndpointConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Token string `mapstructure:"token" yaml:"token"`
}

// SyncConfig параметры цикла синхронизации
type SyncConfig struct {
	BatchSize      int           `mapstructure:"batch_size" yaml:"batch_size"`
	PullLimit      int           `mapstructure:"pull_limit" yaml:"pull_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	RetryBase      time.Duration `mapstructure:"retry_base" yaml:"retry_base"`
	RetryMax       time.Duration `mapstructure:"retry_max" yaml:"retry_max"`
	RetentionDays  int           `mapstructure:"retention_days" yaml:"retention_days"`
	PruneInterval  time.Duration `mapstructure:"prune_interval" yaml:"prune_interval"`
}

// ProbeConfig параметры проверки доступности сервера
type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// RealtimeConfig параметры realtime канала
type RealtimeConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ConflictsConfig критические поля по видам сущностей; пустое значение
// означает встроенную политику
type ConflictsConfig struct {
	CriticalFields map[string][]string `mapstructure:"critical_fields" yaml:"critical_fields,omitempty"`
}

// LogConfig уровень логирования
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

func setClientDefaults(v interface{ SetDefault(string, any) }) {
	v.SetDefault("server.url", "http://localhost:8080")
	v.SetDefault("server.token", "")
	v.SetDefault("db", "opsync.db")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("user_id", "")

	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.pull_limit", 500)
	v.SetDefault("sync.request_timeout", "15s")
	v.SetDefault("sync.interval", "1m")
	v.SetDefault("sync.retry_base", "1s")
	v.SetDefault("sync.retry_max", "5m")
	v.SetDefault("sync.retention_days", 30)
	v.SetDefault("sync.prune_interval", "1h")

	v.SetDefault("probe.interval", "15s")
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("log.level", "info")
}

// LoadClient загружает конфигурацию клиента.
// path может быть пустым, тогда используется поиск по умолчанию.
func LoadClient(path string) (*Client, error) {
	v := newViper(path, configName, ClientEnvPrefix)
	setClientDefaults(v)

	if err := readConfig(v, path != ""); err != nil {
		return nil, err
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек клиента
func (c *Client) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.DB == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.PullLimit <= 0 {
		return fmt.Errorf("sync.pull_limit must be positive")
	}
	if c.Sync.RetentionDays < 0 {
		return fmt.Errorf("sync.retention_days cannot be negative")
	}
	for name, d := range map[string]time.Duration{
		"sync.request_timeout": c.Sync.RequestTimeout,
		"sync.interval":        c.Sync.Interval,
		"sync.retry_base":      c.Sync.RetryBase,
		"sync.retry_max":       c.Sync.RetryMax,
		"probe.interval":       c.Probe.Interval,
		"lock_timeout":         c.LockTimeout,
	} {
		if err := positive(name, d); err != nil {
			return err
		}
	}
	if c.Sync.RetryMax < c.Sync.RetryBase {
		return fmt.Errorf("sync.retry_max must not be less than sync.retry_base")
	}
	for kind := range c.Conflicts.CriticalFields {
		if _, err := models.ParseEntityKind(kind); err != nil {
			return fmt.Errorf("conflicts.critical_fields: %w", err)
		}
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Retention возвращает срок хранения синхронизированных операций.
// Ноль означает, что операции не удаляются.
func (c *Client) Retention() time.Duration {
	return time.Duration(c.Sync.RetentionDays) * 24 * time.Hour
}
