// Package config loads client and server settings from a YAML file,
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ClientEnvPrefix префикс переменных окружения клиента (OPSYNC_SYNC_BATCH_SIZE)
	ClientEnvPrefix = "OPSYNC"
	// ServerEnvPrefix префикс переменных окружения сервера
	ServerEnvPrefix = "OPSYNC_SERVER"

	configName = "opsync"
)

// newViper создает экземпляр viper с общими правилами поиска конфигурации.
// Порядок: явный путь > ./opsync.yaml > $HOME/.config/opsync/opsync.yaml
func newViper(path, name, envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(name)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "opsync"))
		}
	}

	// Переменные окружения имеют приоритет над файлом
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// readConfig читает файл; отсутствие файла не ошибка, если путь не задан явно
func readConfig(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !explicit && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config: %w", err)
}

// ParseLogLevel разбирает уровень логирования (debug, info, warn, error)
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger создает text logger с уровнем из конфигурации
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
