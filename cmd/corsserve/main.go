// Command corsserve раздаёт текущую директорию по HTTP на localhost
// и добавляет к каждому ответу разрешающие CORS и no-cache заголовки.
//
// Использование:
//
//	corsserve [port]
//
// Порт по умолчанию - 8000.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Haleralex/corsserve/internal/config"
	"github.com/Haleralex/corsserve/internal/container"
)

// version задаётся при сборке: -ldflags "-X main.version=1.2.3"
var version string

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	c := container.New(cfg)
	if err := c.Initialize(context.Background()); err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := c.Run(); err != nil {
		c.Logger().Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig собирает конфигурацию: .env -> config file/env -> аргумент порта.
func loadConfig(args []string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(".", "corsserve")
	if err != nil {
		return nil, err
	}
	if version != "" {
		cfg.App.Version = version
	}

	if err := cfg.ApplyArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
