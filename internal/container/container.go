// Package container - Dependency Injection container for the application.
//
// Container управляет жизненным циклом всех зависимостей:
// - Создание (logger, tracing, metrics, router, server)
// - Доступ (getters)
// - Закрытие (shutdown сервера, сброс spans)
//
// Pattern: Composition Root
// - Все зависимости собираются в одном месте
// - Легко тестировать
// - Легко заменять реализации
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/corsserve/internal/adapters/http"
	"github.com/Haleralex/corsserve/internal/adapters/http/middleware"
	"github.com/Haleralex/corsserve/internal/config"
	"github.com/Haleralex/corsserve/internal/pkg/logger"
	"github.com/Haleralex/corsserve/internal/pkg/tracing"
)

// MetricsNamespace - префикс имён метрик Prometheus.
const MetricsNamespace = "corsserve"

// ============================================
// Container
// ============================================

// Container - DI контейнер приложения.
type Container struct {
	config *config.Config
	logger *slog.Logger

	// Observability
	tracing *tracing.Provider
	metrics *middleware.Metrics

	// HTTP
	httpServer *http.Server
}

// New создаёт новый контейнер с заданной конфигурацией.
func New(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// ============================================
// Initialization
// ============================================

// Initialize инициализирует все зависимости.
// Сокет не открывается до Run.
func (c *Container) Initialize(ctx context.Context) error {
	c.logger = c.initLogger()
	c.logger.Debug("Initializing application container...")

	// 1. Tracing
	if err := c.initTracing(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 2. Metrics
	c.metrics = middleware.NewMetrics(MetricsNamespace)

	// 3. HTTP Server
	c.initHTTPServer()

	c.logger.Debug("Container initialization complete")
	return nil
}

// initLogger инициализирует логгер и делает его логгером по умолчанию.
func (c *Container) initLogger() *slog.Logger {
	return logger.Setup(&logger.Config{
		Level:     c.config.Log.Level,
		Format:    c.config.Log.Format,
		Output:    os.Stderr,
		AddSource: c.config.Log.Level == "debug",
	})
}

// initTracing настраивает OpenTelemetry (no-op если выключено).
func (c *Container) initTracing(ctx context.Context) error {
	provider, err := tracing.Setup(ctx, &tracing.Config{
		Enabled:        c.config.Tracing.Enabled,
		Endpoint:       c.config.Tracing.Endpoint,
		Insecure:       c.config.Tracing.Insecure,
		ServiceName:    c.config.Tracing.ServiceName,
		ServiceVersion: c.config.App.Version,
		SampleRatio:    c.config.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}

	c.tracing = provider
	return nil
}

// initHTTPServer инициализирует HTTP сервер.
func (c *Container) initHTTPServer() {
	var tp trace.TracerProvider
	if c.tracing != nil && c.tracing.Enabled() {
		tp = c.tracing.TracerProvider
	}

	router := http.NewRouter(&http.RouterConfig{
		Logger:         c.logger,
		Config:         c.config,
		Metrics:        c.metrics,
		TracerProvider: tp,
	})

	c.httpServer = http.NewServer(http.NewServerConfig(&c.config.Server, c.logger), router)
}

// ============================================
// Getters
// ============================================

// Config возвращает конфигурацию.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger возвращает логгер.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Metrics возвращает коллекторы Prometheus.
func (c *Container) Metrics() *middleware.Metrics {
	return c.metrics
}

// Tracing возвращает tracer provider.
func (c *Container) Tracing() *tracing.Provider {
	return c.tracing
}

// HTTPServer возвращает HTTP сервер.
func (c *Container) HTTPServer() *http.Server {
	return c.httpServer
}

// ============================================
// Shutdown
// ============================================

// Shutdown выполняет graceful shutdown всех компонентов.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	// 1. HTTP Server
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// 2. Tracing
	if err := c.closeTracing(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// closeTracing сбрасывает незавершённые spans.
func (c *Container) closeTracing(ctx context.Context) error {
	if c.tracing == nil {
		return nil
	}
	if err := c.tracing.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing shutdown: %w", err)
	}
	return nil
}

// ============================================
// Run
// ============================================

// Run запускает сервер и ожидает SIGINT/SIGTERM.
func (c *Container) Run() error {
	c.logStartup()

	err := c.httpServer.Run()
	if terr := c.closeTracing(context.Background()); terr != nil {
		c.logger.Error("Tracing shutdown error", slog.String("error", terr.Error()))
	}
	return err
}

// RunWithContext запускает сервер до отмены ctx.
func (c *Container) RunWithContext(ctx context.Context) error {
	c.logStartup()

	err := c.httpServer.RunWithContext(ctx)
	if terr := c.closeTracing(context.WithoutCancel(ctx)); terr != nil {
		c.logger.Error("Tracing shutdown error", slog.String("error", terr.Error()))
	}
	return err
}

func (c *Container) logStartup() {
	root, err := filepath.Abs(c.config.Static.Root)
	if err != nil {
		root = c.config.Static.Root
	}

	c.logger.Info("Starting corsserve",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("root", root),
		slog.String("address", c.config.Server.Address()),
		slog.Bool("admin", c.config.Admin.Enabled),
		slog.Bool("tracing", c.config.Tracing.Enabled),
	)
}

// ============================================
// Builder Pattern (Alternative)
// ============================================

// ContainerBuilder - builder для создания контейнера с кастомными компонентами.
type ContainerBuilder struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *middleware.Metrics
	tracing *tracing.Provider
}

// NewBuilder создаёт новый builder.
func NewBuilder(cfg *config.Config) *ContainerBuilder {
	return &ContainerBuilder{
		cfg: cfg,
	}
}

// WithLogger устанавливает кастомный логгер.
func (b *ContainerBuilder) WithLogger(logger *slog.Logger) *ContainerBuilder {
	b.logger = logger
	return b
}

// WithMetrics устанавливает готовые коллекторы.
func (b *ContainerBuilder) WithMetrics(m *middleware.Metrics) *ContainerBuilder {
	b.metrics = m
	return b
}

// WithTracing устанавливает готовый tracer provider.
func (b *ContainerBuilder) WithTracing(p *tracing.Provider) *ContainerBuilder {
	b.tracing = p
	return b
}

// Build создаёт контейнер.
func (b *ContainerBuilder) Build(ctx context.Context) (*Container, error) {
	c := New(b.cfg)

	// Use provided or initialize
	if b.logger != nil {
		c.logger = b.logger
	} else {
		c.logger = c.initLogger()
	}

	if b.tracing != nil {
		c.tracing = b.tracing
	} else if err := c.initTracing(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if b.metrics != nil {
		c.metrics = b.metrics
	} else {
		c.metrics = middleware.NewMetrics(MetricsNamespace)
	}

	c.initHTTPServer()

	return c, nil
}
