// Package http - Router configuration for the development file server.
//
// Router собирает middleware и handlers в единую точку входа.
//
// Pattern: Composition Root
// - Все зависимости собираются здесь
// - Любой путь без маршрута отдаётся файловым handler
// - Служебные endpoints живут под отдельным префиксом и выключены по умолчанию
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/corsserve/internal/adapters/http/handlers"
	"github.com/Haleralex/corsserve/internal/adapters/http/middleware"
	"github.com/Haleralex/corsserve/internal/config"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig - конфигурация роутера.
type RouterConfig struct {
	// Logger для middleware
	Logger *slog.Logger
	// Config - загруженная конфигурация приложения
	Config *config.Config
	// Metrics - коллекторы Prometheus (nil - создаются автоматически)
	Metrics *middleware.Metrics
	// TracerProvider - nil отключает трассировку запросов
	TracerProvider trace.TracerProvider
}

// DefaultRouterConfig - конфигурация по умолчанию для development.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger: slog.Default(),
		Config: config.Development(),
	}
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder - builder для создания роутера.
type RouterBuilder struct {
	config  *RouterConfig
	static  *handlers.StaticHandler
	metrics *middleware.Metrics
}

// NewRouterBuilder создаёт новый builder.
func NewRouterBuilder(cfg *RouterConfig) *RouterBuilder {
	if cfg == nil {
		cfg = DefaultRouterConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Config == nil {
		cfg.Config = config.Development()
	}
	return &RouterBuilder{config: cfg}
}

// WithStaticHandler подменяет файловый handler (по умолчанию - Static.Root).
func (b *RouterBuilder) WithStaticHandler(h *handlers.StaticHandler) *RouterBuilder {
	b.static = h
	return b
}

// Metrics возвращает коллекторы, используемые роутером.
// Доступно после Build.
func (b *RouterBuilder) Metrics() *middleware.Metrics {
	return b.metrics
}

// Build создаёт сконфигурированный Gin Engine.
func (b *RouterBuilder) Build() *gin.Engine {
	cfg := b.config.Config

	// Debug-режим Gin печатает маршруты в stdout
	if cfg.App.Environment != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Редиректы директорий делает http.FileServer
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	b.metrics = b.config.Metrics
	if b.metrics == nil {
		b.metrics = middleware.NewMetrics("corsserve")
	}

	// Служебные запросы не попадают в логи и метрики
	var skipPrefixes []string
	adminPrefix := ""
	if cfg.Admin.Enabled {
		adminPrefix = cfg.Admin.Prefix + "/"
		skipPrefixes = append(skipPrefixes, adminPrefix)
	}

	// ============================================
	// Global Middleware
	// ============================================

	// 1. Recovery - должен быть первым
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: !cfg.App.IsProduction(),
	}))

	// 2. Request ID
	router.Use(middleware.RequestID())

	// 3. CORS и Cache-Control - на каждый ответ, включая ошибки
	router.Use(middleware.CORS(&middleware.CORSConfig{
		AllowOrigin:  cfg.Headers.AllowOrigin,
		AllowMethods: cfg.Headers.AllowMethods,
		AllowHeaders: cfg.Headers.AllowHeaders,
		CacheControl: cfg.Headers.CacheControl,
	}))

	// 4. Tracing
	if b.config.TracerProvider != nil {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName,
			otelgin.WithTracerProvider(b.config.TracerProvider),
			otelgin.WithPropagators(otel.GetTextMapPropagator()),
		))
	}

	// 5. Logging
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:       b.config.Logger,
		SkipPrefixes: skipPrefixes,
	}))

	// 6. Metrics (Prometheus)
	router.Use(b.metrics.Middleware(adminPrefix))

	// ============================================
	// Admin Routes
	// ============================================

	if cfg.Admin.Enabled {
		admin := router.Group(cfg.Admin.Prefix)

		handlers.NewHealthHandler(cfg.Static.Root, cfg.App.Version).RegisterRoutes(admin)
		admin.GET("/metrics", gin.WrapH(b.metrics.Handler()))
	}

	// ============================================
	// Static Files
	// ============================================

	static := b.static
	if static == nil {
		static = handlers.NewStaticHandler(cfg.Static.Root)
	}
	static.RegisterRoutes(router)

	return router
}

// ============================================
// Quick Setup Functions
// ============================================

// NewRouter создаёт роутер с базовой конфигурацией.
func NewRouter(cfg *RouterConfig) *gin.Engine {
	return NewRouterBuilder(cfg).Build()
}
