// Package http - HTTP Server configuration and lifecycle management.
//
// Server управляет жизненным циклом HTTP сервера:
// - Синхронный bind (ошибки порта видны сразу)
// - Graceful shutdown по сигналу или отмене контекста
// - Timeout configuration
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Haleralex/corsserve/internal/config"
)

// ============================================
// Server Configuration
// ============================================

// ServerConfig - конфигурация HTTP сервера.
type ServerConfig struct {
	// Host для прослушивания (только loopback)
	Host string
	// Port для прослушивания, 0 - любой свободный
	Port int
	// ReadTimeout - максимальное время чтения запроса
	ReadTimeout time.Duration
	// WriteTimeout - максимальное время записи ответа, 0 - без ограничения
	WriteTimeout time.Duration
	// IdleTimeout - максимальное время ожидания следующего запроса
	IdleTimeout time.Duration
	// ShutdownTimeout - время на graceful shutdown
	ShutdownTimeout time.Duration
	// Logger для логирования
	Logger *slog.Logger
}

// DefaultServerConfig - конфигурация по умолчанию.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "localhost",
		Port:            config.DefaultPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Logger:          slog.Default(),
	}
}

// NewServerConfig собирает ServerConfig из конфигурации приложения.
func NewServerConfig(cfg *config.ServerConfig, logger *slog.Logger) *ServerConfig {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	}
}

// Address возвращает адрес для прослушивания.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ============================================
// Server
// ============================================

// Server - HTTP сервер с graceful shutdown.
type Server struct {
	config     *ServerConfig
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer создаёт новый HTTP сервер.
func NewServer(cfg *ServerConfig, handler http.Handler) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelDebug),
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
	}
}

// Listen открывает сокет на Address.
//
// Ошибка bind (порт занят, нет прав) возвращается сразу,
// до запуска цикла обработки.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return ln, nil
}

// Addr возвращает фактический адрес сокета или nil до Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL возвращает адрес сервера в виде http://host:port/.
func (s *Server) URL() string {
	addr := s.config.Address()
	if a := s.Addr(); a != nil {
		if tcp, ok := a.(*net.TCPAddr); ok {
			addr = net.JoinHostPort(s.config.Host, strconv.Itoa(tcp.Port))
		}
	}
	return "http://" + addr + "/"
}

// Serve обрабатывает соединения на ln до Shutdown.
//
// Ошибки отдельных запросов (клиент оборвал соединение) цикл не прерывают.
func (s *Server) Serve(ln net.Listener) error {
	s.config.Logger.Info("Serving HTTP",
		slog.String("address", ln.Addr().String()),
		slog.String("url", s.URL()),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start открывает сокет и обрабатывает соединения до Shutdown.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown выполняет graceful shutdown сервера.
//
// Если активные запросы не завершились за ShutdownTimeout,
// оставшиеся соединения закрываются принудительно.
func (s *Server) Shutdown(ctx context.Context) error {
	s.config.Logger.Info("Shutting down HTTP server...")

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.config.Logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		_ = s.httpServer.Close()
		return err
	}

	s.config.Logger.Info("HTTP server stopped gracefully")
	return nil
}

// ============================================
// Run with Graceful Shutdown
// ============================================

// Run запускает сервер с обработкой сигналов для graceful shutdown.
//
// Сигналы для остановки:
// - SIGINT (Ctrl+C)
// - SIGTERM (kill)
//
// При получении сигнала:
// 1. Прекращает приём новых соединений
// 2. Дожидается завершения активных запросов
// 3. Завершает работу
func (s *Server) Run() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}

	errChan := s.serveAsync(ln)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		s.config.Logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	}

	return s.Shutdown(context.Background())
}

// RunWithContext запускает сервер с возможностью отмены через контекст.
//
// Удобно для тестирования и программного управления.
func (s *Server) RunWithContext(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}

	errChan := s.serveAsync(ln)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.config.Logger.Info("Context cancelled, initiating shutdown")
	}

	// ctx уже отменён - shutdown получает свой
	return s.Shutdown(context.WithoutCancel(ctx))
}

func (s *Server) serveAsync(ln net.Listener) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Serve(ln); err != nil {
			errChan <- err
		}
	}()
	return errChan
}
