// Package middleware - Recovery middleware для обработки паник.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// RecoveryConfig - конфигурация для recovery middleware.
type RecoveryConfig struct {
	Logger           *slog.Logger
	EnableStackTrace bool // Включать stack trace в логи
}

// DefaultRecoveryConfig - конфигурация по умолчанию.
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		Logger:           slog.Default(),
		EnableStackTrace: true,
	}
}

// Recovery middleware перехватывает панику и возвращает 500.
//
// Сервер продолжает обслуживать следующие запросы. Если ответ уже
// начал отправляться, соединение просто завершается.
func Recovery(config *RecoveryConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultRecoveryConfig()
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			// http.ErrAbortHandler - штатный обрыв соединения, его обрабатывает net/http
			if err == http.ErrAbortHandler {
				panic(err)
			}

			attrs := []slog.Attr{
				slog.String("error", fmt.Sprintf("%v", err)),
				slog.String("path", c.Request.URL.Path),
				slog.String("method", c.Request.Method),
				slog.String("client_ip", c.ClientIP()),
			}
			if config.EnableStackTrace {
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
			}

			log.LogAttrs(c.Request.Context(), slog.LevelError, "Panic recovered", attrs...)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("X-Content-Type-Options", "nosniff")
			c.AbortWithStatus(http.StatusInternalServerError)
			_, _ = c.Writer.WriteString("500 Internal Server Error\n")
		}()

		c.Next()
	}
}
