// Package handlers содержит HTTP handlers dev-сервера.
//
// Сама раздача файлов делегирована http.FileServer: разрешение путей,
// Content-Type, index.html, листинг директорий, 404, Range и
// If-Modified-Since. Handler только ограничивает набор методов.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StaticHandler раздаёт файлы из корневой директории.
type StaticHandler struct {
	root  string
	files http.Handler
}

// NewStaticHandler создаёт handler для директории root.
// root читается на каждый запрос, содержимое не кешируется.
func NewStaticHandler(root string) *StaticHandler {
	return &StaticHandler{
		root:  root,
		files: http.FileServer(http.Dir(root)),
	}
}

// Root возвращает раздаваемую директорию.
func (h *StaticHandler) Root() string {
	return h.root
}

// Serve обрабатывает запрос к файлу.
//
// GET и HEAD отдаются файловым сервером, остальные методы (включая
// preflight OPTIONS) получают 501 Not Implemented.
func (h *StaticHandler) Serve(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
		// NoRoute заранее выставляет 404, а листинг директории
		// пишет тело без WriteHeader
		c.Status(http.StatusOK)
		h.files.ServeHTTP(c.Writer, c.Request)
	default:
		http.Error(c.Writer, fmt.Sprintf("Unsupported method ('%s')", c.Request.Method), http.StatusNotImplemented)
	}
}

// RegisterRoutes делает handler обработчиком всех путей без маршрута.
func (h *StaticHandler) RegisterRoutes(router *gin.Engine) {
	router.NoRoute(h.Serve)
}
