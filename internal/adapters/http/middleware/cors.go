// Package middleware - CORS и cache-busting заголовки.
//
// Cross-Origin Resource Sharing (CORS) позволяет браузерам
// загружать ресурсы dev-сервера со страниц других origins.
package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderCacheControl = "Cache-Control"
)

// CORSConfig - заголовки, добавляемые к каждому ответу.
type CORSConfig struct {
	// AllowOrigin - значение Access-Control-Allow-Origin
	AllowOrigin string
	// AllowMethods - значение Access-Control-Allow-Methods
	AllowMethods string
	// AllowHeaders - значение Access-Control-Allow-Headers
	AllowHeaders string
	// CacheControl - значение Cache-Control
	CacheControl string
}

// DefaultCORSConfig - разрешить всё, ничего не кешировать.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: "*",
		AllowHeaders: "*",
		CacheControl: "no-store, no-cache, must-revalidate",
	}
}

// headers возвращает пары заголовок/значение. Пустые значения пропускаются.
func (c *CORSConfig) headers() [][2]string {
	all := [][2]string{
		{HeaderAllowOrigin, c.AllowOrigin},
		{HeaderAllowMethods, c.AllowMethods},
		{HeaderAllowHeaders, c.AllowHeaders},
		{HeaderCacheControl, c.CacheControl},
	}

	out := all[:0]
	for _, h := range all {
		if h[1] != "" {
			out = append(out, h)
		}
	}
	return out
}

// CORS middleware добавляет заголовки к каждому ответу.
//
// Заголовки выставляются непосредственно перед отправкой status line:
// handler к этому моменту уже определил статус и тело, а значит не может
// перезаписать или удалить их (http.FileServer удаляет Cache-Control
// у ответов с ошибкой). Preflight (OPTIONS) отдельно не обрабатывается.
func CORS(config *CORSConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultCORSConfig()
	}

	headers := config.headers()

	return func(c *gin.Context) {
		w := &headerWriter{ResponseWriter: c.Writer, headers: headers}
		c.Writer = w

		c.Next()

		// Ничего не записано (например, c.Status без тела) - gin отправит
		// заголовки сам после возврата из цепочки.
		w.inject()
		c.Writer = w.ResponseWriter
	}
}

// headerWriter - ResponseWriter, дописывающий заголовки перед их отправкой.
type headerWriter struct {
	gin.ResponseWriter
	headers [][2]string
}

// inject выставляет заголовки заново при каждом вызове: handler мог
// удалить их после предыдущего WriteHeader (статус ещё не отправлен).
func (w *headerWriter) inject() {
	if w.ResponseWriter.Written() {
		return
	}

	h := w.ResponseWriter.Header()
	for _, kv := range w.headers {
		h.Set(kv[0], kv[1])
	}
}

// WriteHeader дописывает заголовки и передаёт статус дальше.
func (w *headerWriter) WriteHeader(code int) {
	w.inject()
	w.ResponseWriter.WriteHeader(code)
}

// WriteHeaderNow дописывает заголовки и отправляет их.
func (w *headerWriter) WriteHeaderNow() {
	w.inject()
	w.ResponseWriter.WriteHeaderNow()
}

// Write дописывает заголовки, если handler не вызвал WriteHeader.
func (w *headerWriter) Write(b []byte) (int, error) {
	w.inject()
	return w.ResponseWriter.Write(b)
}

// WriteString - то же, что Write.
func (w *headerWriter) WriteString(s string) (int, error) {
	w.inject()
	return w.ResponseWriter.WriteString(s)
}

// Flush отправляет заголовки вместе с буферизованными данными.
func (w *headerWriter) Flush() {
	w.inject()
	w.ResponseWriter.Flush()
}
