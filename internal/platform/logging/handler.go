package logging

import (
	"net"
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// Handler adds structured access logging to each request going through a wrapped handler.
type Handler struct {
	h      http.Handler
	logger *zap.Logger
	fields []zap.Field
}

// NewHandler creates a new logging Handler wrapping h.
func NewHandler(h http.Handler, logger *zap.Logger, fields ...zap.Field) *Handler {
	return &Handler{h: h, logger: logger, fields: fields}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		remoteAddr = realIP
	}

	metrics := httpsnoop.CaptureMetrics(h.h, w, r)

	h.logger.Info("http request done",
		append([]zap.Field{
			zap.String("request_url", r.RequestURI),
			zap.String("method", r.Method),
			zap.String("remote_addr", remoteAddr),
			zap.Duration("duration", metrics.Duration),
			zap.Int("status", metrics.Code),
			zap.Int64("response_length", metrics.Written),
		}, h.fields...)...,
	)
}
