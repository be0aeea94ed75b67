package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler serves the Prometheus exposition of the configured
// gatherer.
func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{s},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promErrorLogger adapts the service logger to promhttp.Logger.
type promErrorLogger struct {
	s *Server
}

func (l promErrorLogger) Println(v ...any) {
	l.s.logger.Error("metrics exposition error", "detail", v)
}
