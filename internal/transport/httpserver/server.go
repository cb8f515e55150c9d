package httpserver

import (
	"net/http"
	"time"

	"family-ledger-go/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	// Multipart creates carry attachments, so reads get more room than the
	// per-request handler timeout.
	readTimeout  = 60 * time.Second
	writeTimeout = 45 * time.Second
	idleTimeout  = 2 * time.Minute
)

func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
}
