// Package server exposes the synthesizer over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/qpstream/internal/log"
	"github.com/chrissnell/qpstream/internal/metrics"
	"github.com/chrissnell/qpstream/internal/storage"
	"github.com/chrissnell/qpstream/pkg/config"
	"github.com/chrissnell/qpstream/pkg/responseformat"
)

// Controller represents the HTTP server controller
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       *config.ConfigData
	Server    http.Server
	store     storage.RunStore
	health    *storage.HealthManager
	formatter *responseformat.Formatter
	cache     *resultCache
	logger    *zap.SugaredLogger
}

// NewController creates a new HTTP server controller. store and health may
// be nil, in which case the /api/v1/runs endpoints answer 503.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, store storage.RunStore, health *storage.HealthManager, logger *zap.SugaredLogger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation defaults: %w", err)
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}
	if health == nil {
		health = storage.NewHealthManager()
	}

	cache, err := newResultCache(cfg.Server.CacheMB)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		store:     store,
		health:    health,
		formatter: responseformat.NewFormatter(),
		cache:     cache,
		logger:    logger,
	}

	sc := cfg.Server
	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}
	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Router()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the HTTP server and shuts it down when the
// controller context is cancelled.
func (c *Controller) StartController() error {
	c.logger.Infow("starting HTTP server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
		c.cache.close()
	}()

	return nil
}

const apiPrefix = "/api/v1"

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(metrics.Middleware)
	router.Use(loggingMiddleware)

	// Routes live on the root router so a method mismatch answers 405.
	router.HandleFunc(apiPrefix+"/timestream", c.GetTimestream).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/pulse", c.GetPulse).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/psd", c.GetPSD).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/runs", c.CreateRun).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/runs", c.ListRuns).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/runs/{id}", c.GetRun).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/runs/{id}", c.DeleteRun).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", c.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return router
}

// statusWriter captures the status code and body size for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		log.LogHTTPRequest(log.HTTPLogEntry{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     sw.status,
			Duration:   time.Since(start),
			Size:       sw.size,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}
