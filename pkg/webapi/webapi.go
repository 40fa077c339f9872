// Package webapi serves the planner's metrics, health and latest plan over
// HTTP while it watches the inventory.
package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PlanSource hands out the most recent successful plan, or nil before the
// first one.
type PlanSource interface {
	LatestPlan() *clusterconfig.TopologyPlan
}

type WebServerOptions struct {
	Logger        *zap.Logger
	LogLevel      *zap.AtomicLevel
	ListenAddress string
	Plans         PlanSource
	// Gatherer defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
}

type WebServer struct {
	logger        *zap.Logger
	logLevel      *zap.AtomicLevel
	listenAddress string
	plans         PlanSource
	gatherer      prometheus.Gatherer
	httpServer    *http.Server
}

func newWebServer(opts WebServerOptions) *WebServer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	w := &WebServer{
		logger:        logger,
		logLevel:      opts.LogLevel,
		listenAddress: opts.ListenAddress,
		plans:         opts.Plans,
		gatherer:      gatherer,
	}
	w.httpServer = &http.Server{
		Handler:      w.router(),
		Addr:         w.listenAddress,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return w
}

func (w *WebServer) handleRoot(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(200)
	_, err := rw.Write([]byte("Welcome to the prepare-scale planner webapi"))
	if err != nil {
		w.logger.Debug("failed to write generic root response", zap.Error(err))
	}
}

func (w *WebServer) handleHealth(rw http.ResponseWriter, r *http.Request) {
	if w.plans == nil || w.plans.LatestPlan() == nil {
		http.Error(rw, "no plan produced yet", http.StatusServiceUnavailable)
		return
	}

	rw.WriteHeader(200)
	_, err := rw.Write([]byte("ok"))
	if err != nil {
		w.logger.Debug("failed to write health response", zap.Error(err))
	}
}

func (w *WebServer) handlePlan(rw http.ResponseWriter, r *http.Request) {
	var plan *clusterconfig.TopologyPlan
	if w.plans != nil {
		plan = w.plans.LatestPlan()
	}
	if plan == nil {
		http.Error(rw, "no plan produced yet", http.StatusNotFound)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(rw).Encode(plan)
	if err != nil {
		w.logger.Debug("failed to write plan response", zap.Error(err))
	}
}

func (w *WebServer) router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(w.gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", w.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/plan", w.handlePlan).Methods(http.MethodGet)
	if w.logLevel != nil {
		r.Handle("/loglevel", w.logLevel).Methods(http.MethodGet, http.MethodPut)
	}
	r.HandleFunc("/", w.handleRoot)

	return r
}

func (w *WebServer) ListenAndServe() error {
	return w.httpServer.ListenAndServe()
}

var globalWebLock sync.Mutex
var globalWebServer *WebServer = nil

func InitializeWebServer(opts WebServerOptions) {
	globalWebLock.Lock()
	if globalWebServer != nil {
		globalWebLock.Unlock()
		return
	}

	globalWebServer = newWebServer(opts)
	server := globalWebServer
	globalWebLock.Unlock()
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			server.logger.Error("Failed to listen and serve web server", zap.Error(err))
		}
	}()
}

// ShutdownWebServer stops the server started by InitializeWebServer, if any.
func ShutdownWebServer(ctx context.Context) error {
	globalWebLock.Lock()
	server := globalWebServer
	globalWebServer = nil
	globalWebLock.Unlock()

	if server == nil {
		return nil
	}
	return server.httpServer.Shutdown(ctx)
}
