// Package api wires the plugin directory's HTTP surface: upload intake,
// directory listings, blob serving, console key management, and the
// operational endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flashlightplugins/registry/pkg/appcast"
	"github.com/flashlightplugins/registry/pkg/consolekey"
	"github.com/flashlightplugins/registry/pkg/directory"
	"github.com/flashlightplugins/registry/pkg/httputil"
	"github.com/flashlightplugins/registry/pkg/middleware"
	"github.com/flashlightplugins/registry/pkg/observability"
	"github.com/flashlightplugins/registry/pkg/registry"
)

// Options carries the services and settings the server composes.
type Options struct {
	Uploads     *registry.Uploader
	Store       registry.PluginStore
	Directory   *directory.Service
	Blobs       registry.BlobStore
	ConsoleKeys *consolekey.Issuer
	Appcast     *appcast.Resolver
	AdminAuth   *middleware.AdminAuth
	Health      *observability.HealthChecker
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	Log         *logrus.Logger

	// PublicBaseURL is the origin under which /serve URLs are built.
	PublicBaseURL string
	// UploadMaxBytes caps the upload request body.
	UploadMaxBytes int64
}

// Server represents the API server
type Server struct {
	router *mux.Router
	opts   Options
	log    *logrus.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 32 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		log:    opts.Log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Upload routes
	uploadChain := httputil.Chain(
		s.opts.AdminAuth.Detect,
		httputil.MaxBytesMiddleware(s.opts.UploadMaxBytes),
	)
	s.router.Handle("/post_upload", uploadChain(http.HandlerFunc(s.postUpload))).Methods("POST")
	s.router.Handle("/generate_console_key", s.opts.AdminAuth.Require(http.HandlerFunc(s.generateConsoleKey))).Methods("POST")
	s.router.Handle("/console_upload/{name}", http.HandlerFunc(s.consoleUpload)).Methods("GET")

	// Directory routes
	s.router.HandleFunc("/directory", s.directory).Methods("GET")
	s.router.HandleFunc("/categories", s.categories).Methods("GET")
	s.router.HandleFunc("/browse", s.browse).Methods("GET")
	s.router.HandleFunc("/plugin/{name}", s.pluginPage).Methods("GET")
	s.router.HandleFunc("/log_install", s.logInstall).Methods("GET")

	// Blob serving and app download
	s.router.HandleFunc("/serve/{resource:.*}", s.serve).Methods("GET")
	s.router.HandleFunc("/latest_download", s.latestDownload).Methods("GET")

	// Operational endpoints
	if s.opts.Health != nil {
		s.router.HandleFunc("/healthz", s.opts.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.opts.Health.Readiness).Methods("GET")
	}
	if s.opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods("GET")
	}
}

// Handler returns the fully wrapped HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.log),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.log),
	}
	if s.opts.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}

	var handler http.Handler = s.router
	handler = httputil.Chain(chain...)(handler)
	return otelhttp.NewHandler(handler, "registry.http")
}

// Router exposes the underlying mux for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}
