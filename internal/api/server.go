// Package api serves the ownership analyzer over HTTP: connection tests,
// scans, persisted results, the assignment workflow, and the rule catalog.
package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/monitoring"
	"github.com/sells-group/ownership-cli/internal/pipeline"
	"github.com/sells-group/ownership-cli/internal/rules"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// Credentials identify a ServiceNow instance. Empty fields fall back to the
// server configuration.
type Credentials struct {
	InstanceURL string `json:"instance_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

func (c Credentials) withDefaults(cfg config.ServiceNowConfig) Credentials {
	if c.InstanceURL == "" {
		c.InstanceURL = cfg.InstanceURL
	}
	if c.Username == "" {
		c.Username = cfg.Username
	}
	if c.Password == "" {
		c.Password = cfg.Password
	}
	c.InstanceURL = strings.TrimRight(strings.TrimSpace(c.InstanceURL), "/")
	return c
}

// missing returns the first required field that is empty.
func (c Credentials) missing() string {
	switch {
	case c.InstanceURL == "":
		return "instance_url"
	case c.Username == "":
		return "username"
	case c.Password == "":
		return "password"
	default:
		return ""
	}
}

// ClientFactory builds a ServiceNow client for resolved credentials.
type ClientFactory func(creds Credentials) servicenow.Client

// Server holds the handler dependencies.
type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	store     store.Store
	catalog   []rules.Rule
	metrics   *monitoring.Metrics
	collector *monitoring.Collector
	newClient ClientFactory
	now       func() time.Time

	// scanMu admits one API scan at a time.
	scanMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes /metrics and counts assignments.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClientFactory overrides how ServiceNow clients are built.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Server) { s.newClient = f }
}

// WithCatalog sets the rule catalog served by /rules.
func WithCatalog(catalog []rules.Rule) Option {
	return func(s *Server) { s.catalog = catalog }
}

// WithClock sets the time source used in responses.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		pipeline:  p,
		store:     st,
		catalog:   rules.DefaultCatalog(),
		collector: monitoring.NewCollector(st),
		now:       time.Now,
	}
	s.newClient = func(creds Credentials) servicenow.Client {
		sc := cfg.ServiceNow
		sc.InstanceURL, sc.Username, sc.Password = creds.InstanceURL, creds.Username, creds.Password
		return pipeline.NewServiceNowClient(sc)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	r.Get("/status", s.handleStatus)
	r.Get("/rules", s.handleRules)

	r.Post("/test-connection", s.handleTestConnection)
	r.Post("/scan", s.handleScan)
	r.Route("/scans/latest", func(r chi.Router) {
		r.Get("/", s.handleLatestScan)
		r.Get("/cis", s.handleLatestScanCIs)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Get("/", s.handleListAssignments)
		r.Post("/", s.handleAssign)
		r.Post("/{id}/undo", s.handleUndo)
	})

	// Paths used by the original web client.
	r.Post("/scan-stale-ownership", s.handleScan)
	r.Post("/assign-ci-owner", s.handleAssign)
	r.Get("/assignment-history", s.handleListAssignments)
	r.Post("/undo-assignment", s.handleUndo)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
