// Package pipeline runs a staleness scan end to end: retrieve or load the raw
// snapshot, canonicalize it, evaluate every CI, then record metrics, persist
// the run, and send alerts.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/monitoring"
	"github.com/sells-group/ownership-cli/internal/resilience"
	"github.com/sells-group/ownership-cli/internal/staleness"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// Scan sources recorded on saved runs and metrics.
const (
	SourceCLI       = "cli"
	SourceAPI       = "api"
	SourceScheduled = "scheduled"
	SourceSnapshot  = "snapshot"
)

var (
	// ErrNoSource is returned when a request has neither a client nor a raw
	// snapshot.
	ErrNoSource = eris.New("pipeline: no client or snapshot to scan")
	// ErrNoCIs is returned when a live fetch returns no configuration items.
	ErrNoCIs = eris.New("pipeline: no CI records fetched")
)

// Pipeline wires the scanner to its optional side effects. A nil store,
// metrics, or alerter skips that step.
type Pipeline struct {
	scanner   *staleness.Scanner
	runs      store.ScanRunStore
	metrics   *monitoring.Metrics
	alerter   *monitoring.Alerter
	fetchOpts ingest.FetchOptions
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists runs that request it.
func WithStore(runs store.ScanRunStore) Option {
	return func(p *Pipeline) { p.runs = runs }
}

// WithMetrics records scan metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithAlerter sends alerts after each scan.
func WithAlerter(a *monitoring.Alerter) Option {
	return func(p *Pipeline) { p.alerter = a }
}

// WithFetchOptions bounds live retrieval.
func WithFetchOptions(opts ingest.FetchOptions) Option {
	return func(p *Pipeline) { p.fetchOpts = opts }
}

// New creates a Pipeline around scanner.
func New(scanner *staleness.Scanner, opts ...Option) *Pipeline {
	p := &Pipeline{scanner: scanner}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request describes one scan. Raw takes precedence over Client.
type Request struct {
	Source string
	Client servicenow.Client
	Raw    *ingest.RawSnapshot
	Save   bool
}

// Outcome is the product of a scan.
type Outcome struct {
	RunID  string              `json:"run_id,omitempty"`
	Raw    *ingest.RawSnapshot `json:"-"`
	Result *model.ScanResult   `json:"result"`
}

// Run executes the scan described by req.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	source := req.Source
	if source == "" {
		source = SourceCLI
	}
	log := zap.L().With(zap.String("source", source))

	raw := req.Raw
	if raw == nil {
		if req.Client == nil {
			return nil, ErrNoSource
		}
		fetched, err := ingest.Fetch(ctx, req.Client, p.fetchOpts)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: fetch")
		}
		if len(fetched.CIs) == 0 {
			return nil, ErrNoCIs
		}
		raw = fetched
	}

	res, err := p.scanner.Scan(ctx, ingest.Canonicalize(*raw))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: scan")
	}
	out := &Outcome{Raw: raw, Result: res}

	if p.metrics != nil {
		p.metrics.ObserveScan(source, res, time.Since(start))
	}

	if req.Save && p.runs != nil {
		run := &model.ScanRun{Source: source, Result: res, CreatedAt: res.ScannedAt}
		if err := p.runs.SaveScanRun(ctx, run); err != nil {
			return out, eris.Wrap(err, "pipeline: save scan run")
		}
		out.RunID = run.ID
		log.Info("pipeline: scan run saved", zap.String("run_id", run.ID))
	}

	if p.alerter != nil {
		if sent := p.alerter.Notify(ctx, res); sent > 0 {
			log.Info("pipeline: alerts sent", zap.Int("count", sent))
		}
	}

	return out, nil
}

// NewServiceNowClient builds a Table API client from configuration.
func NewServiceNowClient(cfg config.ServiceNowConfig) servicenow.Client {
	return servicenow.NewClient(cfg.InstanceURL, cfg.Username, cfg.Password,
		servicenow.WithPageSize(cfg.PageSize),
		servicenow.WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
		servicenow.WithRateLimit(cfg.RatePerSec),
		servicenow.WithRetryPolicy(resilience.WithRetries(cfg.MaxRetries)),
	)
}
