package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/monitoring"
	"github.com/sells-group/ownership-cli/internal/pipeline"
	"github.com/sells-group/ownership-cli/internal/staleness"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// appEnv holds the store, metrics, alerter, and pipeline shared by the scan,
// serve, and assignment commands.
type appEnv struct {
	Store    store.Store
	Metrics  *monitoring.Metrics
	Alerter  *monitoring.Alerter
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store and builds the pipeline. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	env := &appEnv{
		Store:   st,
		Metrics: monitoring.NewMetrics(),
		Alerter: monitoring.NewAlerter(cfg.Notify),
	}
	env.Pipeline = pipeline.New(newScanner(),
		pipeline.WithStore(st),
		pipeline.WithMetrics(env.Metrics),
		pipeline.WithAlerter(env.Alerter),
		pipeline.WithFetchOptions(ingest.FetchOptionsFromConfig(cfg)),
	)
	return env, nil
}

func newScanner() *staleness.Scanner {
	return staleness.NewScanner(nil, staleness.WithConcurrency(cfg.Scan.Concurrency))
}

// newClient builds a ServiceNow client from the configured credentials.
func newClient() (servicenow.Client, error) {
	if err := requireCredentials(cfg.ServiceNow); err != nil {
		return nil, err
	}
	return pipeline.NewServiceNowClient(cfg.ServiceNow), nil
}

func requireCredentials(sn config.ServiceNowConfig) error {
	switch {
	case sn.InstanceURL == "":
		return eris.New("servicenow instance URL is required (OWNERSHIP_SERVICENOW_INSTANCE_URL)")
	case sn.Username == "":
		return eris.New("servicenow username is required (OWNERSHIP_SERVICENOW_USERNAME)")
	case sn.Password == "":
		return eris.New("servicenow password is required (OWNERSHIP_SERVICENOW_PASSWORD)")
	}
	return nil
}
