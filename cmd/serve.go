package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/api"
	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/monitoring"
	"github.com/sells-group/ownership-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ownership API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background jobs need configured credentials; the API itself accepts
		// credentials per request.
		if c, err := newClient(); err == nil {
			go monitoring.NewChecker(c, env.Metrics, 5*time.Minute).Run(ctx)

			sched, err := newScheduler(cfg.Scan.Schedule, func() { scheduledScan(ctx, env) })
			if err != nil {
				return err
			}
			if sched != nil {
				sched.Start()
				defer sched.Stop()
				zap.L().Info("scheduled scans enabled", zap.String("schedule", cfg.Scan.Schedule))
			}
		} else {
			zap.L().Info("servicenow not configured; scheduled scans and health checks disabled")
		}

		server := api.NewServer(cfg, env.Pipeline, env.Store, api.WithMetrics(env.Metrics))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newScheduler parses a five-field cron spec and registers job. An empty spec
// returns a nil scheduler. Overlapping runs are skipped.
func newScheduler(spec string, job func()) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, eris.Wrapf(err, "parse scan schedule %q", spec)
	}
	return c, nil
}

func scheduledScan(ctx context.Context, env *appEnv) {
	c, err := newClient()
	if err != nil {
		zap.L().Error("scheduled scan skipped", zap.Error(err))
		return
	}
	out, err := env.Pipeline.Run(ctx, pipeline.Request{
		Source: pipeline.SourceScheduled,
		Client: c,
		Save:   true,
	})
	if err != nil {
		zap.L().Error("scheduled scan failed", zap.Error(err))
		return
	}
	zap.L().Info("scheduled scan complete",
		zap.String("run_id", out.RunID),
		zap.Int("stale", out.Result.Summary.StaleCIsFound),
	)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
