package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// FetchOptions bounds a live retrieval. Zero limits read whole tables.
type FetchOptions struct {
	MaxCIs                int
	MaxAudit              int
	MaxUserAudit          int
	MaxUsers              int
	UserAuditLookbackDays int
}

// FetchOptionsFromConfig maps configured record caps onto FetchOptions.
func FetchOptionsFromConfig(cfg *config.Config) FetchOptions {
	return FetchOptions{
		MaxCIs:                cfg.ServiceNow.MaxRecords.CIs,
		MaxAudit:              cfg.ServiceNow.MaxRecords.Audit,
		MaxUserAudit:          cfg.ServiceNow.MaxRecords.UserAudit,
		MaxUsers:              cfg.ServiceNow.MaxRecords.Users,
		UserAuditLookbackDays: cfg.Scan.UserAuditLookbackDays,
	}
}

// Fetch retrieves CIs, CI audit, user-profile audit, and users concurrently.
// The two audit sets are merged into RawSnapshot.Audit with CI rows first.
// Any failure cancels the remaining reads.
func Fetch(ctx context.Context, c servicenow.Client, opts FetchOptions) (*RawSnapshot, error) {
	start := time.Now()
	var cis, ciAudit, userAudit, users []Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cis, err = c.FetchCIs(gctx, opts.MaxCIs)
		return err
	})
	g.Go(func() error {
		var err error
		ciAudit, err = c.FetchCIAudit(gctx, opts.MaxAudit)
		return err
	})
	g.Go(func() error {
		var err error
		userAudit, err = c.FetchUserAudit(gctx, opts.UserAuditLookbackDays, opts.MaxUserAudit)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = c.FetchUsers(gctx, opts.MaxUsers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: fetch snapshot")
	}

	audit := make([]Record, 0, len(ciAudit)+len(userAudit))
	audit = append(audit, ciAudit...)
	audit = append(audit, userAudit...)

	zap.L().Info("ingest: fetched snapshot",
		zap.String("instance", c.InstanceURL()),
		zap.Int("cis", len(cis)),
		zap.Int("ci_audit", len(ciAudit)),
		zap.Int("user_audit", len(userAudit)),
		zap.Int("users", len(users)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &RawSnapshot{CIs: cis, Audit: audit, Users: users}, nil
}
