package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
)

// Validation modes.
const (
	ModeScan    = "scan"    // offline scan from a snapshot file
	ModeFetch   = "fetch"   // live scan against ServiceNow
	ModeServe   = "serve"   // HTTP API server
	ModeAssign  = "assign"  // assignment and undo
	ModeHistory = "history" // assignment log reads
)

// Validate checks that the settings a mode depends on are present and sane.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeScan, ModeHistory:
	case ModeFetch, ModeAssign:
		errs = append(errs, c.validateServiceNow()...)
	case ModeServe:
		// Requests carry their own credentials; only scheduled scans need
		// configured ones.
		if c.Scan.Schedule != "" || c.ServiceNow.InstanceURL != "" {
			errs = append(errs, c.validateServiceNow()...)
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Scan.Schedule != "" {
			if _, err := cron.ParseStandard(c.Scan.Schedule); err != nil {
				errs = append(errs, fmt.Sprintf("scan.schedule is invalid: %v", err))
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 64 {
		errs = append(errs, "scan.concurrency must be between 1 and 64")
	}
	if c.Scan.UserAuditLookbackDays < 1 {
		errs = append(errs, "scan.user_audit_lookback_days must be >= 1")
	}
	if c.Notify.CriticalThreshold < 0 {
		errs = append(errs, "notify.critical_threshold must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateServiceNow() []string {
	var errs []string
	sn := c.ServiceNow
	if sn.InstanceURL == "" {
		errs = append(errs, "servicenow.instance_url is required")
	} else if !strings.HasPrefix(sn.InstanceURL, "https://") && !strings.HasPrefix(sn.InstanceURL, "http://") {
		errs = append(errs, "servicenow.instance_url must start with http:// or https://")
	}
	if sn.Username == "" {
		errs = append(errs, "servicenow.username is required")
	}
	if sn.Password == "" {
		errs = append(errs, "servicenow.password is required")
	}
	if sn.PageSize < 1 || sn.PageSize > 10000 {
		errs = append(errs, "servicenow.page_size must be between 1 and 10000")
	}
	if sn.RatePerSec <= 0 {
		errs = append(errs, "servicenow.rate_per_sec must be > 0")
	}
	return errs
}
