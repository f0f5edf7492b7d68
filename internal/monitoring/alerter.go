package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCriticalStale    AlertType = "critical_stale_cis"
	AlertEvaluationErrors AlertType = "evaluation_errors"
)

// maxListedCIs caps how many CIs an alert message names.
const maxListedCIs = 10

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	CIs       []string       `json:"cis,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Poster is the subset of the Slack client the alerter uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Alerter evaluates a scan result against the configured threshold and posts
// alerts to Slack.
type Alerter struct {
	cfg    config.NotifyConfig
	poster Poster
}

// NewAlerter creates an Alerter. When Slack is not configured the returned
// Alerter evaluates but never sends.
func NewAlerter(cfg config.NotifyConfig) *Alerter {
	a := &Alerter{cfg: cfg}
	if cfg.Enabled() {
		opts := []slack.Option{}
		if cfg.SlackAPIURL != "" {
			opts = append(opts, slack.OptionAPIURL(cfg.SlackAPIURL))
		}
		a.poster = slack.New(cfg.SlackToken, opts...)
	}
	return a
}

// WithPoster replaces the Slack client.
func (a *Alerter) WithPoster(p Poster) *Alerter {
	a.poster = p
	return a
}

func (a *Alerter) threshold() int {
	if a.cfg.CriticalThreshold <= 0 {
		return 1
	}
	return a.cfg.CriticalThreshold
}

// Evaluate returns the alerts triggered by res.
func (a *Alerter) Evaluate(res *model.ScanResult) []Alert {
	if res == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()

	if res.Summary.CriticalRisk >= a.threshold() {
		var ids []string
		for _, ci := range res.StaleCIs {
			if ci.RiskLevel != model.RiskCritical {
				continue
			}
			ids = append(ids, fmt.Sprintf("%s (%s, %s)", ci.CIName, ci.CIID, ci.CurrentOwnerUsername))
			if len(ids) == maxListedCIs {
				break
			}
		}
		alerts = append(alerts, Alert{
			Type:     AlertCriticalStale,
			Severity: "critical",
			Message: fmt.Sprintf(
				"%d CI(s) have critically stale ownership (threshold %d, %d stale of %d analyzed)",
				res.Summary.CriticalRisk, a.threshold(), res.Summary.StaleCIsFound, res.Summary.TotalCIsAnalyzed,
			),
			CIs: ids,
			Details: map[string]any{
				"critical":  res.Summary.CriticalRisk,
				"high":      res.Summary.HighRisk,
				"medium":    res.Summary.MediumRisk,
				"threshold": a.threshold(),
			},
			Timestamp: now,
		})
	}

	if res.Summary.EvaluationErrors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertEvaluationErrors,
			Severity: "warning",
			Message:  fmt.Sprintf("%d CI(s) could not be evaluated", res.Summary.EvaluationErrors),
			Details: map[string]any{
				"evaluation_errors": res.Summary.EvaluationErrors,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts to the configured channel.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.poster == nil || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.post(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// Notify evaluates res and sends whatever it triggers.
func (a *Alerter) Notify(ctx context.Context, res *model.ScanResult) int {
	return a.SendAlerts(ctx, a.Evaluate(res))
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			fmt.Sprintf("CMDB ownership: %s", strings.ReplaceAll(string(alert.Type), "_", " ")), false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, alert.Message, false, false), nil, nil),
	}
	if len(alert.CIs) > 0 {
		list := "• " + strings.Join(alert.CIs, "\n• ")
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, list, false, false), nil, nil))
	}

	_, _, err := a.poster.PostMessageContext(ctx, a.cfg.SlackChannel,
		slack.MsgOptionText(alert.Message, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return eris.Wrap(err, "monitoring: post slack message")
	}
	return nil
}
