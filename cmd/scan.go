package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/export"
	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/pipeline"
)

type scanOptions struct {
	input  string
	dump   string
	save   bool
	format string
	output string
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Analyze CMDB ownership for stale CIs",
	Long:  "Fetches CIs, audit history, and users from ServiceNow (or loads a saved snapshot with --input), evaluates every CI, and prints stale CIs grouped by recommended owner.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context(), scanOpts, cmd.OutOrStdout())
	},
}

func runScan(ctx context.Context, opts scanOptions, stdout io.Writer) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && opts.output == "" {
		return eris.New("xlsx output requires --output")
	}
	mode := config.ModeFetch
	if opts.input != "" {
		mode = config.ModeScan
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	req := pipeline.Request{Source: pipeline.SourceCLI, Save: opts.save}
	if opts.input != "" {
		raw, err := ingest.LoadSnapshot(opts.input)
		if err != nil {
			return err
		}
		req.Source = pipeline.SourceSnapshot
		req.Raw = raw
	} else {
		c, err := newClient()
		if err != nil {
			return err
		}
		req.Client = c
	}

	out, err := env.Pipeline.Run(ctx, req)
	if err != nil {
		return eris.Wrap(err, "scan")
	}

	if opts.dump != "" && opts.input == "" {
		if err := ingest.WriteSnapshot(opts.dump, out.Raw); err != nil {
			return err
		}
		zap.L().Info("raw snapshot written", zap.String("path", opts.dump))
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	if err := export.WriteScan(w, out.Result, format); err != nil {
		return err
	}

	zap.L().Info("scan complete",
		zap.String("run_id", out.RunID),
		zap.Int("analyzed", out.Result.Summary.TotalCIsAnalyzed),
		zap.Int("stale", out.Result.Summary.StaleCIsFound),
		zap.Int("critical", out.Result.Summary.CriticalRisk),
	)
	return nil
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanOpts.input, "input", "", "scan a saved raw snapshot (.json or .yaml) instead of fetching")
	f.StringVar(&scanOpts.dump, "dump", "", "write the fetched raw snapshot to this path")
	f.BoolVar(&scanOpts.save, "save", true, "persist the scan run to the store")
	f.StringVar(&scanOpts.format, "format", "table", "output format: table, json, csv, or xlsx")
	f.StringVarP(&scanOpts.output, "output", "o", "", "write output to a file instead of stdout")
	rootCmd.AddCommand(scanCmd)
}
