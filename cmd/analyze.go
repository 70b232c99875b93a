package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/pressure-cli/internal/analytics"
	"github.com/sells-group/pressure-cli/internal/config"
	"github.com/sells-group/pressure-cli/internal/export"
	"github.com/sells-group/pressure-cli/internal/facts"
	"github.com/sells-group/pressure-cli/internal/fetcher"
	"github.com/sells-group/pressure-cli/internal/metrics"
	"github.com/sells-group/pressure-cli/internal/model"
	"github.com/sells-group/pressure-cli/internal/pipeline"
	"github.com/sells-group/pressure-cli/internal/report"
	"github.com/sells-group/pressure-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score districts from the three fact tables",
	Long:  "Loads the enrollment, biometric and demographic fact tables, runs every analytics stage and writes the derived tables to the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyAnalyzeFlags(cmd, cfg)
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		noStore, _ := cmd.Flags().GetBool("no-store")
		strict, _ := cmd.Flags().GetBool("strict")

		var st store.Store
		if !noStore {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		tempDir, err := os.MkdirTemp("", "pressure-inputs-*")
		if err != nil {
			return eris.Wrap(err, "analyze: create temp dir")
		}
		defer os.RemoveAll(tempDir) //nolint:errcheck

		p, err := buildPipeline(cfg, st, nil, tempDir)
		if err != nil {
			return err
		}

		out, err := p.Run(ctx, inputLocations(cfg.Input))
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if err := report.Build(out.RunID, &out.Result).Write(os.Stderr); err != nil {
			return eris.Wrap(err, "analyze: write summary")
		}
		for _, f := range out.Files {
			fmt.Fprintln(os.Stdout, filepath.Join(cfg.Output.Dir, f))
		}

		return analyzeExit(out, strict)
	},
}

func init() {
	addAnalyzeFlags(analyzeCmd.Flags())
	rootCmd.AddCommand(analyzeCmd)
}

func addAnalyzeFlags(f *pflag.FlagSet) {
	f.String("enrollment", "", "enrollment fact table location (default from config)")
	f.String("biometric", "", "biometric fact table location (default from config)")
	f.String("demographic", "", "demographic fact table location (default from config)")
	f.String("out", "", "output directory (default from config)")
	f.String("format", "", "output format: csv, xlsx or both (default from config)")
	f.Int("workers", 0, "concurrent district workers per stage (default from config)")
	f.Bool("no-store", false, "skip recording the run in the store")
	f.Bool("strict", false, "exit non-zero unless every stage completes")
}

// applyAnalyzeFlags overrides config values with explicitly set flags.
func applyAnalyzeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("enrollment", &c.Input.Enrollment)
	str("biometric", &c.Input.Biometric)
	str("demographic", &c.Input.Demographic)
	str("out", &c.Output.Dir)
	str("format", &c.Output.Format)
	if flags.Changed("workers") {
		c.Analysis.Workers, _ = flags.GetInt("workers")
	}
}

// inputLocations maps the configured inputs to their categories.
func inputLocations(in config.InputConfig) map[model.Category]string {
	return map[model.Category]string{
		model.CategoryEnrollment:  in.Enrollment,
		model.CategoryBiometric:   in.Biometric,
		model.CategoryDemographic: in.Demographic,
	}
}

// buildPipeline assembles the fetch, load, analyze and export chain.
// Remote inputs are downloaded into tempDir.
func buildPipeline(c *config.Config, st store.Store, m *metrics.Metrics, tempDir string) (*pipeline.Pipeline, error) {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	resolver := fetcher.NewResolver(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Fetch.MaxRetries,
			RatePerSec: c.Fetch.RatePerSec,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		tempDir,
	)

	writer, err := export.NewWriter(c.Output.Dir, c.Output.Format)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		st,
		analytics.NewEngine(c.Analysis.Workers),
		facts.NewLoader(resolver, c.Input.Sheet),
		writer,
		m,
	), nil
}

// analyzeExit turns input load failures, and in strict mode any incomplete
// run, into a command error.
func analyzeExit(out *pipeline.Outcome, strict bool) error {
	if len(out.Inputs.Errors) > 0 {
		var msgs []string
		for _, c := range model.Categories {
			if msg, ok := out.Inputs.Errors[c]; ok {
				msgs = append(msgs, c.Key()+": "+msg)
			}
		}
		zap.L().Warn("analyze: inputs failed to load", zap.Strings("errors", msgs))
		return eris.Errorf("analyze: run %s: input errors: %s", out.RunID, strings.Join(msgs, "; "))
	}
	if strict && out.Status() != model.RunStatusComplete {
		return eris.Errorf("analyze: run %s finished %s", out.RunID, out.Status())
	}
	return nil
}
