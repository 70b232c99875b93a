package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pressure-cli/internal/config"
	"github.com/sells-group/pressure-cli/internal/export"
	"github.com/sells-group/pressure-cli/internal/model"
	"github.com/sells-group/pressure-cli/internal/pipeline"
	"github.com/sells-group/pressure-cli/internal/store"
)

func testConfig(outDir string) *config.Config {
	return &config.Config{
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: ":memory:"},
		Output:   config.OutputConfig{Dir: outDir, Format: config.FormatCSV},
		Analysis: config.AnalysisConfig{Workers: 2},
		Fetch:    config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, RatePerSec: 1, UserAgent: "test"},
	}
}

// writeFactTable writes two Kerala districts over three months, scaled.
func writeFactTable(t *testing.T, dir, name string, scale int64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("state,district,month,age_0_5,age_5_17,age_18_plus\n")
	for _, r := range []struct {
		district, month string
		child, adult    int64
	}{
		{"Ernakulam", "2024-01", 80, 20},
		{"Ernakulam", "2024-02", 90, 20},
		{"Ernakulam", "2024-03", 160, 30},
		{"Idukki", "2024-01", 10, 40},
		{"Idukki", "2024-02", 10, 45},
		{"Idukki", "2024-03", 12, 41},
	} {
		fmt.Fprintf(&b, "Kerala,%s,%s,0,%d,%d\n", r.district, r.month, r.child*scale, r.adult*scale)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestApplyAnalyzeFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addAnalyzeFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Set("biometric", "ftp://data.example.org/bio.csv"))
	require.NoError(t, cmd.Flags().Set("format", "both"))
	require.NoError(t, cmd.Flags().Set("workers", "8"))

	c := testConfig("output")
	c.Input.Enrollment = "enrollment.csv"
	applyAnalyzeFlags(cmd, c)

	assert.Equal(t, "enrollment.csv", c.Input.Enrollment)
	assert.Equal(t, "ftp://data.example.org/bio.csv", c.Input.Biometric)
	assert.Equal(t, config.FormatBoth, c.Output.Format)
	assert.Equal(t, "output", c.Output.Dir)
	assert.Equal(t, 8, c.Analysis.Workers)
}

func TestInputLocations(t *testing.T) {
	locs := inputLocations(config.InputConfig{Enrollment: "e.csv", Biometric: "b.xlsx"})
	assert.Equal(t, "e.csv", locs[model.CategoryEnrollment])
	assert.Equal(t, "b.xlsx", locs[model.CategoryBiometric])
	assert.Empty(t, locs[model.CategoryDemographic])
}

func TestAnalyzeExit(t *testing.T) {
	complete := []model.StageResult{{Name: model.StagePressure, Status: model.StageStatusComplete}}
	partial := []model.StageResult{
		{Name: model.StageComposition, Status: model.StageStatusFailed},
		{Name: model.StagePressure, Status: model.StageStatusComplete},
	}

	t.Run("complete", func(t *testing.T) {
		out := &pipeline.Outcome{RunID: "r1", Result: model.Result{Stages: complete}}
		assert.NoError(t, analyzeExit(out, true))
	})

	t.Run("partial is fine unless strict", func(t *testing.T) {
		out := &pipeline.Outcome{RunID: "r1", Result: model.Result{Stages: partial}}
		assert.NoError(t, analyzeExit(out, false))

		err := analyzeExit(out, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "finished partial")
	})

	t.Run("input errors always fail", func(t *testing.T) {
		out := &pipeline.Outcome{
			RunID:  "r1",
			Inputs: model.RunInputs{Errors: map[model.Category]string{model.CategoryBiometric: "no location configured"}},
			Result: model.Result{Stages: partial},
		}
		err := analyzeExit(out, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "biometric: no location configured")
	})
}

func TestBuildPipeline_InvalidFormat(t *testing.T) {
	c := testConfig(t.TempDir())
	c.Output.Format = "parquet"

	_, err := buildPipeline(c, nil, nil, t.TempDir())
	assert.Error(t, err)
}

func TestBuildPipeline_RunsLocalInputs(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	c := testConfig(outDir)
	c.Input = config.InputConfig{
		Enrollment:  writeFactTable(t, inDir, "enrollment.csv", 3),
		Biometric:   writeFactTable(t, inDir, "biometric.csv", 2),
		Demographic: writeFactTable(t, inDir, "demographic.csv", 1),
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pressure.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	p, err := buildPipeline(c, st, nil, t.TempDir())
	require.NoError(t, err)

	out, err := p.Run(ctx, inputLocations(c.Input))
	require.NoError(t, err)
	require.NoError(t, analyzeExit(out, true))

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 6, out.Inputs.Rows[model.CategoryEnrollment])
	assert.Len(t, out.Result.Tables.Recommendations, 2)
	assert.Contains(t, out.Files, export.ManifestName)
	_, err = os.Stat(filepath.Join(outDir, "pressure.csv"))
	assert.NoError(t, err)

	run, err := st.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Len(t, run.Stages, len(model.StageNames))
}
