package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pressure-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testInputs() model.RunInputs {
	return model.RunInputs{
		Locations: map[model.Category]string{
			model.CategoryEnrollment:  "data/enrollment.csv",
			model.CategoryBiometric:   "data/biometric.csv",
			model.CategoryDemographic: "https://example.com/demographic.csv",
		},
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Equal(t, "data/enrollment.csv", got.Inputs.Locations[model.CategoryEnrollment])
	assert.Empty(t, got.Stages)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UpdateRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)

	inputs := testInputs()
	inputs.Rows = map[model.Category]int{model.CategoryEnrollment: 12}
	inputs.Errors = map[model.Category]string{model.CategoryBiometric: "file not found"}

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusAnalyzing))
	require.NoError(t, st.UpdateRunInputs(ctx, run.ID, inputs))
	require.NoError(t, st.UpdateRunError(ctx, run.ID, "write output: disk full"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAnalyzing, got.Status)
	assert.Equal(t, 12, got.Inputs.Rows[model.CategoryEnrollment])
	assert.Equal(t, "file not found", got.Inputs.Errors[model.CategoryBiometric])
	assert.Equal(t, "write output: disk full", got.Error)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Stages(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)

	// Created out of order; read back in execution order.
	recID, err := st.CreateStage(ctx, run.ID, model.StageRecommendations)
	require.NoError(t, err)
	compID, err := st.CreateStage(ctx, run.ID, model.StageComposition)
	require.NoError(t, err)

	require.NoError(t, st.CompleteStage(ctx, compID, &model.StageResult{
		Name:     model.StageComposition,
		Status:   model.StageStatusComplete,
		Duration: 12,
		Rows:     40,
		Excluded: 2,
	}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Stages, 2)

	assert.Equal(t, model.StageComposition, got.Stages[0].Name)
	assert.Equal(t, model.StageStatusComplete, got.Stages[0].Status)
	assert.Equal(t, 40, got.Stages[0].Rows)
	assert.Equal(t, 2, got.Stages[0].Excluded)

	assert.Equal(t, model.StageRecommendations, got.Stages[1].Name)
	assert.Equal(t, model.StageStatusRunning, got.Stages[1].Status)

	require.NoError(t, st.CompleteStage(ctx, recID, &model.StageResult{
		Name:   model.StageRecommendations,
		Status: model.StageStatusFailed,
		Error:  "typology table unavailable",
	}))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "typology table unavailable", got.Stages[1].Error)
}

func TestSQLite_CompleteStage_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteStage(context.Background(), "missing", &model.StageResult{Status: model.StageStatusComplete})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_SaveAndGetTables(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)

	tables := &model.Tables{
		Pressure: []model.PressureRow{
			{DistrictKey: model.DistrictKey{State: "Kerala", District: "Idukki"}, PressureIndex: 0.75, PressureTier: model.TierHigh},
		},
		Spikes: []model.SpikeRow{},
	}
	require.NoError(t, st.SaveTables(ctx, run.ID, tables))

	raw, err := st.GetTable(ctx, run.ID, model.TablePressure)
	require.NoError(t, err)
	var rows []model.PressureRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Idukki", rows[0].District)
	assert.InDelta(t, 0.75, rows[0].PressureIndex, 1e-9)

	raw, err = st.GetTable(ctx, run.ID, model.TableSpikes)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	_, err = st.GetTable(ctx, run.ID, model.TableTypology)
	assert.True(t, errors.Is(err, ErrNotFound), "failed stage has no table")
}

func TestSQLite_SaveTables_Replaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)

	require.NoError(t, st.SaveTables(ctx, run.ID, &model.Tables{Spikes: []model.SpikeRow{{}, {}}}))
	require.NoError(t, st.SaveTables(ctx, run.ID, &model.Tables{Spikes: []model.SpikeRow{}}))

	raw, err := st.GetTable(ctx, run.ID, model.TableSpikes)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		run, err := st.CreateRun(ctx, testInputs())
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, st.UpdateRunStatus(ctx, ids[1], model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, ids[1], complete[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestSQLite_LatestRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.LatestRun(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	first, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, first.ID, model.RunStatusPartial))

	second, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, second.ID, model.RunStatusFailed))

	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID, "failed runs are skipped")
}

func TestSQLite_ListRuns_CreatedAfter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, testInputs())
	require.NoError(t, err)

	recent, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	future, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"runs.db?_pragma=journal_mode%28WAL%29&_pragma=busy_timeout%285000%29&_pragma=synchronous%28NORMAL%29&_pragma=foreign_keys%28ON%29",
		sqliteDSN("runs.db"))
	assert.Contains(t, sqliteDSN("file:runs.db?cache=shared"), "cache=shared&_pragma=")
}

func TestSQLite_PragmasOnEveryConnection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Hold the first connection so the second comes fresh from the pool.
	first, err := st.db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close() //nolint:errcheck
	second, err := st.db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck

	for _, conn := range []*sql.Conn{first, second} {
		var timeout, fk int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 5000, timeout)
		assert.Equal(t, 1, fk)

		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	}
}
