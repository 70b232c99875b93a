package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pressure-cli/internal/db"
	"github.com/sells-group/pressure-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, inputs, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT ` + runColumns + ` FROM runs WHERE id = $1`,
	"insert_stage":      `INSERT INTO run_stages (id, run_id, name, position, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_stage":    `UPDATE run_stages SET status = $1, result = $2 WHERE id = $3`,
	"get_table":         `SELECT rows FROM run_tables WHERE run_id = $1 AND name = $2`,
}

// profileColumns is the column order of district_profiles rows.
var profileColumns = []string{
	"run_id", "state", "district", "dominant_type", "dominance_strength",
	"pressure_index", "pressure_tier", "typology", "spike_type", "spike_months", "recommended_action",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	inputs     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_tables (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	name      TEXT NOT NULL,
	rows      JSONB NOT NULL,
	row_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS district_profiles (
	run_id             TEXT NOT NULL REFERENCES runs(id),
	state              TEXT NOT NULL,
	district           TEXT NOT NULL,
	dominant_type      TEXT NOT NULL DEFAULT '',
	dominance_strength TEXT NOT NULL DEFAULT '',
	pressure_index     DOUBLE PRECISION NOT NULL DEFAULT 0,
	pressure_tier      TEXT NOT NULL DEFAULT '',
	typology           TEXT NOT NULL DEFAULT '',
	spike_type         TEXT NOT NULL DEFAULT '',
	spike_months       INTEGER NOT NULL DEFAULT 0,
	recommended_action TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, state, district)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_district_profiles_tier ON district_profiles(run_id, pressure_tier);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, inputs model.RunInputs) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal inputs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, inputs, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, inputsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Inputs:    inputs,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.updateRun(ctx, runID, "status", `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`, string(status))
}

func (s *PostgresStore) UpdateRunInputs(ctx context.Context, runID string, inputs model.RunInputs) error {
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal inputs")
	}
	return s.updateRun(ctx, runID, "inputs", `UPDATE runs SET inputs = $1, updated_at = $2 WHERE id = $3`, inputsJSON)
}

func (s *PostgresStore) UpdateRunError(ctx context.Context, runID string, msg string) error {
	return s.updateRun(ctx, runID, "error", `UPDATE runs SET error = $1, updated_at = $2 WHERE id = $3`, msg)
}

func (s *PostgresStore) updateRun(ctx context.Context, runID, what, query string, value any) error {
	tag, err := s.pool.Exec(ctx, query, value, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s %s", what, runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`,
		runID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if r.Stages, err = s.stages(ctx, runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status = ANY($1) ORDER BY created_at DESC LIMIT 1`,
		finishedStatuses,
	))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest run")
	}
	if r.Stages, err = s.stages(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) CreateStage(ctx context.Context, runID string, name string) (string, error) {
	id := uuid.New().String()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, name, position, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, runID, name, model.StagePosition(name), string(model.StageStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert stage for run %s", runID)
	}
	return id, nil
}

func (s *PostgresStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_stages SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete stage %s", stageID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "stage %s", stageID)
	}
	return nil
}

// SaveTables upserts the serialized tables into run_tables and replaces the
// run's rows in district_profiles with a fresh COPY.
func (s *PostgresStore) SaveTables(ctx context.Context, runID string, tables *model.Tables) error {
	data, counts, err := tableRows(tables)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tables")
	}

	var rows [][]any
	for _, name := range model.TableNames {
		if b, ok := data[name]; ok {
			rows = append(rows, []any{runID, name, b, counts[name]})
		}
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "run_tables",
		Columns:      []string{"run_id", "name", "rows", "row_count"},
		ConflictKeys: []string{"run_id", "name"},
	}, rows); err != nil {
		return eris.Wrapf(err, "postgres: save tables for run %s", runID)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM district_profiles WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear profiles for run %s", runID)
	}
	profiles := tables.Profiles()
	profileRows := make([][]any, len(profiles))
	for i, p := range profiles {
		profileRows[i] = []any{
			runID, p.State, p.District, string(p.DominantType), string(p.DominanceStrength),
			p.PressureIndex, string(p.PressureTier), string(p.Typology), string(p.SpikeType),
			p.SpikeMonths, p.Action,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "district_profiles", profileColumns, profileRows); err != nil {
		return eris.Wrapf(err, "postgres: copy profiles for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetTable(ctx context.Context, runID string, name string) (json.RawMessage, error) {
	var rows []byte
	err := s.pool.QueryRow(ctx,
		`SELECT rows FROM run_tables WHERE run_id = $1 AND name = $2`,
		runID, name,
	).Scan(&rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: table %s for run %s", name, runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get table %s", name)
	}
	return json.RawMessage(rows), nil
}

func (s *PostgresStore) stages(ctx context.Context, runID string) ([]model.StageResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, status, result FROM run_stages WHERE run_id = $1 ORDER BY position, started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages for run %s", runID)
	}
	defer rows.Close()

	var out []model.StageResult
	for rows.Next() {
		var name, status string
		var resultNull *[]byte
		if err := rows.Scan(&name, &status, &resultNull); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		var resultJSON []byte
		if resultNull != nil {
			resultJSON = *resultNull
		}
		sr, err := decodeStage(name, status, resultNull != nil, resultJSON)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stage result")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var inputsJSON []byte
	var status string

	err := row.Scan(&r.ID, &inputsJSON, &status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(inputsJSON, &r.Inputs); err != nil {
		return nil, eris.Wrap(err, "unmarshal inputs")
	}
	return &r, nil
}
