package pipeline

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/pressure-cli/internal/export"
	"github.com/sells-group/pressure-cli/internal/model"
	"github.com/sells-group/pressure-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateRun(ctx context.Context, inputs model.RunInputs) (*model.Run, error) {
	args := m.Called(ctx, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) UpdateRunInputs(ctx context.Context, runID string, inputs model.RunInputs) error {
	return m.Called(ctx, runID, inputs).Error(0)
}

func (m *mockStore) UpdateRunError(ctx context.Context, runID string, msg string) error {
	return m.Called(ctx, runID, msg).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) LatestRun(ctx context.Context) (*model.Run, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CreateStage(ctx context.Context, runID string, name string) (string, error) {
	args := m.Called(ctx, runID, name)
	return args.String(0), args.Error(1)
}

func (m *mockStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	return m.Called(ctx, stageID, result).Error(0)
}

func (m *mockStore) SaveTables(ctx context.Context, runID string, tables *model.Tables) error {
	return m.Called(ctx, runID, tables).Error(0)
}

func (m *mockStore) GetTable(ctx context.Context, runID string, name string) (json.RawMessage, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Loader stub ---

type stubLoader struct {
	facts  model.FactTables
	inputs model.RunInputs
}

func (l *stubLoader) LoadAll(_ context.Context, locations map[model.Category]string) (model.FactTables, model.RunInputs) {
	inputs := l.inputs
	inputs.Locations = locations
	return l.facts, inputs
}

// --- Exporter Mock ---

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) WriteTables(tables *model.Tables) ([]string, error) {
	args := m.Called(tables)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockExporter) WriteManifest(man *export.Manifest) (string, error) {
	args := m.Called(man)
	return args.String(0), args.Error(1)
}
