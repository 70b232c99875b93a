package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusLoading   RunStatus = "loading"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusWriting   RunStatus = "writing"
	RunStatusComplete  RunStatus = "complete"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// StageStatus represents the outcome of a single analytics stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// StagePosition returns the execution index of a stage, or len(StageNames)
// for an unknown name.
func StagePosition(name string) int {
	for i, n := range StageNames {
		if n == name {
			return i
		}
	}
	return len(StageNames)
}

// Stage names, in execution order.
const (
	StageComposition     = "composition"
	StagePressure        = "pressure"
	StageTypology        = "typology"
	StageSpikes          = "spikes"
	StageRecommendations = "recommendations"
)

// StageNames lists the analytics stages in execution order.
var StageNames = []string{StageComposition, StagePressure, StageTypology, StageSpikes, StageRecommendations}

// RunInputs records where each fact table was read from.
type RunInputs struct {
	Locations map[Category]string `json:"locations"`
	Rows      map[Category]int    `json:"rows"`
	Errors    map[Category]string `json:"errors,omitempty"`
}

// StageResult holds the outcome of one analytics stage.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Rows     int         `json:"rows"`
	Excluded int         `json:"excluded"`
	Warnings int         `json:"warnings"`
	Error    string      `json:"error,omitempty"`
}

// Run is a single execution of the analytics pipeline over one batch.
type Run struct {
	ID        string        `json:"id"`
	Inputs    RunInputs     `json:"inputs"`
	Status    RunStatus     `json:"status"`
	Stages    []StageResult `json:"stages,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Result is the complete outcome of a pipeline run.
type Result struct {
	Tables Tables        `json:"tables"`
	Stages []StageResult `json:"stages"`
}

// Status derives the run status from the stage outcomes.
func (r *Result) Status() RunStatus {
	failed := 0
	for _, s := range r.Stages {
		if s.Status == StageStatusFailed {
			failed++
		}
	}
	switch {
	case failed == 0:
		return RunStatusComplete
	case failed == len(r.Stages):
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// Stage returns the result of the named stage, or nil.
func (r *Result) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}
