package model

import "time"

// ClassCount holds the tally for one tax class within a partition.
type ClassCount struct {
	Count       int     `json:"count" yaml:"count"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Percentage  float64 `json:"percentage" yaml:"percentage"`
}

// FilterStats summarizes the tax-class partition of a run.
type FilterStats struct {
	TotalRecords   int                   `json:"total_records" yaml:"total_records"`
	ValidRecords   int                   `json:"valid_records" yaml:"valid_records"`
	FilteredOut    int                   `json:"filtered_out" yaml:"filtered_out"`
	ValidClasses   map[string]ClassCount `json:"valid_classes" yaml:"valid_classes"`
	InvalidClasses map[string]ClassCount `json:"invalid_classes" yaml:"invalid_classes"`
}

// PipelineStats is the derived, read-only snapshot for a full run. The
// record set is authoritative; these counts are recomputed per run and
// never persisted as a source of truth.
type PipelineStats struct {
	Filter            FilterStats `json:"filter" yaml:"filter"`
	Resolved          int         `json:"resolved" yaml:"resolved"`
	Unresolved        int         `json:"unresolved" yaml:"unresolved"`
	DuplicatesRemoved int         `json:"duplicates_removed" yaml:"duplicates_removed"`
	FinalRecords      int         `json:"final_records" yaml:"final_records"`
}

// RunStatus tracks an archived run's lifecycle.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusEmpty    RunStatus = "empty"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the archival record of one pipeline execution.
type Run struct {
	ID         string        `json:"id"`
	User       string        `json:"user"`
	InputFile  string        `json:"input_file"`
	Status     RunStatus     `json:"status"`
	Stats      PipelineStats `json:"stats"`
	OutputCSV  string        `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
