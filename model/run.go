package model

import (
	"time"
)

// Run represents one pipeline execution over a day's notices
type Run struct {
	ID         string    `json:"id"`
	Tenant     string    `json:"tenant"`
	Source     string    `json:"source"`
	TargetDate string    `json:"target_date,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Status     string    `json:"status"` // pending, fetching, filtering, scanning, completed, failed
	Keywords   []string  `json:"keywords,omitempty"`
	Progress   Progress  `json:"progress"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	Raw        *Table    `json:"-"`
	Filtered   *Table    `json:"-"`
	Cleaned    *Table    `json:"-"`
	Scanned    *Table    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Progress tracks how far a fetch or a document scan has advanced.
type Progress struct {
	Offset    int `json:"offset,omitempty"`
	Fetched   int `json:"fetched,omitempty"`
	Processed int `json:"processed,omitempty"`
	Total     int `json:"total,omitempty"`
}

// RunStatus constants
const (
	StatusPending   = "pending"
	StatusFetching  = "fetching"
	StatusFiltering = "filtering"
	StatusScanning  = "scanning"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run source constants
const (
	SourceBoamp  = "boamp"
	SourceUpload = "upload"
)

// Pipeline stage names, in order.
const (
	StageRaw      = "raw"
	StageFiltered = "filtered"
	StageCleaned  = "cleaned"
	StageScanned  = "scanned"
)

// StageTable returns the table stored for the named stage, nil when the
// stage has not been produced yet or the name is unknown.
func (r *Run) StageTable(stage string) *Table {
	switch stage {
	case StageRaw:
		return r.Raw
	case StageFiltered:
		return r.Filtered
	case StageCleaned:
		return r.Cleaned
	case StageScanned:
		return r.Scanned
	}
	return nil
}

// Counts reports the row count of every produced stage.
func (r *Run) Counts() map[string]int {
	counts := make(map[string]int)
	for _, stage := range []string{StageRaw, StageFiltered, StageCleaned, StageScanned} {
		if t := r.StageTable(stage); t != nil {
			counts[stage] = len(t.Rows)
		}
	}
	return counts
}
