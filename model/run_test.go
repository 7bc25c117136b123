package model

import (
	"testing"
	"time"
)

func TestRunStruct(t *testing.T) {
	run := &Run{
		ID:         "test-id",
		Tenant:     "tenant1",
		Source:     SourceBoamp,
		TargetDate: "2024-01-15",
		Status:     StatusPending,
		Keywords:   []string{"menuiserie"},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if run.ID != "test-id" {
		t.Errorf("Expected ID 'test-id', got '%s'", run.ID)
	}
	if run.Status != StatusPending {
		t.Errorf("Expected status '%s', got '%s'", StatusPending, run.Status)
	}
}

func TestRunStatusConstants(t *testing.T) {
	statuses := []string{StatusPending, StatusFetching, StatusFiltering, StatusScanning, StatusCompleted, StatusFailed}
	expected := []string{"pending", "fetching", "filtering", "scanning", "completed", "failed"}

	for i, status := range statuses {
		if status != expected[i] {
			t.Errorf("Expected '%s', got '%s'", expected[i], status)
		}
	}
}

func TestRunStageTable(t *testing.T) {
	raw := NewTable("id")
	raw.Rows = append(raw.Rows, Row{"id": "1"}, Row{"id": "2"})
	run := &Run{ID: "r1", Raw: raw}

	if got := run.StageTable(StageRaw); got != raw {
		t.Error("Expected raw stage table")
	}
	if got := run.StageTable(StageFiltered); got != nil {
		t.Error("Expected nil for unproduced stage")
	}
	if got := run.StageTable("bogus"); got != nil {
		t.Error("Expected nil for unknown stage")
	}

	counts := run.Counts()
	if counts[StageRaw] != 2 {
		t.Errorf("Expected raw count 2, got %d", counts[StageRaw])
	}
	if _, ok := counts[StageCleaned]; ok {
		t.Error("Expected no count for unproduced stage")
	}
}
