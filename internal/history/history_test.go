package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daryltucker/forest-bench/internal/metrics"
	"github.com/daryltucker/forest-bench/internal/model"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFile))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	q := model.NeutralScore("")
	q.Depth = 5
	results := []model.RunResult{
		{Category: "a", Name: "base", IsBaseline: true, Success: true, Duration: 1500 * time.Millisecond,
			Metrics: metrics.Aggregated{TotalCalls: 1, TotalTokens: 10, TotalLatencyMs: 1200}, QualityScore: &q},
		{Category: "a", Name: "broken", ErrorKind: "invocation"},
	}

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := s.RecordRun(ctx, Run{RunID: "old", Prompt: "p", RunPath: "/r/old", CreatedAt: older}, nil)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	second, err := s.RecordRun(ctx, Run{RunID: "new", Prompt: "p", RunPath: "/r/new", Evaluate: true, CreatedAt: older.Add(time.Hour)}, results)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("ids: %q %q", first, second)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs: got %d want 2", len(runs))
	}
	latest := runs[0]
	if latest.RunID != "new" || !latest.Evaluate || latest.Candidates != 2 || latest.Succeeded != 1 {
		t.Fatalf("latest: %+v", latest)
	}
	if latest.AvgQuality == nil || *latest.AvgQuality != q.Average() {
		t.Fatalf("avg quality: %v", latest.AvgQuality)
	}
	if !latest.CreatedAt.Equal(older.Add(time.Hour)) {
		t.Fatalf("created_at: %v", latest.CreatedAt)
	}
	if runs[1].Candidates != 0 || runs[1].AvgQuality != nil {
		t.Fatalf("empty run: %+v", runs[1])
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit: got %d", len(limited))
	}
}

func TestResults(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	id, err := s.RecordRun(ctx, Run{RunID: "r", Prompt: "p", RunPath: "/r"}, []model.RunResult{
		{Category: "a", Name: "one", Success: true, Duration: 2 * time.Second, Metrics: metrics.Aggregated{TotalCalls: 3}},
		{Category: "a", Name: "two", ErrorKind: "empty_content"},
	})
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	entries, err := s.Results(ctx, id)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d", len(entries))
	}
	if entries[0].FullName != "a/one" || entries[0].Calls != 3 || entries[0].Duration != 2*time.Second || entries[0].Quality != nil {
		t.Fatalf("first: %+v", entries[0])
	}
	if entries[1].Success || entries[1].ErrorKind != "empty_content" {
		t.Fatalf("second: %+v", entries[1])
	}
}
