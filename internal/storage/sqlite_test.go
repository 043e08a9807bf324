package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/burplog-go/internal/traffic"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "export.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEntries() []traffic.Entry {
	return []traffic.Entry{
		{
			ID:              "1",
			Method:          "GET",
			Host:            "example.com",
			URL:             "https://example.com/",
			StatusCode:      traffic.IntPtr(200),
			Length:          traffic.IntPtr(5),
			DecodedRequest:  "GET / HTTP/1.1",
			DecodedResponse: "Hello",
		},
		{
			ID:              "2",
			Method:          "POST",
			DecodedResponse: "an exception occurred",
		},
	}
}

func TestNew(t *testing.T) {
	s := newTestStorage(t)
	if s.db == nil {
		t.Fatal("Expected database connection to be initialized")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "export.db")

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = s.Close() }()
}

func TestInitSchema(t *testing.T) {
	s := newTestStorage(t)

	if v := s.getSchemaVersion(); v != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, currentSchemaVersion)
	}

	for _, table := range []string{"export_runs", "entries", "schema_version"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "export.db")

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	run := &Run{SourcePath: "a.xml", Format: "markup"}
	if err := s.SaveRun(run, sampleEntries()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	_ = s.Close()

	s, err = New(dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.GetRun(run.ID); err != nil {
		t.Errorf("GetRun after reopen failed: %v", err)
	}
}

func TestSaveRunAndGet(t *testing.T) {
	s := newTestStorage(t)

	run := &Run{
		SourcePath:   "/tmp/export.xml",
		Format:       "markup",
		TotalRecords: 10,
		Filter:       "status_code=200",
	}
	entries := sampleEntries()

	if err := s.SaveRun(run, entries); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("Expected run ID to be assigned")
	}
	if run.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if run.Matched != 2 {
		t.Errorf("Matched = %d, want 2", run.Matched)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.SourcePath != run.SourcePath || got.Format != run.Format || got.Filter != run.Filter {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}
	if got.TotalRecords != 10 || got.Matched != 2 {
		t.Errorf("counts = %d/%d, want 10/2", got.TotalRecords, got.Matched)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}

	stored, err := s.GetEntries(run.ID)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if !reflect.DeepEqual(stored, entries) {
		t.Errorf("GetEntries mismatch:\ngot  %+v\nwant %+v", stored, entries)
	}
}

func TestSaveRunEmpty(t *testing.T) {
	s := newTestStorage(t)

	run := &Run{SourcePath: "empty.csv", Format: "tabular"}
	if err := s.SaveRun(run, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	entries, err := s.GetEntries(run.ID)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", entries)
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := newTestStorage(t)

	run := &Run{ID: "fixed", SourcePath: "a", Format: "markup"}
	if err := s.SaveRun(run, sampleEntries()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	err := s.SaveRun(&Run{ID: "fixed", SourcePath: "b", Format: "markup"}, nil)
	if err == nil {
		t.Fatal("Expected error for duplicate run ID")
	}
	if !strings.HasPrefix(err.Error(), "failed to insert run: ") {
		t.Errorf("unexpected error: %v", err)
	}

	// The failed save must not leave partial rows behind.
	entries, err := s.GetEntries("fixed")
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetRun("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, path := range []string{"first", "second", "third"} {
		run := &Run{SourcePath: path, Format: "tabular", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.SaveRun(run, nil); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].SourcePath != "third" || runs[2].SourcePath != "first" {
		t.Errorf("runs not newest first: %s, %s, %s", runs[0].SourcePath, runs[1].SourcePath, runs[2].SourcePath)
	}

	runs, err = s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
}

func TestCleanupOldRuns(t *testing.T) {
	s := newTestStorage(t)

	old := &Run{SourcePath: "old", Format: "markup", CreatedAt: time.Now().AddDate(0, 0, -30)}
	recent := &Run{SourcePath: "recent", Format: "markup"}
	if err := s.SaveRun(old, sampleEntries()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.SaveRun(recent, sampleEntries()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	deleted, err := s.CleanupOldRuns(7)
	if err != nil {
		t.Fatalf("CleanupOldRuns failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := s.GetRun(old.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	entries, err := s.GetEntries(old.ID)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("old entries not removed: %d left", len(entries))
	}
	if _, err := s.GetRun(recent.ID); err != nil {
		t.Errorf("recent run removed: %v", err)
	}
}

func TestCleanupOldRuns_NoData(t *testing.T) {
	s := newTestStorage(t)

	deleted, err := s.CleanupOldRuns(7)
	if err != nil {
		t.Fatalf("CleanupOldRuns failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestGetStatistics(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SaveRun(&Run{SourcePath: "a", Format: "markup"}, sampleEntries()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	stats, err := s.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats["total_runs"] != 1 {
		t.Errorf("total_runs = %v, want 1", stats["total_runs"])
	}
	if stats["total_entries"] != 2 {
		t.Errorf("total_entries = %v, want 2", stats["total_entries"])
	}
	dist, ok := stats["status_distribution"].(map[int]int)
	if !ok {
		t.Fatalf("status_distribution has type %T", stats["status_distribution"])
	}
	if dist[200] != 1 || dist[0] != 1 {
		t.Errorf("status_distribution = %v", dist)
	}
}

func TestClose(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "export.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	var empty Storage
	if err := empty.Close(); err != nil {
		t.Errorf("Close on empty storage failed: %v", err)
	}
}
