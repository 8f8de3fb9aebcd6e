package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "state.sqlite"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSettings(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.Settings()
	if err != nil || len(got) != 0 {
		t.Fatalf("Settings() on empty db = %v, %v", got, err)
	}

	if err := s.SaveSettings(map[string]string{"format": "png", "quality": "90"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if err := s.SaveSettings(map[string]string{"quality": "70"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err = s.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if got["format"] != "png" || got["quality"] != "70" {
		t.Errorf("Settings() = %v", got)
	}

	if err := s.ResetSettings(); err != nil {
		t.Fatalf("ResetSettings() error = %v", err)
	}
	if got, _ := s.Settings(); len(got) != 0 {
		t.Errorf("Settings() after reset = %v", got)
	}
}

func TestBatchHistory(t *testing.T) {
	s := newTestStorage(t)

	if err := s.StartBatch("b1", `{"format":"png"}`, "hash", 3); err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}
	jobs := []Job{
		{BatchID: "b1", SrcPath: "/a.jpg", SrcSize: 1000, SrcFormat: "jpeg", OutFormat: "png",
			DstPath: "/a.png", Status: "succeeded", Stage: "Succeeded", BytesWritten: 700, Duration: time.Second},
		{BatchID: "b1", SrcPath: "/b.png", SrcSize: 10, OutFormat: "png",
			Status: "failed", Stage: "Decoding", ErrorKind: "CorruptData", Error: "bad"},
		{BatchID: "b1", SrcPath: "/c.webp", SrcSize: 5, OutFormat: "png", Status: "cancelled", Stage: "Queued"},
	}
	for _, j := range jobs {
		if err := s.RecordJob(j); err != nil {
			t.Fatalf("RecordJob() error = %v", err)
		}
	}
	if err := s.FinishBatch("b1", 1, 1, 1, BatchCancelled); err != nil {
		t.Fatalf("FinishBatch() error = %v", err)
	}

	// Незакрытая пачка от "упавшего" процесса.
	if err := s.StartBatch("b2", "{}", "hash", 1); err != nil {
		t.Fatal(err)
	}
	n, err := s.CleanupInProgress()
	if err != nil || n != 1 {
		t.Fatalf("CleanupInProgress() = %d, %v; want 1", n, err)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if st.Batches != 2 || st.Interrupted != 1 {
		t.Errorf("batches = %d, interrupted = %d", st.Batches, st.Interrupted)
	}
	if st.Jobs != 3 || st.Succeeded != 1 || st.Failed != 1 || st.Cancelled != 1 {
		t.Errorf("jobs = %+v", st)
	}
	if st.BytesRead != 1000 || st.BytesWritten != 700 {
		t.Errorf("bytes read/written = %d/%d", st.BytesRead, st.BytesWritten)
	}
	if st.ByErrorKind["CorruptData"] != 1 {
		t.Errorf("ByErrorKind = %v", st.ByErrorKind)
	}

	batches, err := s.RecentBatches(10)
	if err != nil {
		t.Fatalf("RecentBatches() error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("RecentBatches() returned %d", len(batches))
	}
	for _, b := range batches {
		if b.ID == "b1" && (b.Status != BatchCancelled || b.Succeeded != 1 || b.FinishedAt == nil) {
			t.Errorf("b1 = %+v", b)
		}
		if b.ID == "b2" && b.Status != BatchInterrupted {
			t.Errorf("b2 status = %v", b.Status)
		}
	}
}
