package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/converter"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	results := []*converter.Result{
		{
			Source:       scanner.File{Size: 1000, Format: codec.JPEG},
			Status:       converter.StatusSucceeded,
			BytesWritten: 400,
			Duration:     50 * time.Millisecond,
			Warnings:     []string{"bad profile"},
		},
		{
			Source:       scanner.File{Size: 500, Format: codec.WebP},
			Status:       converter.StatusSucceeded,
			BytesWritten: 100,
			Cached:       true,
		},
		{
			Source: scanner.File{Size: 10, Format: codec.PNG},
			Status: converter.StatusFailed,
			Err:    imgerr.New(imgerr.CorruptData, "decode", errors.New("bad")),
		},
	}
	for _, r := range results {
		m.Observe(r)
	}
	m.BatchFinished("done")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"succeeded", testutil.ToFloat64(m.files.WithLabelValues("succeeded", "")), 2},
		{"corrupt", testutil.ToFloat64(m.files.WithLabelValues("failed", "CorruptData")), 1},
		{"bytes in", testutil.ToFloat64(m.bytesIn), 1500},
		{"bytes out", testutil.ToFloat64(m.bytesOut), 500},
		{"warnings", testutil.ToFloat64(m.warnings), 1},
		{"cache hits", testutil.ToFloat64(m.cacheHits), 1},
		{"batches", testutil.ToFloat64(m.batches.WithLabelValues("done")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetrics_WriteToTextfile(t *testing.T) {
	m := New()
	m.BatchFinished("cancelled")

	path := filepath.Join(t.TempDir(), "imageconverter.prom")
	if err := m.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `imageconverter_batches_total{status="cancelled"} 1`) {
		t.Errorf("textfile does not contain batch counter:\n%s", data)
	}
}
