package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"", INFO, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	defer SetLevel(WARN)

	Infof("скрыто %d", 1)
	Warnf("видно %d", 2)
	Errorf("ошибка %s", "x")

	out := buf.String()
	if strings.Contains(out, "скрыто") {
		t.Error("info message passed WARN filter")
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "видно 2") {
		t.Errorf("warn message missing, got %q", out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "ошибка x") {
		t.Errorf("error message missing, got %q", out)
	}
}
