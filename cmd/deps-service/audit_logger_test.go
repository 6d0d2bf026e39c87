package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("audit line is not JSON: %q", line)
		}
		records = append(records, rec)
	}
	return records
}

// TestAuditLogger tests audit record contents.
func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	audit := newAuditLogger(&buf)
	req := dependency.CommandRequest{Command: "ffmpeg", Args: []string{"-i", "/data/a.mp3"}}

	audit.LogExecution(req, dependency.CommandResponse{ExitCode: 0, DurationMs: 12}, nil, "10.0.0.1")
	audit.LogExecution(req, dependency.CommandResponse{ExitCode: 1}, errors.New("exit status 1"), "10.0.0.1")
	audit.LogRejection(req, "path traversal", "10.0.0.2")

	records := decodeLines(t, &buf)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	if records[0]["result"] != "success" || records[0]["command"] != "ffmpeg" || records[0]["duration_ms"] != float64(12) {
		t.Errorf("success record = %v", records[0])
	}
	if records[0]["time"] == nil {
		t.Error("record should carry a timestamp")
	}
	if records[1]["result"] != "failed" || records[1]["error_message"] != "exit status 1" {
		t.Errorf("failed record = %v", records[1])
	}
	if records[2]["result"] != "rejected" || records[2]["rejection_reason"] != "path traversal" || records[2]["source_ip"] != "10.0.0.2" {
		t.Errorf("rejection record = %v", records[2])
	}
}
