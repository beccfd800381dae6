package csvsnapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	insights "greengauge/internal/insights/domain"
)

const sampleCSV = "Time,Current,Voltage,Power\n" +
	"2024-01-15T10:00:00Z,0.5,230,100\n" +
	"\n" +
	"2024-01-15T10:01:00Z,0.6,231\n"

func TestParseSkipsBlankLines(t *testing.T) {
	rows, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if power, _ := rows[0].Get("Power"); power != "100" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if voltage, _ := rows[1].Get("Voltage"); voltage != "231" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if value, ok := rows[1].Get("Power"); !ok || value != "" {
		t.Fatalf("expected short row padded with empty Power, got %q ok=%v", value, ok)
	}
}

func TestParseKeepsHeaderOrder(t *testing.T) {
	rows, err := Parse(strings.NewReader("Time,Power,Current,Voltage\n2024-01-15T10:00:00Z,100,0.5,230\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"Time":"2024-01-15T10:00:00Z","Power":"100","Current":"0.5","Voltage":"230"}]`
	if string(payload) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", payload, want)
	}
}

func TestParseRepeatedHeader(t *testing.T) {
	rows, err := Parse(strings.NewReader("Power,Time,Power\n1,t0,2\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0][0].Name != "Power" || rows[0][0].Value != "2" || rows[0][1].Name != "Time" {
		t.Fatalf("unexpected cells: %+v", rows[0])
	}
}

func TestParseEmpty(t *testing.T) {
	rows, err := Parse(strings.NewReader(""))
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows, got %v err=%v", rows, err)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kettle.csv"), []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loader, err := NewFileLoader(dir)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	rows, err := loader.Load(context.Background(), "kettle")
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d err=%v", len(rows), err)
	}
	if _, err := loader.Load(context.Background(), "toaster"); !errors.Is(err, insights.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if _, err := loader.Load(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected invalid key error")
	}
}

func TestHTTPLoader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/kettle.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	loader, err := NewHTTPLoader(server.URL+"/data/", nil)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	rows, err := loader.Load(context.Background(), "kettle")
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d err=%v", len(rows), err)
	}
	if _, err := loader.Load(context.Background(), "fan"); !errors.Is(err, insights.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
