package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestIngestAuthMiddleware(t *testing.T) {
	secret := []byte("ingest-secret")
	var seen string
	handler := NewIngestAuthMiddleware(secret, time.Minute).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"deviceId":"KETTLE"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/ingest/telemetry", strings.NewReader(body))
	req.Header.Set(HeaderIngestTimestamp, ts)
	req.Header.Set(HeaderIngestSignature, SignIngest(secret, ts, []byte(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || seen != body {
		t.Fatalf("expected signed request through with body, got %d %q", resp.Code, seen)
	}

	req = httptest.NewRequest(http.MethodPost, "/ingest/telemetry", strings.NewReader(body))
	req.Header.Set(HeaderIngestTimestamp, ts)
	req.Header.Set(HeaderIngestSignature, SignIngest([]byte("wrong"), ts, []byte(body)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", resp.Code)
	}

	stale := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	req = httptest.NewRequest(http.MethodPost, "/ingest/telemetry", strings.NewReader(body))
	req.Header.Set(HeaderIngestTimestamp, stale)
	req.Header.Set(HeaderIngestSignature, SignIngest(secret, stale, []byte(body)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", resp.Code)
	}
}
