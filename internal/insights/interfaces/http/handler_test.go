package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"greengauge/internal/auth"
	"greengauge/internal/insights/application"
	insights "greengauge/internal/insights/domain"
	masterdata "greengauge/internal/masterdata/domain"
)

type stubSnapshots struct{}

func (stubSnapshots) Load(ctx context.Context, deviceKey string) ([]insights.Row, error) {
	return []insights.Row{{{Name: "Power", Value: "100"}}}, nil
}

type stubModel struct {
	err error
}

func (m stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "Boil only what you need.", nil
}

func newTestRouter(t *testing.T, model insights.Generator) http.Handler {
	t.Helper()
	catalog, err := masterdata.NewCatalog(masterdata.DefaultDevices())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	service, err := application.NewService(stubSnapshots{}, model, application.ServiceConfig{})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	handler, err := NewHandler(catalog, service, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router)
	// Stand in for the auth middleware.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), auth.Identity{Subject: "user-1", Role: auth.RoleViewer})
		router.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeResult(t *testing.T, resp *httptest.ResponseRecorder) application.Result {
	t.Helper()
	var result application.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return result
}

func TestAskThenConversation(t *testing.T) {
	router := newTestRouter(t, stubModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/kettle/questions", strings.NewReader(`{"question":"How can I save?"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	result := decodeResult(t, resp)
	if len(result.Messages) != 2 || result.Reply == nil || result.Reply.Sender != insights.SenderAI {
		t.Fatalf("unexpected result: %+v", result)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/kettle/conversation", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if history := decodeResult(t, resp); len(history.Messages) != 2 {
		t.Fatalf("expected 2 messages in history, got %d", len(history.Messages))
	}
}

func TestGenerateInsightsFailureIsNotAnHTTPError(t *testing.T) {
	router := newTestRouter(t, stubModel{err: errors.New("timeout")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/kettle/insights", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	result := decodeResult(t, resp)
	if !result.Failed || result.Reply == nil || result.Reply.Text != insights.FailureText {
		t.Fatalf("expected synthetic failure, got %+v", result)
	}
}

func TestAskValidation(t *testing.T) {
	router := newTestRouter(t, stubModel{})
	cases := []struct {
		path string
		body string
		code int
	}{
		{path: "/api/v1/devices/kettle/questions", body: `{"question":"  "}`, code: http.StatusBadRequest},
		{path: "/api/v1/devices/kettle/questions", body: `{`, code: http.StatusBadRequest},
		{path: "/api/v1/devices/toaster/questions", body: `{"question":"hi"}`, code: http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.code {
			t.Fatalf("%s %s: expected %d, got %d", tc.path, tc.body, tc.code, resp.Code)
		}
	}
}
