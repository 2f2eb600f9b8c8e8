package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	syncErr     error
	report      *core.SyncReport
	feedback    []*core.FeedbackRequest
	feedbackErr error
	ingested    []core.IngestMessage
	exchangeErr error
	panicOnSync bool
}

func (f *fakeService) Sync(_ context.Context, token string) (*core.SyncReport, error) {
	if f.panicOnSync {
		panic("boom")
	}
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.report, nil
}

func (f *fakeService) Feedback(_ context.Context, token string, req *core.FeedbackRequest) (string, error) {
	if f.feedbackErr != nil {
		return "", f.feedbackErr
	}
	f.feedback = append(f.feedback, req)
	return "alice@example.com", nil
}

func (f *fakeService) Ingest(_ context.Context, messages []core.IngestMessage) *core.IngestReport {
	f.ingested = append(f.ingested, messages...)
	report := &core.IngestReport{}
	for _, m := range messages {
		if m.MessageID == "" {
			continue
		}
		report.Items = append(report.Items, core.IngestItem{
			MessageID: m.MessageID,
			Deadline:  time.Date(2026, time.February, 16, 0, 0, 0, 0, time.UTC),
		})
	}
	return report
}

func (f *fakeService) ExchangeCode(_ context.Context, code string) (map[string]interface{}, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return map[string]interface{}{"access_token": "ya29." + code, "token_type": "Bearer"}, nil
}

type fakePending int

func (p fakePending) Pending() int { return int(p) }

func newTestServer(svc *fakeService) *Server {
	return NewServer(svc, fakePending(3), Config{IngestSecret: "s3cret"}, zap.NewNop())
}

func do(t *testing.T, s *Server, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func post(path, body string, headers ...string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return req
}

func TestHealth(t *testing.T) {
	status, body := do(t, newTestServer(&fakeService{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["pending_reminders"])
}

func TestSyncReturnsDeadlines(t *testing.T) {
	svc := &fakeService{report: &core.SyncReport{
		Owner: "alice@example.com",
		Deadlines: []*core.Deadline{{
			MessageID: "m1",
			Subject:   "Lab report",
			Sender:    "prof@uni.edu",
			Instant:   time.Date(2026, time.February, 16, 0, 0, 0, 0, time.UTC),
			Snippet:   "Submit on or before 16 Feb 2026",
		}},
	}}

	status, body := do(t, newTestServer(svc), post("/sync", "", "Authorization", "Bearer tok"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["new_deadlines_found"])

	deadlines := body["deadlines"].([]interface{})
	require.Len(t, deadlines, 1)
	d := deadlines[0].(map[string]interface{})
	assert.Equal(t, "m1", d["email_id"])
	assert.Equal(t, "Lab report", d["subject"])
	assert.Equal(t, "prof@uni.edu", d["sender"])
	assert.Equal(t, "2026-02-16T00:00:00Z", d["deadline_time"])
	assert.Equal(t, "Submit on or before 16 Feb 2026", d["snippet"])
	assert.NotContains(t, d, "Owner")
}

func TestSyncEmptyReportHasEmptyList(t *testing.T) {
	svc := &fakeService{report: &core.SyncReport{Owner: "alice@example.com"}}
	status, body := do(t, newTestServer(svc), post("/sync", "", "Authorization", "Bearer tok"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["deadlines"])
}

func TestSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		auth   string
		err    error
		status int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", nil, http.StatusUnauthorized},
		{"rejected token", "Bearer tok", fmt.Errorf("get profile: %w", core.ErrUnauthorized), http.StatusUnauthorized},
		{"upstream down", "Bearer tok", fmt.Errorf("list: %w", core.ErrUpstreamUnavailable), http.StatusBadGateway},
		{"not configured", "Bearer tok", core.ErrNotConfigured, http.StatusInternalServerError},
		{"unexpected", "Bearer tok", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{syncErr: tt.err, report: &core.SyncReport{}}
			req := post("/sync", "")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			status, body := do(t, newTestServer(svc), req)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["detail"])
			assert.NotEmpty(t, body["request_id"])
			assert.NotContains(t, body["detail"], "disk on fire")
		})
	}
}

func TestPanicBecomesInternalError(t *testing.T) {
	status, body := do(t, newTestServer(&fakeService{panicOnSync: true}), post("/sync", "", "Authorization", "Bearer tok"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["detail"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(&fakeService{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestFeedbackLabels(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	status, body := do(t, s, post("/feedback",
		`{"email_id":"m1","subject":"Sale","snippet":"50% off","is_spam":true}`,
		"Authorization", "Bearer tok"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "learned", body["status"])
	assert.Equal(t, "alice@example.com", body["user"])

	status, _ = do(t, s, post("/feedback",
		`{"email_id":"m2","snippet":"exam friday","is_important":true}`,
		"Authorization", "Bearer tok"))
	require.Equal(t, http.StatusOK, status)

	require.Len(t, svc.feedback, 2)
	assert.Equal(t, &core.FeedbackRequest{MessageID: "m1", Subject: "Sale", Snippet: "50% off", Important: false}, svc.feedback[0])
	assert.True(t, svc.feedback[1].Important)
}

func TestFeedbackRejectsBadRequests(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	status, _ := do(t, s, post("/feedback", `{"email_id":"m1","is_spam":true}`))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, s, post("/feedback", `{"email_id":"m1"}`, "Authorization", "Bearer tok"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, s, post("/feedback", `{not json`, "Authorization", "Bearer tok"))
	assert.Equal(t, http.StatusBadRequest, status)

	svc.feedbackErr = core.ErrUnauthorized
	status, _ = do(t, s, post("/feedback", `{"email_id":"m1","is_spam":false}`, "Authorization", "Bearer bad"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, svc.feedback)
}

func TestExchange(t *testing.T) {
	status, body := do(t, newTestServer(&fakeService{}), post("/auth/exchange", `{"code":"abc"}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ya29.abc", body["access_token"])

	status, _ = do(t, newTestServer(&fakeService{}), post("/auth/exchange", `{}`))
	assert.Equal(t, http.StatusBadRequest, status)

	failing := &fakeService{exchangeErr: fmt.Errorf("exchange: %w", core.ErrExchangeFailed)}
	status, _ = do(t, newTestServer(failing), post("/auth/exchange", `{"code":"abc"}`))
	assert.Equal(t, http.StatusBadRequest, status)

	unconfigured := &fakeService{exchangeErr: fmt.Errorf("creds: %w", core.ErrNotConfigured)}
	status, body = do(t, newTestServer(unconfigured), post("/auth/exchange", `{"code":"abc"}`))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server credentials not configured", body["detail"])
}

func TestIngest(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	payload := `{"messages":[
		{"email_id":"a1","subject":"Quiz","snippet":"on or before 16 Feb 2026","thread_id":"t1"},
		{"email_id":"a2","snippet":"hello"}
	]}`
	status, body := do(t, s, post("/apps/ingest", payload, "X-Apps-Script-Secret", "s3cret"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["processed"])

	items := body["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "a1", first["email_id"])
	assert.Equal(t, "2026-02-16T00:00:00Z", first["deadline"])

	require.Len(t, svc.ingested, 2)
	assert.Equal(t, "t1", svc.ingested[0].ThreadID)
	assert.Equal(t, "", svc.ingested[1].Subject)
}

func TestIngestRequiresSecret(t *testing.T) {
	svc := &fakeService{}

	status, _ := do(t, newTestServer(svc), post("/apps/ingest", `{"messages":[]}`))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, newTestServer(svc), post("/apps/ingest", `{"messages":[]}`, "X-Apps-Script-Secret", "nope"))
	assert.Equal(t, http.StatusUnauthorized, status)

	open := NewServer(svc, nil, Config{}, zap.NewNop())
	status, _ = do(t, open, post("/apps/ingest", `{"messages":[]}`, "X-Apps-Script-Secret", ""))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, svc.ingested)
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/sync", nil)
	req.Header.Set("Origin", "http://10.0.2.2:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := newTestServer(&fakeService{}).App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
