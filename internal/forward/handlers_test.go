package forward

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func logsRequest(t *testing.T, h *Handlers, jobID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(jobID)

	if err := h.GetJobLogs(c); err != nil {
		t.Fatalf("GetJobLogs() error = %v", err)
	}
	return rec
}

func TestGetJobLogs(t *testing.T) {
	engine := &fakeEngine{status: EngineStatus{
		RecentLines: []string{
			"Forwarded message with id = 11",
			"Forwarded message with id = 12",
		},
	}}
	m := newTestManager(engine)
	job, err := m.Start(validConfig())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec := logsRequest(t, NewHandlers(m), job.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		JobID string   `json:"jobId"`
		Logs  []string `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.JobID != job.ID {
		t.Errorf("jobId = %q, want %q", body.JobID, job.ID)
	}
	if len(body.Logs) != 2 || body.Logs[1] != "Forwarded message with id = 12" {
		t.Errorf("logs = %v", body.Logs)
	}
}

func TestGetJobLogs_UnknownJob(t *testing.T) {
	m := newTestManager(&fakeEngine{})

	rec := logsRequest(t, NewHandlers(m), "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
