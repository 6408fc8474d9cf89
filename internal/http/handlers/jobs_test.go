package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"refinery/internal/domain"
)

func createJob(t *testing.T, f *appFixture, body string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.ID
}

func TestCreateJobValidation(t *testing.T) {
	f := newAppFixture()
	for name, body := range map[string]string{
		"missing prompt": `{"inputImageUrl":"http://img/in.png"}`,
		"missing image":  `{"prompt":"studio portrait"}`,
		"broken json":    `{`,
	} {
		rec := httptest.NewRecorder()
		serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestCreateJobDoesNotTouchEngine(t *testing.T) {
	f := newAppFixture()
	f.engine.online = false // intake must not care

	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png","clientJobId":"ext-1"}`)

	job, err := f.jobs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
}

func TestProcessJobCompletesAndNotifies(t *testing.T) {
	f := newAppFixture()
	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png","params":{"operation":"upscale"}}`)

	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/process", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case outcome := <-f.notifier.delivered:
		if outcome.Status != domain.StatusCompleted {
			t.Errorf("webhook outcome = %s", outcome.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}

	// Terminal update happens before the webhook, so the record is settled.
	job, _ := f.jobs.GetByID(context.Background(), id)
	if job.Status != domain.StatusCompleted {
		t.Errorf("job status = %s", job.Status)
	}
	if job.OutputImageURL == "" {
		t.Error("output url missing")
	}
}

func TestProcessJobTwiceConflicts(t *testing.T) {
	f := newAppFixture()
	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png"}`)

	first := httptest.NewRecorder()
	serve(f).ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/process", nil))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first call: status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	serve(f).ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/process", nil))
	if second.Code != http.StatusConflict {
		t.Fatalf("second call: status = %d, want 409", second.Code)
	}

	<-f.notifier.delivered
}

func TestProcessJobConcurrentCallsOneWinner(t *testing.T) {
	f := newAppFixture()
	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png"}`)

	const callers = 8
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/process", nil))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted)
	}

	<-f.notifier.delivered
	select {
	case <-f.notifier.delivered:
		t.Error("second webhook delivered; only the winner may notify")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcessJobUnknown(t *testing.T) {
	f := newAppFixture()
	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/nope/process", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessJobEngineOffline(t *testing.T) {
	f := newAppFixture()
	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png"}`)
	f.engine.online = false

	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/process", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}

	job, _ := f.jobs.GetByID(context.Background(), id)
	if job.Status != domain.StatusPending {
		t.Errorf("offline gate must leave the job pending, got %s", job.Status)
	}
}

func TestListAndGetJobs(t *testing.T) {
	f := newAppFixture()
	id := createJob(t, f, `{"prompt":"studio portrait","inputImageUrl":"http://img/in.png"}`)

	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), id) {
		t.Errorf("list body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: status = %d", rec.Code)
	}
}

func TestEngineStatusEndpoint(t *testing.T) {
	f := newAppFixture()

	rec := httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engine/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"online":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	f.engine.online = false
	rec = httptest.NewRecorder()
	serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engine/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; probe failures are a body concern", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"online":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealthAndPing(t *testing.T) {
	f := newAppFixture()
	for _, path := range []string{"/v1/healthz", "/api/ping"} {
		rec := httptest.NewRecorder()
		serve(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
