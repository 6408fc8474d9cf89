package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"refinery/internal/domain"
)

type engineStub struct {
	calls    atomic.Int32
	history  func(w http.ResponseWriter, promptID string)
	statsErr bool
}

func (s *engineStub) handler() http.Handler {
	mux := http.NewServeMux()
	requireMethod := func(method string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/upload/image", requireMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("image"); err != nil {
			http.Error(w, "missing image part", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "uploaded_input.png"})
	}))
	mux.HandleFunc("/prompt", requireMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt   Graph  `json:"prompt"`
			ClientID string `json:"client_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.ClientID == "" {
			http.Error(w, "missing client_id", http.StatusBadRequest)
			return
		}
		for _, node := range body.Prompt {
			if node.ClassType == classLoadImage && node.Inputs["image"] != "uploaded_input.png" {
				http.Error(w, "load node not bound to uploaded file", http.StatusBadRequest)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "prompt-123"})
	}))
	mux.HandleFunc("/history/", requireMethod(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.history(w, strings.TrimPrefix(r.URL.Path, "/history/"))
	}))
	mux.HandleFunc("/system_stats", requireMethod(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		if s.statsErr {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"system": map[string]string{"comfyui_version": "0.3.1"}})
	}))
	return mux
}

func newTestClient(t *testing.T, stub *engineStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		ProbeTimeout: time.Second,
	})
}

func completedHistory(promptID, nodeID, filename string) map[string]any {
	return map[string]any{
		promptID: map[string]any{
			"status": map[string]any{"completed": true, "status_str": "success"},
			"outputs": map[string]any{
				nodeID: map[string]any{
					"images": []map[string]string{{"filename": filename, "subfolder": "", "type": "output"}},
				},
			},
		},
	}
}

func TestSubmitJobUploadsAndBinds(t *testing.T) {
	stub := &engineStub{}
	c := newTestClient(t, stub)

	g := Compile(domain.ProcessRotate, domain.Params{"rotationAngle": float64(45)}, "placeholder.png")
	promptID, err := c.SubmitJob(context.Background(), g, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if promptID != "prompt-123" {
		t.Errorf("promptID = %q", promptID)
	}
}

func TestAwaitCompletionScansArbitraryOutputNode(t *testing.T) {
	stub := &engineStub{}
	stub.history = func(w http.ResponseWriter, promptID string) {
		// Output lives at node "47", not a conventional terminal id.
		_ = json.NewEncoder(w).Encode(completedHistory(promptID, "47", "rotated_00001.png"))
	}
	c := newTestClient(t, stub)

	res, err := c.AwaitCompletion(context.Background(), "prompt-123", time.Second)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if res.State != StateCompleted {
		t.Fatalf("state = %s, message = %s", res.State, res.Message)
	}
	if !strings.Contains(res.OutputURL, "filename=rotated_00001.png") {
		t.Errorf("output url = %q", res.OutputURL)
	}
	if !strings.Contains(res.OutputURL, "type=output") {
		t.Errorf("output url missing type: %q", res.OutputURL)
	}
}

func TestAwaitCompletionEngineError(t *testing.T) {
	stub := &engineStub{}
	stub.history = func(w http.ResponseWriter, promptID string) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			promptID: map[string]any{
				"status": map[string]any{"completed": false, "status_str": "error"},
			},
		})
	}
	c := newTestClient(t, stub)

	res, err := c.AwaitCompletion(context.Background(), "prompt-123", time.Second)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if res.State != StateError {
		t.Errorf("state = %s", res.State)
	}
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	stub := &engineStub{}
	stub.history = func(w http.ResponseWriter, promptID string) {
		// Prompt never appears in history.
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}
	c := newTestClient(t, stub)

	res, err := c.AwaitCompletion(context.Background(), "prompt-123", 30*time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if res.State != StateTimeout {
		t.Errorf("state = %s", res.State)
	}
}

func TestAwaitCompletionSurvivesTransientErrors(t *testing.T) {
	stub := &engineStub{}
	stub.history = func(w http.ResponseWriter, promptID string) {
		if stub.calls.Load() < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(completedHistory(promptID, "3", "out.png"))
	}
	c := newTestClient(t, stub)

	res, err := c.AwaitCompletion(context.Background(), "prompt-123", time.Second)
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if res.State != StateCompleted {
		t.Errorf("state = %s after transient errors", res.State)
	}
}

func TestAwaitCompletionHonorsCancellation(t *testing.T) {
	stub := &engineStub{}
	stub.history = func(w http.ResponseWriter, promptID string) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}
	c := newTestClient(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := c.AwaitCompletion(ctx, "prompt-123", time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCheckStatusOnline(t *testing.T) {
	stub := &engineStub{}
	c := newTestClient(t, stub)

	st := c.CheckStatus(context.Background())
	if !st.Online {
		t.Fatalf("expected online, got error %q", st.Error)
	}
	if st.Version != "0.3.1" {
		t.Errorf("version = %q", st.Version)
	}
}

func TestCheckStatusOffline(t *testing.T) {
	stub := &engineStub{statsErr: true}
	c := newTestClient(t, stub)

	if st := c.CheckStatus(context.Background()); st.Online {
		t.Fatal("expected offline")
	}
}
