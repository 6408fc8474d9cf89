package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State classifies the outcome of waiting on a submitted graph.
type State string

const (
	StateCompleted State = "completed"
	StateError     State = "error"
	StateTimeout   State = "timeout"
)

// Result is the terminal outcome of AwaitCompletion.
type Result struct {
	State     State
	OutputURL string
	Message   string
}

// Status is the engine availability probe result.
type Status struct {
	Online  bool   `json:"online"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options configures the engine client. Zero values fall back to the defaults
// the engine ships with.
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	ProbeTimeout time.Duration
}

// Client talks to the external node-graph image processor: asset upload, graph
// submission and history polling.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	probeTimeout time.Duration
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://127.0.0.1:8188"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	probe := opts.ProbeTimeout
	if probe <= 0 {
		probe = 5 * time.Second
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		pollInterval: interval,
		probeTimeout: probe,
	}
}

// FetchImage downloads the source asset bytes from its reference.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch input image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch input image: http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SubmitJob uploads the asset, binds the engine-local filename into the
// graph's load nodes and submits the graph. Returns the engine's prompt id.
func (c *Client) SubmitJob(ctx context.Context, g Graph, image []byte) (string, error) {
	name, err := c.uploadImage(ctx, image)
	if err != nil {
		return "", err
	}
	g.BindInput(name)

	payload, err := json.Marshal(map[string]any{
		"prompt":    g,
		"client_id": "refinery-" + uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit graph: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("submit graph: http %d", resp.StatusCode)
	}
	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("submit graph: %w", err)
	}
	if out.PromptID == "" {
		return "", errors.New("submit graph: empty prompt_id")
	}
	return out.PromptID, nil
}

func (c *Client) uploadImage(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "input.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := mw.WriteField("overwrite", "true"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("upload image: http %d", resp.StatusCode)
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if out.Name == "" {
		return "", errors.New("upload image: empty name")
	}
	return out.Name, nil
}

type historyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Status struct {
		Completed bool   `json:"completed"`
		StatusStr string `json:"status_str"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []historyImage `json:"images"`
	} `json:"outputs"`
}

// AwaitCompletion polls the history endpoint until the prompt completes,
// reports an error, or the budget elapses. Transient poll failures do not
// shorten the budget. Context cancellation aborts the wait and returns the
// context error.
func (c *Client) AwaitCompletion(ctx context.Context, promptID string, timeout time.Duration) (Result, error) {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return Result{State: StateTimeout, Message: "engine processing timed out"}, nil
		}

		entry, err := c.fetchHistory(ctx, promptID)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			// Transient failure: keep polling until the deadline.
		} else if entry != nil {
			if entry.Status.StatusStr == "error" {
				return Result{State: StateError, Message: "engine reported error for prompt " + promptID}, nil
			}
			if entry.Status.Completed {
				if out := c.firstOutputURL(entry); out != "" {
					return Result{State: StateCompleted, OutputURL: out}, nil
				}
				return Result{State: StateError, Message: "engine completed without output image"}, nil
			}
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchHistory(ctx context.Context, promptID string) (*historyEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("history: http %d", resp.StatusCode)
	}
	var payload map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	entry, ok := payload[promptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// firstOutputURL scans every output node and picks the first one exposing a
// non-empty image list. Terminal node ids differ per graph, so no fixed id is
// assumed.
func (c *Client) firstOutputURL(entry *historyEntry) string {
	for _, output := range entry.Outputs {
		if len(output.Images) == 0 {
			continue
		}
		img := output.Images[0]
		q := url.Values{}
		q.Set("filename", img.Filename)
		q.Set("subfolder", img.Subfolder)
		imgType := img.Type
		if imgType == "" {
			imgType = "output"
		}
		q.Set("type", imgType)
		return c.baseURL + "/view?" + q.Encode()
	}
	return ""
}

// CheckStatus probes the engine's stats endpoint with a short timeout. Used as
// a precondition gate before any record is created.
func (c *Client) CheckStatus(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return Status{Online: false, Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{Online: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{Online: false, Error: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	var stats struct {
		System struct {
			Version string `json:"comfyui_version"`
		} `json:"system"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	return Status{Online: true, Version: stats.System.Version}
}
