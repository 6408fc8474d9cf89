package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"refinery/internal/domain"
	"refinery/internal/infra/metrics"
)

// Options configures the completion notifier.
type Options struct {
	// DefaultURL receives callbacks for jobs without their own webhook URL.
	DefaultURL string
	// APIKey is sent as X-API-Key to the default endpoint only. Custom
	// endpoints live in a different trust domain and never see it.
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Notifier delivers terminal job outcomes to outbound webhook targets. One
// attempt per job, success or failure; retries are a deliberate external
// action, never automatic.
type Notifier struct {
	defaultURL string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewNotifier(opts Options) *Notifier {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Notifier{
		defaultURL: opts.DefaultURL,
		apiKey:     opts.APIKey,
		httpClient: client,
		logger:     opts.Logger,
	}
}

type payload struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	OutputImageURL string `json:"output_image_url,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ProcessedAt    string `json:"processed_at"`
}

// Notify sends the terminal outcome of a job to its webhook target and
// reports whether the delivery itself succeeded. The job's own status is
// untouched either way.
func (n *Notifier) Notify(ctx context.Context, job *domain.Job, outcome domain.Outcome) bool {
	target := job.WebhookURL
	withKey := false
	if target == "" {
		target = n.defaultURL
		withKey = true
	}
	if target == "" {
		return false
	}

	jobID := job.ClientJobID
	if jobID == "" {
		jobID = job.ID
	}
	body, err := json.Marshal(payload{
		JobID:          jobID,
		Status:         string(outcome.Status),
		OutputImageURL: outcome.OutputURL,
		ErrorMessage:   outcome.ErrorMessage,
		ProcessedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "refinery/1.0")
	if withKey && n.apiKey != "" {
		req.Header.Set("X-API-Key", n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Str("job_id", job.ID).Str("target", target).Msg("notify: webhook delivery failed")
		metrics.WebhookDelivery("failed")
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated
	if ok {
		n.logger.Info().Str("job_id", job.ID).Str("target", target).Msg("notify: webhook delivered")
		metrics.WebhookDelivery("sent")
	} else {
		n.logger.Error().Int("status", resp.StatusCode).Str("job_id", job.ID).Str("target", target).Msg("notify: webhook rejected")
		metrics.WebhookDelivery("failed")
	}
	return ok
}
