package domain

import "time"

// Job is the queue-path lifecycle record. Unlike refinements, jobs are created
// eagerly by the intake endpoint and processed later by an explicit process
// call or the worker.
type Job struct {
	ID             string
	Prompt         string
	NegativePrompt string
	InputImageURL  string
	OutputImageURL string
	ErrorMessage   string
	ParamsJSON     []byte
	Status         Status
	// ClientJobID is the caller's own identifier, echoed back in webhooks in
	// preference to the internal id.
	ClientJobID string
	WebhookURL  string
	// Webhook delivery bookkeeping is orthogonal to Status: a completed job
	// may have WebhookSent false if the single delivery attempt failed.
	WebhookSent   bool
	WebhookSentAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Outcome is the terminal result of a processed job or refinement, carried to
// the notifier.
type Outcome struct {
	Status       Status // StatusCompleted or StatusError
	OutputURL    string
	ErrorMessage string
}
