package domain

import "time"

// Status enumerates lifecycle states shared by refinements and queue jobs.
// Transitions are monotonic: pending -> processing -> completed|error.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Refinement is the lifecycle record of one post-process operation applied to
// a photo.
type Refinement struct {
	ID             string
	PhotoID        string
	ProcessType    ProcessType
	Status         Status
	InputImageURL  string
	OutputImageURL string
	ErrorMessage   string
	// EnginePromptID is the engine's own identifier for the submitted graph,
	// kept so polling can be resumed out of band.
	EnginePromptID string
	ParamsJSON     []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Photo is the immutable subject a post-process operation applies to.
type Photo struct {
	ID             string
	RequestID      string
	PhotoURL       string
	Prompt         string
	NegativePrompt string
	CreatedAt      time.Time
}
