package handlers_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"refinery/internal/dispatch"
	"refinery/internal/domain"
	"refinery/internal/engine"
	"refinery/internal/http/handlers"
)

type memPhotos struct {
	photos map[string]*domain.Photo
}

func (m *memPhotos) GetByID(_ context.Context, id string) (*domain.Photo, error) {
	if p, ok := m.photos[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

type memRefinements struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Refinement
}

func newMemRefinements() *memRefinements {
	return &memRefinements{byID: map[string]*domain.Refinement{}}
}

func (m *memRefinements) Create(_ context.Context, r *domain.Refinement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = "ref-" + strconv.Itoa(m.seq)
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.byID[r.ID] = r
	return nil
}

func (m *memRefinements) MarkProcessing(_ context.Context, id string) error {
	return m.transition(id, domain.StatusProcessing, func(*domain.Refinement) {})
}

func (m *memRefinements) MarkCompleted(_ context.Context, id, outputURL, enginePromptID string) error {
	return m.transition(id, domain.StatusCompleted, func(r *domain.Refinement) {
		r.OutputImageURL = outputURL
		r.EnginePromptID = enginePromptID
	})
}

func (m *memRefinements) MarkError(_ context.Context, id, message string) error {
	return m.transition(id, domain.StatusError, func(r *domain.Refinement) {
		r.ErrorMessage = message
	})
}

func (m *memRefinements) transition(id string, to domain.Status, apply func(*domain.Refinement)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	apply(r)
	return nil
}

func (m *memRefinements) GetByID(_ context.Context, id string) (*domain.Refinement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memRefinements) ListByPhoto(_ context.Context, photoID string) ([]*domain.Refinement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Refinement
	for _, r := range m.byID {
		if r.PhotoID == photoID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memJobs struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Job
}

func newMemJobs() *memJobs {
	return &memJobs{byID: map[string]*domain.Job{}}
}

func (m *memJobs) Create(_ context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	j.ID = "job-" + strconv.Itoa(m.seq)
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	m.byID[j.ID] = j
	return nil
}

func (m *memJobs) MarkProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.StatusPending {
		return domain.ErrAlreadyProcessing
	}
	j.Status = domain.StatusProcessing
	return nil
}

func (m *memJobs) MarkCompleted(_ context.Context, id, outputURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	j.Status = domain.StatusCompleted
	j.OutputImageURL = outputURL
	return nil
}

func (m *memJobs) MarkError(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	j.Status = domain.StatusError
	j.ErrorMessage = message
	return nil
}

func (m *memJobs) MarkNotified(_ context.Context, id string, sent bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.WebhookSent = sent
	j.WebhookSentAt = &at
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.byID[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) List(context.Context) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Job, 0, len(m.byID))
	for _, j := range m.byID {
		out = append(out, j)
	}
	return out, nil
}

func (m *memJobs) ClaimPending(context.Context) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.byID {
		if j.Status == domain.StatusPending {
			j.Status = domain.StatusProcessing
			return j, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeEngine struct {
	online bool
	result engine.Result
}

func (f *fakeEngine) CheckStatus(context.Context) engine.Status {
	return engine.Status{Online: f.online}
}

func (f *fakeEngine) FetchImage(context.Context, string) ([]byte, error) {
	return []byte("png"), nil
}

func (f *fakeEngine) SubmitJob(_ context.Context, g engine.Graph, _ []byte) (string, error) {
	return "prompt-1", nil
}

func (f *fakeEngine) AwaitCompletion(context.Context, string, time.Duration) (engine.Result, error) {
	return f.result, nil
}

// chanNotifier signals each delivery so async tests can wait deterministically.
type chanNotifier struct {
	delivered chan domain.Outcome
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{delivered: make(chan domain.Outcome, 4)}
}

func (c *chanNotifier) Notify(_ context.Context, _ *domain.Job, outcome domain.Outcome) bool {
	c.delivered <- outcome
	return true
}

type appFixture struct {
	app      *handlers.App
	photos   *memPhotos
	refs     *memRefinements
	jobs     *memJobs
	engine   *fakeEngine
	notifier *chanNotifier
}

func newAppFixture() *appFixture {
	photos := &memPhotos{photos: map[string]*domain.Photo{
		"p1": {ID: "p1", RequestID: "req-1", PhotoURL: "http://img/p1.png", Prompt: "studio portrait"},
	}}
	refs := newMemRefinements()
	jobs := newMemJobs()
	eng := &fakeEngine{online: true, result: engine.Result{State: engine.StateCompleted, OutputURL: "http://eng/view?filename=out.png"}}
	notifier := newChanNotifier()

	logger := zerolog.Nop()
	app := &handlers.App{
		Photos:      photos,
		Refinements: refs,
		Jobs:        jobs,
		Engine:      eng,
		Dispatcher:  dispatch.NewOrchestrator(photos, refs, eng, time.Second, logger),
		Runner:      dispatch.NewRunner(jobs, eng, notifier, time.Second, logger),
		Logger:      logger,
	}
	return &appFixture{app: app, photos: photos, refs: refs, jobs: jobs, engine: eng, notifier: notifier}
}
