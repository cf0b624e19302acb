package analysis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/content/decision"
	"github.com/rationable/api/internal/pkg/taskqueue"
)

type fakeGenerator struct {
	mu           sync.Mutex
	emoji        string
	criteria     []string
	result       models.Result
	emojiErr     error
	criteriaErr  error
	optionsErr   error
	criteriaCall int
	optionsCall  int
	lastCriteria []models.Criterion
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		emoji:    "🚗",
		criteria: []string{"Cost", "Reliability", " cost ", "Comfort", ""},
		result: models.Result{
			Recommendation: "",
			Description:    "Hybrids balance running cost and range.",
			Breakdown: []models.BreakdownItem{
				{Option: "Petrol", Pros: []string{"cheap upfront", " "}, Cons: []string{"fuel"}, Score: 55},
				{Option: "Hybrid", Pros: []string{"efficient"}, Cons: []string{"complex"}, Score: 140},
				{Option: " ", Score: 90},
				{Option: "Electric", Pros: []string{"quiet"}, Cons: []string{"range"}, Score: 71},
			},
		},
	}
}

func (g *fakeGenerator) Emoji(ctx context.Context, dilemma string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.emoji, g.emojiErr
}

func (g *fakeGenerator) Criteria(ctx context.Context, dilemma string, n int, lang string) ([]string, error) {
	g.mu.Lock()
	g.criteriaCall++
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.criteria, g.criteriaErr
}

func (g *fakeGenerator) Options(ctx context.Context, dilemma string, criteria []models.Criterion, n int, lang string) (*models.Result, error) {
	g.mu.Lock()
	g.optionsCall++
	g.lastCriteria = criteria
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.optionsErr != nil {
		return nil, g.optionsErr
	}
	r := g.result
	r.Breakdown = append([]models.BreakdownItem(nil), g.result.Breakdown...)
	return &r, nil
}

func (g *fakeGenerator) calls() (criteria, options int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.criteriaCall, g.optionsCall
}

type fakeStore struct {
	mu      sync.Mutex
	created []*models.DecisionModel
	rows    map[string]*models.DecisionModel
	err     error
}

func (s *fakeStore) Create(_ context.Context, d *models.DecisionModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	d.ID = "new-" + d.Dilemma
	s.created = append(s.created, d)
	return nil
}

func (s *fakeStore) Get(_ context.Context, id, userID string) (*models.DecisionModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok || d.OwnerID != userID {
		return nil, decision.ErrNotFound
	}
	return d, nil
}

type memoryTasks struct {
	mu    sync.Mutex
	tasks map[string]*taskqueue.Task
	dedup map[string]string
	seq   int
	trail map[string][]string
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{
		tasks: map[string]*taskqueue.Task{},
		dedup: map[string]string{},
		trail: map[string][]string{},
	}
}

func (m *memoryTasks) Enqueue(_ context.Context, taskType, ownerID string, _ interface{}, dedupKey string) (*taskqueue.Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.dedup[dedupKey]; ok {
		if t := m.tasks[id]; !t.Status.Finished() {
			cp := *t
			return &cp, false, nil
		}
	}
	m.seq++
	t := &taskqueue.Task{
		ID:        taskType + "-" + strconv.Itoa(m.seq),
		Type:      taskType,
		OwnerID:   ownerID,
		Status:    taskqueue.TaskPending,
		DedupKey:  dedupKey,
		CreatedAt: time.Now(),
	}
	m.tasks[t.ID] = t
	m.dedup[dedupKey] = t.ID
	cp := *t
	return &cp, true, nil
}

func (m *memoryTasks) Get(_ context.Context, id string) (*taskqueue.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, taskqueue.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTasks) Progress(_ context.Context, id, progress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	t.Status = taskqueue.TaskRunning
	t.Progress = progress
	m.trail[id] = append(m.trail[id], progress)
	return nil
}

func (m *memoryTasks) Complete(_ context.Context, id string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id].Status = taskqueue.TaskCompleted
	return nil
}

func (m *memoryTasks) Fail(_ context.Context, id, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id].Status = taskqueue.TaskFailed
	m.tasks[id].Error = msg
	return nil
}

// recorder collects events in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, e := range r.events {
		if e.Type == EventPhase {
			out = append(out, e.Data.(Phase))
		}
	}
	return out
}
