package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rationable/api/internal/models"
)

// Phase is the visible progress of a run. Runs move strictly forward through
// generating-emoji, generating-criteria and analyzing-options to done; any failure drops
// back to idle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseEmoji    Phase = "generating-emoji"
	PhaseCriteria Phase = "generating-criteria"
	PhaseOptions  Phase = "analyzing-options"
	PhaseDone     Phase = "done"
)

type EventType string

const (
	EventPhase     EventType = "phase"
	EventEmoji     EventType = "emoji"
	EventCriterion EventType = "criterion"
	EventResult    EventType = "result"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Event is one progress notification. Data is a Phase, an emoji string, a
// models.Criterion, a *models.Result, an ErrorPayload or the final *models.DecisionModel.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

type ErrorPayload struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}

// Observer receives events synchronously on the run's goroutine.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Request starts a run. Supplying criteria selects the classic flow, which skips criteria
// generation.
type Request struct {
	Dilemma       string             `json:"dilemma"                  binding:"required"`
	Criteria      []models.Criterion `json:"criteria,omitempty"`
	CriteriaCount int                `json:"criteria_count,omitempty"`
	Language      string             `json:"language,omitempty"`
	WorkspaceID   *string            `json:"workspace_id,omitempty"`
	OwnerID       string             `json:"-"`
}

// ReanalyzeRequest reruns option scoring of an existing decision with edited criteria.
type ReanalyzeRequest struct {
	Criteria []models.Criterion `json:"criteria" binding:"required"`
	Language string             `json:"language,omitempty"`
}

var (
	ErrEmptyDilemma   = errors.New("dilemma is required")
	ErrDilemmaTooLong = fmt.Errorf("dilemma must be at most %d characters", maxDilemmaRunes)
	ErrNoCriteria     = errors.New("no criteria")
	ErrNoOptions      = errors.New("no options were produced")
	ErrNoStore        = errors.New("decision storage is not configured")
)

// PhaseError reports which phase a run failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }

func (e *PhaseError) Unwrap() error { return e.Err }

// Generator produces the content of each phase.
type Generator interface {
	Emoji(ctx context.Context, dilemma string) (string, error)
	Criteria(ctx context.Context, dilemma string, n int, lang string) ([]string, error)
	Options(ctx context.Context, dilemma string, criteria []models.Criterion, n int, lang string) (*models.Result, error)
}

// Enricher attaches images and links to a result. It is best effort and never fails a run.
type Enricher interface {
	Enrich(ctx context.Context, dilemma string, r *models.Result)
}

// Store persists finished decisions.
type Store interface {
	Create(ctx context.Context, d *models.DecisionModel) error
	Get(ctx context.Context, id, userID string) (*models.DecisionModel, error)
}
