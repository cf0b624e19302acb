// Package llm wraps the configured text-generation providers behind one Generator interface.
package llm

import (
	"context"
	"errors"
	"strings"

	appcfg "github.com/rationable/api/internal/config"
)

var (
	ErrNoProvider    = errors.New("no AI provider is configured")
	ErrEmptyResponse = errors.New("empty response from AI")
	errNilProvider   = errors.New("AI provider is nil")
	errNoAPIKey      = errors.New("AI provider api key is empty")
)

const defaultMaxTokens = 1024

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. Temperature is honored by the providers whose API
// exposes it and ignored otherwise.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Prompt builds a single-turn request.
func Prompt(system, user string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: user}}}
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// Generator produces a completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// New builds the generator for a provider entry.
func New(provider *appcfg.AIProvider) (Generator, error) {
	if provider == nil {
		return nil, errNilProvider
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, errNoAPIKey
	}
	switch provider.Type {
	case "openai-compatible":
		return newCompatible(provider), nil
	case "gemini":
		return newGemini(provider)
	default:
		return newJetify(provider)
	}
}

// Task names a kind of generation; each may be pinned to its own provider and model.
type Task string

const (
	TaskEmoji    Task = "emoji"
	TaskCriteria Task = "criteria"
	TaskOptions  Task = "options"
	TaskForward  Task = "forward"
	TaskRealtime Task = "realtime"
)

// Router resolves the generator that serves a task.
type Router struct {
	cfg   appcfg.AIConfig
	build func(*appcfg.AIProvider) (Generator, error)
}

func NewRouter(cfg appcfg.AIConfig) *Router {
	return &Router{cfg: cfg, build: New}
}

func (r *Router) assignment(task Task) *appcfg.AIModelAssignment {
	switch task {
	case TaskEmoji:
		return r.cfg.EmojiModel
	case TaskCriteria:
		return r.cfg.CriteriaModel
	case TaskOptions:
		return r.cfg.OptionsModel
	case TaskForward:
		return r.cfg.ForwardModel
	case TaskRealtime:
		return r.cfg.RealtimeModel
	}
	return nil
}

// For returns the generator for task. Realtime requests only resolve to an explicitly
// assigned provider, since an offline model cannot answer them.
func (r *Router) For(task Task) (Generator, error) {
	return r.resolve(task, r.assignment(task))
}

// ForModel is For with a per-call model override on the task's provider. An empty model
// keeps the assignment's.
func (r *Router) ForModel(task Task, model string) (Generator, error) {
	a := r.assignment(task)
	if model = strings.TrimSpace(model); model != "" {
		override := appcfg.AIModelAssignment{Model: model}
		if a != nil {
			override.ProviderID = a.ProviderID
		}
		a = &override
	}
	return r.resolve(task, a)
}

func (r *Router) resolve(task Task, a *appcfg.AIModelAssignment) (Generator, error) {
	if task == TaskRealtime && (a == nil || strings.TrimSpace(a.ProviderID) == "") {
		return nil, ErrNoProvider
	}
	provider := SelectProvider(r.cfg, a)
	if provider == nil {
		return nil, ErrNoProvider
	}
	return r.build(provider)
}

// SelectProvider picks the enabled provider named by the assignment, or the first enabled
// provider, and applies the assignment's model override.
func SelectProvider(cfg appcfg.AIConfig, assignment *appcfg.AIModelAssignment) *appcfg.AIProvider {
	var providerID, overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider appcfg.AIProvider) *appcfg.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range cfg.Providers {
			if provider.Enabled && strings.TrimSpace(provider.ID) == providerID {
				return pick(provider)
			}
		}
	}
	for _, provider := range cfg.Providers {
		if provider.Enabled {
			return pick(provider)
		}
	}
	return nil
}
