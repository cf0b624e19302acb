package analysis

import (
	"bytes"
	"context"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/processing/llm"
)

// Router resolves the LLM serving a task.
type Router interface {
	For(task llm.Task) (llm.Generator, error)
}

// LLMGenerator implements Generator with prompted completions.
type LLMGenerator struct {
	router Router
}

func NewLLMGenerator(router Router) *LLMGenerator {
	return &LLMGenerator{router: router}
}

func (g *LLMGenerator) complete(ctx context.Context, task llm.Task, system, prompt string, maxTokens int) (string, error) {
	gen, err := g.router.For(task)
	if err != nil {
		return "", err
	}
	req := llm.Prompt(system, prompt)
	req.MaxTokens = maxTokens
	return gen.Generate(ctx, req)
}

func (g *LLMGenerator) Emoji(ctx context.Context, dilemma string) (string, error) {
	raw, err := g.complete(ctx, llm.TaskEmoji, emojiSystemPrompt, dilemma, 32)
	if err != nil {
		return "", err
	}
	return parseEmoji(raw)
}

func (g *LLMGenerator) Criteria(ctx context.Context, dilemma string, n int, lang string) ([]string, error) {
	raw, err := g.complete(ctx, llm.TaskCriteria, criteriaSystemPrompt, buildCriteriaPrompt(dilemma, n, lang), 400)
	if err != nil {
		return nil, err
	}
	return parseCriteria(raw)
}

func (g *LLMGenerator) Options(ctx context.Context, dilemma string, criteria []models.Criterion, n int, lang string) (*models.Result, error) {
	raw, err := g.complete(ctx, llm.TaskOptions, optionsSystemPrompt, buildOptionsPrompt(dilemma, criteria, n, lang), 2048)
	if err != nil {
		return nil, err
	}
	return parseResult(raw)
}

func parseEmoji(raw string) (string, error) {
	var reply struct {
		Emoji string `json:"emoji"`
	}
	candidate := raw
	if err := llm.UnmarshalJSON(raw, &reply); err == nil && reply.Emoji != "" {
		candidate = reply.Emoji
	}
	fields := strings.Fields(strings.Trim(strings.TrimSpace(candidate), `"'`+"`"))
	if len(fields) == 0 {
		return "", llm.ErrEmptyResponse
	}
	emoji := fields[0]
	for _, r := range emoji {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return "", llm.ErrInvalidJSON
		}
	}
	if runes := []rune(emoji); len(runes) > 8 {
		emoji = string(runes[:8])
	}
	return emoji, nil
}

func parseCriteria(raw string) ([]string, error) {
	var names []string
	if err := llm.UnmarshalJSON(raw, &names); err == nil {
		return names, nil
	}
	var objects []struct {
		Name string `json:"name"`
	}
	if err := llm.UnmarshalJSON(raw, &objects); err == nil {
		for _, o := range objects {
			names = append(names, o.Name)
		}
		return names, nil
	}
	var wrapped struct {
		Criteria []struct {
			Name string `json:"name"`
		} `json:"criteria"`
	}
	if err := llm.UnmarshalJSON(raw, &wrapped); err != nil {
		return nil, err
	}
	for _, o := range wrapped.Criteria {
		names = append(names, o.Name)
	}
	return names, nil
}

// flexScore accepts 82, 82.4 and "82".
type flexScore int

func (s *flexScore) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(string(b), "%"), 64)
	if err != nil {
		return err
	}
	*s = flexScore(math.Round(f))
	return nil
}

type optionsReply struct {
	Recommendation string `json:"recommendation"`
	Description    string `json:"description"`
	Breakdown      []struct {
		Option      string    `json:"option"`
		Name        string    `json:"name"`
		Pros        []string  `json:"pros"`
		Cons        []string  `json:"cons"`
		Score       flexScore `json:"score"`
		ImageQuery  string    `json:"imageQuery"`
		ImageQuery2 string    `json:"image_query"`
	} `json:"breakdown"`
}

func parseResult(raw string) (*models.Result, error) {
	var reply optionsReply
	if err := llm.UnmarshalJSON(raw, &reply); err != nil {
		return nil, err
	}
	out := &models.Result{
		Recommendation: strings.TrimSpace(reply.Recommendation),
		Description:    strings.TrimSpace(reply.Description),
		Breakdown:      make([]models.BreakdownItem, 0, len(reply.Breakdown)),
	}
	for _, b := range reply.Breakdown {
		option := b.Option
		if option == "" {
			option = b.Name
		}
		query := b.ImageQuery
		if query == "" {
			query = b.ImageQuery2
		}
		out.Breakdown = append(out.Breakdown, models.BreakdownItem{
			Option:     option,
			Pros:       b.Pros,
			Cons:       b.Cons,
			Score:      int(b.Score),
			ImageQuery: query,
		})
	}
	return out, nil
}
