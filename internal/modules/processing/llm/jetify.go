package llm

import (
	"context"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	appcfg "github.com/rationable/api/internal/config"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// jetifyGenerator serves the "openai" and "anthropic" provider types through the jetify
// model abstraction.
type jetifyGenerator struct {
	model   jetapi.LanguageModel
	modelID string
}

func newJetify(provider *appcfg.AIProvider) (*jetifyGenerator, error) {
	apiKey := strings.TrimSpace(provider.APIKey)
	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if provider.Type == "anthropic" {
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return &jetifyGenerator{
			model:   jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)),
			modelID: modelID,
		}, nil
	}

	if modelID == "" {
		modelID = defaultOpenAIModel
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return &jetifyGenerator{
		model:   jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)),
		modelID: modelID,
	}, nil
}

func (g *jetifyGenerator) Model() string { return g.modelID }

func (g *jetifyGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildMessages(req),
		jetai.WithModel(g.model),
		jetai.WithMaxOutputTokens(req.maxTokens()),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func buildMessages(req Request) []jetapi.Message {
	messages := make([]jetapi.Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: req.System})
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, &jetapi.AssistantMessage{
				Content: []jetapi.ContentBlock{&jetapi.TextBlock{Text: m.Content}},
			})
			continue
		}
		messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(m.Content)})
	}
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
