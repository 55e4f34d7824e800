// Package llm backs agent speech with an OpenAI-compatible chat model.
// Behaviors treat the responder as best-effort: any failure falls back
// to their template content, so the simulation runs fine offline.
package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim"
)

const defaultModel = "gpt-4o-mini"

// ChatResponder implements sim.Responder on a chat completion endpoint.
type ChatResponder struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
	persona     string
	logger      *logrus.Entry
}

// New builds a responder from the run-wide config plus one agent's
// persona prompt. Returns an error when no API key is available.
func New(config sim.LLMConfig, model, personaPrompt string) (*ChatResponder, error) {
	keyEnv := config.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, errors.New("llm: no API key in " + keyEnv)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if model == "" {
		model = config.Model
	}
	if model == "" {
		model = defaultModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.8
	}
	maxTokens := int64(config.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 120
	}
	return &ChatResponder{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		persona:     personaPrompt,
		logger:      logrus.WithField("component", "llm"),
	}, nil
}

// Respond generates one short utterance. systemPrompt overrides the
// persona prompt when non-empty.
func (r *ChatResponder) Respond(ctx context.Context, systemPrompt, prompt string) (string, error) {
	system := systemPrompt
	if system == "" {
		system = r.persona
	}
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.F(r.model),
		Messages:    openai.F(messages),
		Temperature: openai.F(r.temperature),
		MaxTokens:   openai.F(r.maxTokens),
	})
	if err != nil {
		r.logger.Debugf("completion failed: %v", err)
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("llm: empty completion")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// BuildResponders creates a responder per agent that asked for one.
// Failures disable the responder for that agent rather than the run.
func BuildResponders(config sim.LLMConfig, agents []sim.AgentConfig) map[string]sim.Responder {
	if !config.Enabled {
		return nil
	}
	responders := make(map[string]sim.Responder)
	for _, agent := range agents {
		if !agent.LLM.Enabled {
			continue
		}
		responder, err := New(config, agent.LLM.Model, agent.LLM.Prompt)
		if err != nil {
			logrus.WithField("component", "llm").Warnf("responder for %s disabled: %v", agent.ID, err)
			continue
		}
		responders[agent.ID] = responder
	}
	return responders
}
