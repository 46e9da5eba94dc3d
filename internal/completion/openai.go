package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel       = openai.GPT4o
	DefaultMaxTokens   = 500
	DefaultTemperature = float32(0.7)
	DefaultMaxHistory  = 40

	detectionModel = openai.GPT4oMini
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	// MaxHistory caps how many of the most recent messages are sent upstream.
	MaxHistory int
	// DetectLanguage enables a classification call on the latest user turn
	// and a localized persona.
	DetectLanguage bool
}

type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

func (s *OpenAI) Complete(ctx context.Context, messages []Message) (*Result, error) {
	language := ""
	if s.cfg.DetectLanguage {
		language = s.detectLanguage(ctx, lastUserContent(messages))
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    s.buildMessages(SystemPrompt(language), messages),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		logrus.Errorf("OpenAI chat completion failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, ErrEmptyAnswer)
	}

	logrus.Debugf("OpenAI usage: prompt=%d completion=%d", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return &Result{
		Text:     resp.Choices[0].Message.Content,
		Language: language,
	}, nil
}

// buildMessages prepends the persona, drops system turns supplied by the
// caller and keeps only the most recent MaxHistory turns.
func (s *OpenAI) buildMessages(systemPrompt string, history []Message) []openai.ChatCompletionMessage {
	var turns []Message
	for _, m := range history {
		if m.Role == openai.ChatMessageRoleSystem {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) > s.cfg.MaxHistory {
		turns = turns[len(turns)-s.cfg.MaxHistory:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return messages
}

// detectLanguage never fails; any problem falls back to DefaultLanguage.
func (s *OpenAI) detectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: detectionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: detectionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		logrus.Warnf("language detection failed, using %s: %v", DefaultLanguage, err)
		return DefaultLanguage
	}
	if len(resp.Choices) == 0 {
		return DefaultLanguage
	}
	return NormalizeLanguage(resp.Choices[0].Message.Content)
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}
