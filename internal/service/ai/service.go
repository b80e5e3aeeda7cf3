package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
	"github.com/zhouzirui/folio-assist/backend/internal/service/completion"
)

// ErrEmptyResponse is returned when the chain yields no message at all.
var ErrEmptyResponse = errors.New("chat model returned no message")

// Service runs a single stateless completion through an eino chain.
type Service struct {
	provider string
	chain    compose.Runnable[string, *schema.Message]
}

// NewService picks the chat model for the configured provider and compiles the chain.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, cfg.Widget.Provider, chatModel)
}

// NewChatModel returns the OpenAI-compatible client or the Ark model.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	switch cfg.Widget.Provider {
	case config.ProviderArk:
		return cfg.Ark.NewChatModel(ctx)
	case config.ProviderOpenAI, "":
		if !cfg.Widget.Enabled() {
			return nil, errors.New("completion credential missing, set COMPLETION_API_KEY")
		}
		return completion.NewClient(cfg.Widget), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Widget.Provider)
	}
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, provider string, chatModel model.BaseChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}

	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(buildMessages))
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &Service{
		provider: provider,
		chain:    runnable,
	}, nil
}

// buildMessages sends the submitted text as the entire history: no system
// prompt, no earlier turns.
func buildMessages(_ context.Context, text string) ([]*schema.Message, error) {
	return []*schema.Message{schema.UserMessage(text)}, nil
}

// Complete returns the trimmed completion for text.
func (s *Service) Complete(ctx context.Context, text string) (string, error) {
	response, err := s.chain.Invoke(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to run completion chain: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(response.Content)
	log.Debug().Str("provider", s.provider).Int("length", len(content)).Msg("[ai] completion generated")
	return content, nil
}

// Provider names the backing model provider.
func (s *Service) Provider() string {
	return s.provider
}
