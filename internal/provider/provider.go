package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"chatgate/internal/config"
)

// ErrNotConfigured reports a missing API key for the provider a model
// belongs to.
var ErrNotConfigured = errors.New("provider api key not configured")

const claudeMaxTokens = 3000

// Factory builds and caches one chat model per model id.
type Factory struct {
	providers map[string]config.ProviderConfig

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

func NewFactory(providers map[string]config.ProviderConfig) *Factory {
	return &Factory{
		providers: providers,
		models:    make(map[string]model.BaseChatModel),
	}
}

// Generate runs one completion against the named model and returns the
// reply text.
func (f *Factory) Generate(ctx context.Context, modelID string, messages []*schema.Message) (string, error) {
	if modelID == "" {
		modelID = DefaultModel
	}
	chatModel, err := f.chatModel(ctx, modelID)
	if err != nil {
		return "", err
	}
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", modelID, err)
	}
	return resp.Content, nil
}

func (f *Factory) chatModel(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	f.mu.Lock()
	if m, ok := f.models[modelID]; ok {
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	m, err := f.build(ctx, modelID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.models[modelID]; ok {
		return existing, nil
	}
	f.models[modelID] = m
	return m, nil
}

func (f *Factory) build(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	// Unknown model ids fall through to the openai provider.
	providerName := "openai"
	if entry, ok := Lookup(modelID); ok {
		providerName = entry.Provider
	}
	provCfg, ok := f.providers[providerName]
	if !ok || provCfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, providerName)
	}

	switch providerName {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelID,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelID,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelID,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", providerName)
	}
}
