package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"pdfrenamer/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// ErrNoProvider is returned when neither the preferred nor the fallback
// provider could be constructed.
var ErrNoProvider = errors.New("no summarization provider available")

var defaultModelNames = map[string]string{
	"openai": "gpt-4o-mini",
	"claude": "claude-3-5-haiku-latest",
	"gemini": "gemini-2.0-flash",
}

// chatModelFactory builds a chat model for one provider. Tests replace it.
var chatModelFactory = newChatModel

func newChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig) (model.BaseChatModel, error) {
	if strings.TrimSpace(provCfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %s: api key not configured", provider)
	}
	modelName := modelNameFor(provider, provCfg)

	switch provider {
	case "openai":
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return cm, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
		if err != nil {
			return nil, err
		}
		return cm, nil
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		cm, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 64,
		})
		if err != nil {
			return nil, err
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

func modelNameFor(provider string, provCfg config.ProviderConfig) string {
	if provCfg.Model != "" {
		return provCfg.Model
	}
	return defaultModelNames[provider]
}

// Loader lazily builds the process-wide summarization model. The model is
// built at most once and never invalidated; a construction error is cached
// the same way.
type Loader struct {
	cfg *config.Config

	once     sync.Once
	model    model.BaseChatModel
	identity string
	err      error
}

// NewLoader returns a loader for the model section of cfg.
func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load returns the shared chat model, building it on first use.
func (l *Loader) Load(ctx context.Context) (model.BaseChatModel, error) {
	l.once.Do(func() {
		l.model, l.identity, l.err = l.build(ctx)
	})
	return l.model, l.err
}

// Identity names the loaded provider and model, e.g. "openai/gpt-4o-mini".
// It is empty until Load succeeds.
func (l *Loader) Identity() string {
	return l.identity
}

// build tries the preferred (accelerated) provider first and falls back to
// the general-purpose one.
func (l *Loader) build(ctx context.Context) (model.BaseChatModel, string, error) {
	if l.cfg == nil {
		return nil, "", errors.New("config required")
	}
	var candidates []string
	for _, name := range []string{l.cfg.Model.Preferred, l.cfg.Model.Fallback} {
		if name == "" || (len(candidates) > 0 && candidates[0] == name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return nil, "", ErrNoProvider
	}

	var errs []error
	for _, name := range candidates {
		provCfg, ok := l.cfg.Providers[name]
		if !ok {
			errs = append(errs, fmt.Errorf("provider %s not configured", name))
			continue
		}
		cm, err := chatModelFactory(ctx, name, provCfg)
		if err != nil {
			log.Printf("model loader: provider %s unavailable: %v", name, err)
			errs = append(errs, err)
			continue
		}
		identity := name + "/" + modelNameFor(name, provCfg)
		log.Printf("model loader: using %s", identity)
		return cm, identity, nil
	}
	return nil, "", fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}
