package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teilomillet/wave/config"
	"go.uber.org/zap"
)

// New builds the provider named name from its configuration. Missing
// credentials do not fail construction; the provider reports itself
// unavailable instead.
func New(ctx context.Context, name string, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	client := &http.Client{}

	switch cfg.Type {
	case "hyperclova":
		return NewHyperCLOVA(name, cfg, client), nil
	case "openai", "ollama":
		return NewOpenAICompatible(name, cfg, client), nil
	case "gollm":
		return NewGollm(name, cfg)
	case "ark":
		return NewArk(ctx, name, cfg)
	case "gemini":
		return NewGemini(ctx, name, cfg)
	default:
		logger.Error("unknown provider type",
			zap.String("provider", name),
			zap.String("type", cfg.Type),
		)
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
