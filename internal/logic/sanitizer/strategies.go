package sanitizer

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	StrategyPrompt        = "prompt"
	StrategyPlaceholder   = "placeholder"
	StrategyInsecureMount = "insecure-mount"
)

// Placeholder synthesizes a deterministic non-secret value.
type Placeholder struct{}

func (Placeholder) Name() string {
	return StrategyPlaceholder
}

func (Placeholder) Resolve(_ context.Context, req SecretRequest) (string, error) {
	return PlaceholderValue(req.Ref.Name, req.Ref.Key), nil
}

// PlaceholderValue returns PLACEHOLDER_{name}_{key}.
func PlaceholderValue(name, key string) string {
	return "PLACEHOLDER_" + name + "_" + key
}

// Prompt asks the operator for every secret value.
type Prompt struct {
	prompter SecretPrompter
}

func NewPrompt(prompter SecretPrompter) *Prompt {
	return &Prompt{prompter: prompter}
}

func (p *Prompt) Name() string {
	return StrategyPrompt
}

func (p *Prompt) Resolve(ctx context.Context, req SecretRequest) (string, error) {
	label := fmt.Sprintf("Value for %s (secret %s/%s, key %s)", req.EnvName, req.Namespace, req.Ref.Name, req.Ref.Key)

	value, err := p.prompter.PromptSecret(ctx, label)
	if err != nil {
		return "", fmt.Errorf("prompt secret: %w", err)
	}

	return value, nil
}

// InsecureMount copies the real secret value from the cluster into the local
// container. Only constructed after an explicit double opt-in.
type InsecureMount struct {
	logger  *slog.Logger
	fetcher SecretFetcher
}

func NewInsecureMount(logger *slog.Logger, fetcher SecretFetcher) *InsecureMount {
	return &InsecureMount{
		logger:  logger,
		fetcher: fetcher,
	}
}

func (m *InsecureMount) Name() string {
	return StrategyInsecureMount
}

func (m *InsecureMount) Resolve(ctx context.Context, req SecretRequest) (string, error) {
	m.logger.WarnContext(ctx, "copying real secret value into local replay (insecure)",
		"pod", req.PodName,
		"namespace", req.Namespace,
		"secret", req.Ref.Name,
		"key", req.Ref.Key,
		"env", req.EnvName,
	)

	value, err := m.fetcher.GetSecretValueQuery(ctx, req.Namespace, req.Ref.Name, req.Ref.Key)
	if err != nil {
		return "", fmt.Errorf("fetch secret %s/%s: %w", req.Namespace, req.Ref.Name, err)
	}

	return value, nil
}
