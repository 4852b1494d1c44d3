package app

import (
	"fmt"
	"log/slog"

	"github.com/skillcoder/podreplay/internal/config"
	"github.com/skillcoder/podreplay/internal/logic/sanitizer"
)

// newSecretStrategy maps the configured strategy name to its implementation.
// Config validation has already enforced the insecure-mount acknowledgement.
func newSecretStrategy(
	logger *slog.Logger,
	name string,
	prompter sanitizer.SecretPrompter,
	fetcher sanitizer.SecretFetcher,
) (sanitizer.SecretStrategy, error) {
	switch name {
	case sanitizer.StrategyPlaceholder, "":
		return sanitizer.Placeholder{}, nil
	case sanitizer.StrategyPrompt:
		return sanitizer.NewPrompt(prompter), nil
	case sanitizer.StrategyInsecureMount:
		logger.Warn("insecure-mount secret strategy enabled: real secret values will be copied into local containers")

		return sanitizer.NewInsecureMount(logger, fetcher), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSecretStrategy, name)
	}
}
