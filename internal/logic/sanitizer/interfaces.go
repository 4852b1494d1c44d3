package sanitizer

import (
	"context"

	"github.com/skillcoder/podreplay/internal/logic/podspec"
)

// SecretStrategy materializes a secret reference into a literal value.
// New strategies are added by implementing this interface.
type SecretStrategy interface {
	Name() string
	Resolve(ctx context.Context, req SecretRequest) (string, error)
}

// SecretRequest describes one secret-backed environment entry.
type SecretRequest struct {
	Namespace string
	PodName   string
	EnvName   string
	Ref       podspec.KeyRef
}

// SecretPrompter asks the operator for a secret value with masked input.
type SecretPrompter interface {
	PromptSecret(ctx context.Context, label string) (string, error)
}

// SecretFetcher reads a secret value from the cluster.
type SecretFetcher interface {
	GetSecretValueQuery(
		ctx context.Context,
		namespace,
		name,
		key string,
	) (string, error)
}
