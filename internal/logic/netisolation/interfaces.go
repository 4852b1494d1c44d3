package netisolation

import "context"

// Runtime is the port for container-runtime network operations.
type Runtime interface {
	CreateNetworkCommand(ctx context.Context, spec NetworkSpec) (string, error)
	RemoveNetworkCommand(ctx context.Context, id string) error
	ListNetworksQuery(ctx context.Context, selector map[string]string) ([]Network, error)
}

// notFound is a private interface for checking "not found" errors
// without importing the adapter package.
type notFound interface {
	IsNotFound()
}
