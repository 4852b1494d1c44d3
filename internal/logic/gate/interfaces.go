package gate

import "context"

// Scanner runs the external vulnerability scanner against an image.
type Scanner interface {
	Scan(ctx context.Context, imageRef string) (*Report, error)
}

// Installer checks for and installs the scanner binary.
type Installer interface {
	Available(ctx context.Context) bool
	Install(ctx context.Context) error
}
