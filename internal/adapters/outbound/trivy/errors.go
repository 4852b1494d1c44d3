package trivy

import "errors"

var (
	ErrNotInstalled        = errors.New("trivy binary not found")
	ErrUnsupportedPlatform = errors.New("automatic trivy install is not supported on this platform")
)
