package sanitizer

import "errors"

var (
	ErrResolveSecret    = errors.New("resolve secret")
	ErrEmptySecretValue = errors.New("secret value is empty")
)
