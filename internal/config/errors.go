package config

import "errors"

var (
	ErrInsecureNotAcknowledged = errors.New("insecure-mount copies real secrets into the sandbox and must be acknowledged")
	ErrUnknownSecretStrategy   = errors.New("unknown secret strategy")
	ErrDurationTooShort        = errors.New("duration below minimum")
	ErrInvalidValue            = errors.New("invalid value")
)
