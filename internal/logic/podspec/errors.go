package podspec

import (
	"errors"

	"github.com/skillcoder/podreplay/internal/logic/failure"
)

var (
	ErrInvalidSpec = failure.New("pod specification is missing a container or container image", nil)

	ErrUnresolvedReference = errors.New("environment entry still references external data")
	ErrIdentityNotStripped = errors.New("service account identity not stripped")
)
