package isolation

import "errors"

var (
	ErrInvalidMemory = errors.New("invalid memory limit")
	ErrInvalidCPUs   = errors.New("invalid cpu count")
)
