package replay

import (
	"errors"

	"github.com/skillcoder/podreplay/internal/logic/failure"
)

var (
	ErrImageBlocked     = errors.New("image blocked by security gate")
	ErrScanRequired     = errors.New("vulnerability scan unavailable and policy is fail-closed")
	ErrNotManaged       = errors.New("container is not managed by podreplay")
	ErrContainerMissing = failure.New("replay container not found", nil)
)

func isNotFound(err error) bool {
	var target notFound

	return errors.As(err, &target)
}
