package gate

import "errors"

var (
	ErrScannerUnavailable = errors.New("scanner unavailable")
	ErrInstallSkipped     = errors.New("scanner auto-install disabled")
)
