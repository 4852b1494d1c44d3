package httpserver

import "errors"

var (
	ErrNotReady = errors.New("server is not ready")

	errBadRequest      = errors.New("bad request")
	errSourceDisabled  = errors.New("manifest source not configured")
	errMissingPodName  = errors.New("namespace and pod are required")
	errAmbiguousSource = errors.New("set either namespace/pod or manifest, not both")
)
