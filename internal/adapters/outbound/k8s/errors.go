package k8s

import "errors"

// TooManyRequestsError represents a "too many requests" case that is not an error.
type TooManyRequestsError struct{}

func (e *TooManyRequestsError) Error() string {
	return "too many requests"
}

func (e *TooManyRequestsError) IsTooManyRequests() {}

var errTooManyRequests = &TooManyRequestsError{}

// NotFoundError is returned when a pod, secret or secret key does not exist.
type NotFoundError struct {
	what string
}

func (e *NotFoundError) Error() string {
	return e.what + " not found"
}

func (e *NotFoundError) IsNotFound() {}

var (
	errPodNotFound       = &NotFoundError{what: "pod"}
	errSecretNotFound    = &NotFoundError{what: "secret"}
	errSecretKeyNotFound = &NotFoundError{what: "secret key"}
)

var (
	errMetricsUnavailable = errors.New("metrics client not configured")
	errEmptyManifest      = errors.New("manifest is empty")
	errNotAPod            = errors.New("manifest is not a Pod")
)
