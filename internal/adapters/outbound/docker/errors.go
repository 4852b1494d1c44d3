package docker

import "fmt"

// NotFoundError is returned when the daemon reports a missing object.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found: %v", e.Kind, e.ID, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func (e *NotFoundError) IsNotFound() {}
