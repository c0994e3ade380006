package telegram

import "fmt"

// StatusError is returned when the Bot API answers with a non-200 status.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telegram: %s failed with status %d", e.Method, e.StatusCode)
}
