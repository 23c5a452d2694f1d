package helper

import "fmt"

// NewError wraps an error with the action that failed
func NewError(action string, err error) error {
	return fmt.Errorf("error %v: %w", action, err)
}
