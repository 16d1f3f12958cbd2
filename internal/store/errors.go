package store

import "fmt"

// PromptNotFoundError is returned when an update targets a prompt id with no
// matching row.
type PromptNotFoundError struct {
	ID int64
}

func (e *PromptNotFoundError) Error() string {
	return fmt.Sprintf("prompt %d not found", e.ID)
}
