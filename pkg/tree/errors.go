package tree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound covers missing entities, parents and targets, and
	// entities hidden from the calling principal.
	ErrNotFound = errors.New("entity not found")

	// ErrCycle rejects moving an entity onto itself or into its own
	// subtree.
	ErrCycle = errors.New("cannot move an entity into its own subtree")

	// ErrCrossPagetree rejects page moves between pagetrees or sites.
	ErrCrossPagetree = errors.New("cannot move across pagetrees")

	// ErrTemplateIncompatible aborts a whole copy batch when any copied
	// item's template is not allowed beneath the destination.
	ErrTemplateIncompatible = errors.New("template not allowed beneath destination")
)

// ValidationMessage is one actionable per-field problem, reported back to
// the caller instead of aborting the request.
type ValidationMessage struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError accumulates validation messages for a single operation.
// Handlers translate it into a success=false response, not a failure status.
type ValidationError struct {
	Messages []ValidationMessage
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = fmt.Sprintf("%s: %s", m.Path, m.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps a ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
