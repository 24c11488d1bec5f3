package aggregator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrGroupNotFound means the group identity is stale. Callers should
	// refresh their group list.
	ErrGroupNotFound = errors.New("solve group not found")

	// ErrStaleComputation marks a result dropped because its group was
	// deleted while it was computed. It is internal and only logged.
	ErrStaleComputation = errors.New("stale computation discarded")
)

// GroupNotFoundError reports a deleted or unknown group.
type GroupNotFoundError struct {
	GroupID uuid.UUID
}

func (e *GroupNotFoundError) Error() string {
	return fmt.Sprintf("solve group %s not found", e.GroupID)
}

func (e *GroupNotFoundError) Is(target error) bool {
	return target == ErrGroupNotFound
}
