package timeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStructuralReference  = errors.New("structural reference error")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrInvariantViolation   = errors.New("invariant violation")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

const (
	MsgTrackNotFound  = "Track not found"
	MsgClipNotFound   = "Clip not found"
	MsgEffectNotFound = "Effect not found"
)

// ReferenceError reports an operation whose track, clip or effect id does not
// resolve. The whole batch is rejected.
type ReferenceError struct {
	Index   int
	Op      OpType
	Message string
	ID      string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("operation %d (%s): %s: %s", e.Index, e.Op, e.Message, e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrStructuralReference }

// OperationError reports a well-referenced operation that cannot be applied.
type OperationError struct {
	Index  int
	Op     OpType
	Reason string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %s", e.Index, e.Op, e.Reason)
}

func (e *OperationError) Unwrap() error { return ErrInvalidOperation }

// InvariantError carries the issues found on a post-apply state.
type InvariantError struct {
	Issues []Issue
}

func (e *InvariantError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Code+": "+issue.Message)
	}
	return "invariant violation: " + strings.Join(parts, "; ")
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }
