package tutor

import (
	"errors"
	"fmt"

	"github.com/abhisek/techtree/internal/llm"
)

// Sentinel errors recorded by nodes.
var (
	ErrNoProvider     = errors.New("LLM provider not configured")
	ErrNoMessage      = errors.New("no message to classify")
	ErrNoExposition   = errors.New("lesson exposition is empty")
	ErrNoActiveTask   = errors.New("no active exercise or assessment to evaluate")
	ErrNoAnswer       = errors.New("no answer to evaluate")
	ErrInvalidPayload = errors.New("invalid payload from LLM")
)

// ErrorKind classifies node failures.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransient     ErrorKind = "transient"
	KindProvider      ErrorKind = "provider"
	KindContract      ErrorKind = "contract"
	KindPrecondition  ErrorKind = "precondition"
)

// NodeError is the error a node records in session state. Nodes never
// return errors to their caller; they attach a NodeError to their Update.
type NodeError struct {
	Node string
	Kind ErrorKind
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// newNodeError wraps err for node, deriving the kind from err.
func newNodeError(node string, err error) *NodeError {
	return &NodeError{Node: node, Kind: classifyError(err), Err: err}
}

func classifyError(err error) ErrorKind {
	var (
		timeout *llm.ErrTimeout
		invalid *llm.ErrInvalidResponse
	)
	switch {
	case errors.Is(err, ErrNoProvider), errors.Is(err, llm.ErrNotConfigured):
		return KindConfiguration
	case errors.Is(err, ErrNoMessage), errors.Is(err, ErrNoExposition),
		errors.Is(err, ErrNoActiveTask), errors.Is(err, ErrNoAnswer):
		return KindPrecondition
	case errors.Is(err, ErrInvalidPayload), errors.As(err, &invalid):
		return KindContract
	case errors.As(err, &timeout):
		return KindProvider
	case llm.IsTransient(err):
		// Only reached once the retry budget is spent.
		return KindTransient
	default:
		return KindProvider
	}
}
