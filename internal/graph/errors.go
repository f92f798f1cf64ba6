package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNoTrigger         = errors.New("graph has no trigger")
	ErrMultipleTriggers  = errors.New("graph has more than one trigger")
	ErrUnreachable       = errors.New("node is unreachable from the trigger")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrCycle             = errors.New("connection would create a cycle")
	ErrNoAction          = errors.New("graph has no action")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrInvalidNode       = errors.New("node must carry exactly one of trigger, condition or action")
	ErrUnknownProperty   = errors.New("unknown node property")
)

// GraphError ties a graph failure to the node that caused it. It unwraps to
// one of the sentinels above.
type GraphError struct {
	Kind   error
	NodeID string
	Detail string
}

func (e *GraphError) Error() string {
	msg := e.Kind.Error()
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s: node %s", msg, e.NodeID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

func (e *GraphError) Unwrap() error {
	return e.Kind
}

func newError(kind error, nodeID, detail string) *GraphError {
	return &GraphError{Kind: kind, NodeID: nodeID, Detail: detail}
}
