package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Declaration error codes. Always fatal at build time.
const (
	ErrConflictingRouting ErrorCode = "CONFLICTING_ROUTING"
	ErrDuplicateNode      ErrorCode = "DUPLICATE_NODE"
	ErrUnresolvedTarget   ErrorCode = "UNRESOLVED_TARGET"
	ErrEmptyGraph         ErrorCode = "EMPTY_GRAPH"
	ErrMalformedRow       ErrorCode = "MALFORMED_ROW"
)

// Routing error codes. Fatal to a run.
const (
	ErrUnboundFunction   ErrorCode = "UNBOUND_FUNCTION"
	ErrRoutingUnresolved ErrorCode = "ROUTING_UNRESOLVED"
)

// Execution error codes.
const (
	ErrAgentNotRegistered ErrorCode = "AGENT_NOT_REGISTERED"
	ErrOutputContract     ErrorCode = "OUTPUT_CONTRACT"
	ErrGraphNotFound      ErrorCode = "GRAPH_NOT_FOUND"
	ErrRunAborted         ErrorCode = "RUN_ABORTED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Graph   string    `json:"graph,omitempty"`
	Node    string    `json:"node,omitempty"`
	Row     int       `json:"row,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Code)
	if e.Graph != "" {
		fmt.Fprintf(&b, " graph %s", e.Graph)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " node %s", e.Node)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithGraph sets the graph name.
func (e *Error) WithGraph(graph string) *Error {
	e.Graph = graph
	return e
}

// WithNode sets the node name.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithRow sets the declaration row number (1-based, header excluded).
func (e *Error) WithRow(row int) *Error {
	e.Row = row
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ValidationError aggregates every declaration problem found in one build
// pass, so a caller can fix a workflow sheet in a single round trip.
type ValidationError struct {
	Graph  string
	Issues []*Error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s: %d validation issue(s)", e.Graph, len(e.Issues))
	for _, issue := range e.Issues {
		b.WriteString("\n\t")
		b.WriteString(issue.Error())
	}
	return b.String()
}

// HasCode reports whether any aggregated issue carries the given code.
func (e *ValidationError) HasCode(code ErrorCode) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
