package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWorkflowNotFound is returned when a workflow ID cannot be found in the store.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrExpectationFailed is wrapped by an ExpectationError when the assertion evaluated to false.
var ErrExpectationFailed = errors.New("expectation not met")

// StepResolutionError is returned when a step cannot find its target
// (command, entity, question) on the current screen.
type StepResolutionError struct {
	Step   string
	Target string
	Known  []string
}

func (e *StepResolutionError) Error() string {
	return fmt.Sprintf("%s: %q not found (available: %s)", e.Step, e.Target, strings.Join(e.Known, ", "))
}

// ProtocolError is returned when the remote service answers with an explicit error list
// or when a step is executed against a screen of the wrong kind.
type ProtocolError struct {
	Errors []string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", strings.Join(e.Errors, "; "))
}

// UnrecognizedScreenError is returned when a response has none of the known screen shapes.
type UnrecognizedScreenError struct {
	Keys []string
}

func (e *UnrecognizedScreenError) Error() string {
	return fmt.Sprintf("unrecognized screen (keys: %s)", strings.Join(e.Keys, ", "))
}

// ExpectationError wraps any failure while evaluating an expectation,
// including a plain false result (ErrExpectationFailed).
type ExpectationError struct {
	Expectation string
	Err         error
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("expectation %s: %v", e.Expectation, e.Err)
}

func (e *ExpectationError) Unwrap() error {
	return e.Err
}

// RemoteExecutionError is returned when the channel reports an explicit failure
// (an "exception" field or status "error").
type RemoteExecutionError struct {
	Endpoint string
	Message  string
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("remote execution failed at %s: %s", e.Endpoint, e.Message)
}

// ParseError is returned by the text DSL when a line matches no rule
// or a capture cannot be converted.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("line %d: %q: no matching directive", e.Line, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReconstructionError aborts a traffic reconstruction.
type ReconstructionError struct {
	Index  int
	Reason string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("traffic entry %d: %s", e.Index, e.Reason)
}
