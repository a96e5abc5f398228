// Package domain holds the error taxonomy and the transient records
// that flow between the sandbox orchestration layers: execution
// requests/results, execution metadata, and the HTTP status mapping
// for the closed set of error kinds.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Every layer wraps one of these with
// fmt.Errorf("%w: ...") so callers can classify failures with
// errors.Is while still carrying a human-readable message.
var (
	ErrLanguageNotFound     = errors.New("Language not found")
	ErrCompilationFailed    = errors.New("Compilation failed")
	ErrExecutionFailed      = errors.New("Execution failed") // reserved, never produced
	ErrPoolExhausted        = errors.New("Pool exhausted")
	ErrSandboxError         = errors.New("Sandbox error")
	ErrInvalidConfiguration = errors.New("Invalid configuration")
	ErrIO                   = errors.New("IO error")
	ErrInternal             = errors.New("Internal error")
)

// HTTPStatus maps an error produced anywhere in the core to the status
// code the transport layer should return. Unrecognized errors map to
// 500, matching the Internal catch-all.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrLanguageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCompilationFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrExecutionFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrSandboxError):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, ErrIO):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for an error, preferring the
// specific case the spec calls out for pool exhaustion.
func Message(err error) string {
	if errors.Is(err, ErrPoolExhausted) {
		return "Service is busy, please try again later"
	}
	return err.Error()
}

// ExecutionRequest is the transient input to the execution pipeline.
type ExecutionRequest struct {
	Language string
	Code     []byte
}

// ExecutionMetadata is parsed from the sandbox's metadata file.
type ExecutionMetadata struct {
	CPUTimeSeconds  float64 `json:"cpu_time_seconds"`
	WallTimeSeconds float64 `json:"wall_time_seconds"`
	MemoryKB        uint64  `json:"memory_kb"`
	ExitCode        int     `json:"exit_code"`
	Status          string  `json:"status"`
}

// NewExecutionMetadata returns metadata with the documented defaults:
// zero numerics, status "OK".
func NewExecutionMetadata() ExecutionMetadata {
	return ExecutionMetadata{Status: "OK"}
}

// ExecutionResult is the transient output of the execution pipeline.
// SlotID is surfaced so later artifact-access calls can target it; the
// slot remains held by the caller.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	Metadata ExecutionMetadata
	SlotID   int
}

// Wrapf wraps a sentinel error kind with a formatted message, the way
// every layer in this repository reports failures.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
