package domain

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		ErrLanguageNotFound:     http.StatusNotFound,
		ErrCompilationFailed:    http.StatusBadRequest,
		ErrExecutionFailed:      http.StatusBadRequest,
		ErrPoolExhausted:        http.StatusServiceUnavailable,
		ErrSandboxError:         http.StatusInternalServerError,
		ErrInvalidConfiguration: http.StatusInternalServerError,
		ErrIO:                   http.StatusInternalServerError,
		ErrInternal:             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestWrapfPreservesErrorsIs(t *testing.T) {
	err := Wrapf(ErrCompilationFailed, "exit code %d", 1)
	assert.ErrorIs(t, err, ErrCompilationFailed)
	assert.Contains(t, err.Error(), "exit code 1")
}

func TestMessagePoolExhaustedIsUserFacing(t *testing.T) {
	assert.Equal(t, "Service is busy, please try again later", Message(ErrPoolExhausted))
	assert.Equal(t, Wrapf(ErrLanguageNotFound, "cobol").Error(), Message(Wrapf(ErrLanguageNotFound, "cobol")))
}

func TestNewExecutionMetadataDefaults(t *testing.T) {
	metadata := NewExecutionMetadata()
	assert.Equal(t, "OK", metadata.Status)
	assert.Zero(t, metadata.ExitCode)
	assert.Zero(t, metadata.CPUTimeSeconds)
	assert.Zero(t, metadata.WallTimeSeconds)
	assert.Zero(t, metadata.MemoryKB)
}
