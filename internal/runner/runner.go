// Package runner is a narrow facade around spawning external programs
// and collecting their output. Every other component that needs to
// shell out (the compiler driver, the sandbox driver, the language
// registry's setup step) goes through here so the subprocess contract
// is defined in exactly one place.
package runner

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/rs/zerolog/log"
)

// Runner spawns programs and waits for them to exit. It holds no
// state; it exists so call sites can be mocked in tests without
// touching package-level functions.
type Runner struct{}

// New returns a Runner.
func New() *Runner {
	return &Runner{}
}

// Run spawns program with args, waits for it to exit, and returns its
// stdout/stderr decoded as (lossy) UTF-8 text along with its exit
// code. A non-zero exit code is not an error at this layer; callers
// interpret it. stdin is not provided.
func (r *Runner) Run(ctx context.Context, program string, args ...string) (stdout, stderr string, exitCode int, err error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode, err = resolveExit(runErr, program, args)
	if err != nil {
		return "", "", 0, err
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// RunBinary is identical to Run except stdout is preserved as raw
// bytes, for retrieving compiled/binary artifacts without lossy
// decoding.
func (r *Runner) RunBinary(ctx context.Context, program string, args ...string) (stdout []byte, stderr string, exitCode int, err error) {
	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode, err = resolveExit(runErr, program, args)
	if err != nil {
		return nil, "", 0, err
	}
	return outBuf.Bytes(), errBuf.String(), exitCode, nil
}

// RunScript runs `bash <path>` and treats a non-zero exit as a hard
// failure, returning domain.ErrInternal with the captured stderr. Used
// for one-time per-language setup scripts, which have no meaningful
// "failed but keep going" outcome.
func (r *Runner) RunScript(ctx context.Context, path string) error {
	stdout, stderr, exitCode, err := r.Run(ctx, "bash", path)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		log.Warn().Str("script", path).Str("stdout", stdout).Str("stderr", stderr).Int("exit_code", exitCode).Msg("setup script failed")
		return domain.Wrapf(domain.ErrInternal, "script %s exited %d: %s", path, exitCode, stderr)
	}
	return nil
}

// resolveExit turns the error from cmd.Run() into (exitCode, nil) for
// "the process ran and exited non-zero", or (0, err) for "the process
// could not be spawned or waited on", matching the spec's contract
// that only the latter is an Internal failure.
func resolveExit(runErr error, program string, args []string) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, domain.Wrapf(domain.ErrInternal, "failed to run %s %v: %v", program, args, runErr)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
