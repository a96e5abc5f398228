// Package compiler drives a language's compiler script over a source
// file and locates the produced binary. Compiler diagnostics are
// sanitized before they leave this package: scratch directories embed
// randomly generated path components that would otherwise leak
// filesystem layout to API clients.
package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/registry"
	"github.com/isolatesandbox/isolate-sandbox/internal/runner"
)

// Compiler invokes a language's compiler script as a subprocess with a
// single argument: the source path. The script contract is: on
// success (exit 0) produce a file named "bin" in outputDir; on
// failure exit non-zero and write diagnostics to stderr.
type Compiler struct {
	runner *runner.Runner
}

// New returns a Compiler backed by r.
func New(r *runner.Runner) *Compiler {
	return &Compiler{runner: r}
}

// Compile runs lang's compiler over sourcePath, writing its artifact
// into outputDir, and returns the host-side path to that artifact.
func (c *Compiler) Compile(ctx context.Context, lang registry.Language, sourcePath, outputDir string) (string, error) {
	compilerPath := lang.CompilerPath()
	if _, err := os.Stat(compilerPath); err != nil {
		return "", domain.Wrapf(domain.ErrCompilationFailed, "compiler not found: %s", compilerPath)
	}

	stdout, stderr, exitCode, err := c.runner.Run(ctx, compilerPath, sourcePath)
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		sanitized := sanitizeStderr(stderr, sourcePath)
		return "", domain.Wrapf(domain.ErrCompilationFailed, "exit code %d: %s", exitCode, sanitized)
	}

	binaryPath := filepath.Join(outputDir, "bin")
	if _, err := os.Stat(binaryPath); err != nil {
		return "", domain.Wrapf(domain.ErrCompilationFailed,
			"compiled binary not found at %s. stdout: %s, stderr: %s", binaryPath, stdout, stderr)
	}

	return binaryPath, nil
}

// sanitizeStderr replaces every occurrence of the full source path in
// stderr with "*******.<ext>" (or "*******" if the source has no
// extension), so compiler diagnostics never reveal scratch directory
// layout to API clients.
func sanitizeStderr(stderr, sourcePath string) string {
	ext := strings.TrimPrefix(filepath.Ext(sourcePath), ".")
	replacement := "*******"
	if ext != "" {
		replacement = "*******." + ext
	}
	return strings.ReplaceAll(stderr, sourcePath, replacement)
}
