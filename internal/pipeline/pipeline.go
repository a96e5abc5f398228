// Package pipeline orchestrates one execution request end to end:
// resolve the language, stage the source on disk, compile it, acquire
// a sandbox slot, run it, and hand back the result with the slot still
// held for later artifact inspection. It never releases the slot — that
// is the caller's decision, made once the client is done inspecting the
// box (see the artifact access surface in internal/api).
//
// This is the Go shape of the original's ExecuteCodeUseCase::execute:
// a single method stringing together the repository, compiler, pool,
// and sandbox collaborators, with every failure point wrapped in the
// closed error taxonomy.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/isolatesandbox/isolate-sandbox/internal/compiler"
	"github.com/isolatesandbox/isolate-sandbox/internal/config"
	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/pool"
	"github.com/isolatesandbox/isolate-sandbox/internal/registry"
	"github.com/isolatesandbox/isolate-sandbox/internal/sandbox"
	"github.com/rs/zerolog/log"
)

// Pipeline wires together the collaborators needed to run one request.
type Pipeline struct {
	registry *registry.Registry
	compiler *compiler.Compiler
	pool     *pool.Pool
	sandbox  sandbox.Driver
	limits   config.SandboxLimits
	scratch  string
}

// New returns a Pipeline. scratchDir is the host directory under which
// per-request source/build directories are created; it must already
// exist.
func New(reg *registry.Registry, comp *compiler.Compiler, p *pool.Pool, sb sandbox.Driver, limits config.SandboxLimits, scratchDir string) *Pipeline {
	return &Pipeline{registry: reg, compiler: comp, pool: p, sandbox: sb, limits: limits, scratch: scratchDir}
}

// Execute runs req.Code as req.Language and returns the execution
// result with the acquired slot still held. On any failure prior to
// slot acquisition, no slot is held. On any failure after slot
// acquisition, the slot is intentionally left held for inspection —
// matching the spec's explicit decision not to auto-release on
// sandbox-stage failure.
func (p *Pipeline) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	lang, err := p.registry.Find(req.Language)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	workDir, err := os.MkdirTemp(p.scratch, "exec-*")
	if err != nil {
		return domain.ExecutionResult{}, domain.Wrapf(domain.ErrIO, "creating scratch dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	sourcePath := filepath.Join(workDir, "source."+lang.SourceExtension)
	if err := os.WriteFile(sourcePath, req.Code, 0o644); err != nil {
		return domain.ExecutionResult{}, domain.Wrapf(domain.ErrIO, "writing source file: %v", err)
	}

	binaryPath, err := p.compiler.Compile(ctx, lang, sourcePath, workDir)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	slotID, err := p.pool.Acquire()
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	log.Info().Int("slot_id", slotID).Str("language", lang.Name).Msg("executing request")

	metadataPath := filepath.Join(workDir, "meta.txt")
	output, err := p.sandbox.Execute(ctx, sandbox.ExecutionConfig{
		SlotID:       slotID,
		BinaryPath:   binaryPath,
		RunnerPath:   lang.RunnerPath(),
		Language:     lang,
		MetadataPath: metadataPath,
		Limits:       p.limits,
	})
	if err != nil {
		// Slot stays held; the caller can still inspect whatever state
		// the sandbox reached before failing, and must explicitly
		// clean up and release via the artifact access surface.
		return domain.ExecutionResult{SlotID: slotID}, err
	}

	return domain.ExecutionResult{
		Stdout:   output.Stdout,
		Stderr:   output.Stderr,
		Metadata: output.Metadata,
		SlotID:   slotID,
	}, nil
}

// ListFiles, ReadFile, and DeleteFile form the artifact access surface
// (C7): operations against a slot already held by a prior Execute
// call. They do not touch the pool; full cleanup and releasing the
// slot is a separate, explicit step (Release).

// ListFiles lists the names of files present in slotID's box.
func (p *Pipeline) ListFiles(ctx context.Context, slotID int) ([]string, error) {
	return p.sandbox.ListFiles(ctx, slotID)
}

// ReadFile returns the raw bytes of name inside slotID's box.
func (p *Pipeline) ReadFile(ctx context.Context, slotID int, name string) ([]byte, error) {
	return p.sandbox.ReadFile(ctx, slotID, name)
}

// DeleteFile best-effort removes name from slotID's box.
func (p *Pipeline) DeleteFile(ctx context.Context, slotID int, name string) {
	p.sandbox.DeleteFile(ctx, slotID, name)
}

// Release runs full sandbox cleanup for slotID and returns it to the
// pool. This is the only path back to the free queue.
func (p *Pipeline) Release(ctx context.Context, slotID int) error {
	p.sandbox.Cleanup(ctx, slotID)
	return p.pool.Release(slotID)
}
