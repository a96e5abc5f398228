// Package sandbox drives the full lifecycle of a single sandbox slot
// against the `isolate` cgroup sandbox: init, stage artifacts, run,
// parse metadata, partial cleanup, and — later, at the caller's
// discretion — full cleanup. It also exposes the auxiliary
// list/read/delete operations used by the artifact access surface.
//
// This package plays the role the teacher's internal/driver/docker
// package plays for Docker: a concrete backend behind a small
// interface, constructed once and used for the life of the process.
// Here there is exactly one real backend, because the sandboxing
// primitive is a fixed external tool rather than a pluggable
// virtualization layer; the interface exists so pipeline tests can
// substitute a fake.
package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/isolatesandbox/isolate-sandbox/internal/config"
	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/registry"
	"github.com/isolatesandbox/isolate-sandbox/internal/runner"
	"github.com/rs/zerolog/log"
)

// ExecutionConfig is the input to Driver.Execute.
type ExecutionConfig struct {
	SlotID       int
	BinaryPath   string
	RunnerPath   string
	Language     registry.Language
	MetadataPath string
	Limits       config.SandboxLimits
}

// ExecutionOutput is the result of Driver.Execute. The slot stays
// held; it is not released here.
type ExecutionOutput struct {
	Stdout   string
	Stderr   string
	Metadata domain.ExecutionMetadata
}

// Driver is the sandbox lifecycle abstraction. Implementations must be
// safe for concurrent use across different slot ids (operations
// against the *same* slot id concurrently are the caller's
// responsibility, per the concurrency model).
type Driver interface {
	Execute(ctx context.Context, cfg ExecutionConfig) (ExecutionOutput, error)
	ListFiles(ctx context.Context, slotID int) ([]string, error)
	ReadFile(ctx context.Context, slotID int, name string) ([]byte, error)
	DeleteFile(ctx context.Context, slotID int, name string)
	Cleanup(ctx context.Context, slotID int)
}

// IsolateDriver implements Driver against the `sudo isolate` subprocess
// tool, exactly as described in spec.md section 4.5.
type IsolateDriver struct {
	runner *runner.Runner
	tool   string
}

// New returns an IsolateDriver invoking the "isolate" tool via sudo.
func New(r *runner.Runner) *IsolateDriver {
	return &IsolateDriver{runner: r, tool: "isolate"}
}

func (d *IsolateDriver) boxDir(slotID int) string {
	return fmt.Sprintf("/var/lib/%s/%d/box", d.tool, slotID)
}

func (d *IsolateDriver) slotArg(slotID int) string {
	return strconv.Itoa(slotID)
}

// init runs `sudo isolate -b <slot> --cg --init`.
func (d *IsolateDriver) init(ctx context.Context, slotID int) error {
	_, stderr, exitCode, err := d.runner.Run(ctx, "sudo", d.tool, "-b", d.slotArg(slotID), "--cg", "--init")
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return domain.Wrapf(domain.ErrSandboxError, "failed to initialize sandbox: %s", stderr)
	}
	return nil
}

// copyTo runs `sudo cp <source> <boxDir>/<destName>`.
func (d *IsolateDriver) copyTo(ctx context.Context, slotID int, source, destName string) error {
	dest := d.boxDir(slotID) + "/" + destName
	_, stderr, exitCode, err := d.runner.Run(ctx, "sudo", "cp", source, dest)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return domain.Wrapf(domain.ErrSandboxError, "failed to copy %s into sandbox: %s", destName, stderr)
	}
	return nil
}

// resolveSitePackages implements the Python-specific heuristic from
// spec.md 4.5.2 step 4: look under
// $HOME/.isolate-sandbox/environment/<lang>/lib/<pyver>/site-packages,
// taking the first matching subdirectory of lib/. Returns ("", false,
// nil) when no environment directory applies to this language — the
// widened policy adopted per spec.md's Open Question #1: skip the
// /packages bind for languages that don't need one instead of hard
// failing.
func resolveSitePackages(lang registry.Language) (string, bool, error) {
	if lang.Name != "python" {
		return "", false, nil
	}

	home, ok := os.LookupEnv("HOME")
	if !ok {
		return "", false, domain.Wrapf(domain.ErrInternal, "HOME env var not set")
	}

	libDir := fmt.Sprintf("%s/.isolate-sandbox/environment/%s/lib", home, lang.Name)
	entries, err := os.ReadDir(libDir)
	if err != nil {
		// No environment staged for this language: soft-skip.
		return "", false, nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := libDir + "/" + entry.Name() + "/site-packages"
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// run invokes `sudo isolate -b <slot> --cg [flags] --run -- runner`.
func (d *IsolateDriver) run(ctx context.Context, slotID int, sitePackages string, havePackages bool, metadataPath string, limits config.SandboxLimits) (stdout, stderr string, err error) {
	args := []string{d.tool, "-b", d.slotArg(slotID), "--cg"}

	if limits.CgMemKB > 0 {
		args = append(args, fmt.Sprintf("--cg-mem=%d", limits.CgMemKB))
	}
	if limits.MemKB > 0 {
		args = append(args, fmt.Sprintf("--mem=%d", limits.MemKB))
	}
	if limits.TimeSeconds > 0 {
		args = append(args, fmt.Sprintf("--time=%d", limits.TimeSeconds))
	}
	if limits.WallSeconds > 0 {
		args = append(args, fmt.Sprintf("--wall-time=%d", limits.WallSeconds))
	}
	if limits.ExtraSeconds > 0 {
		args = append(args, fmt.Sprintf("--extra-time=%d", limits.ExtraSeconds))
	}
	if limits.StackKB > 0 {
		args = append(args, fmt.Sprintf("--stack=%d", limits.StackKB))
	}
	if limits.FsizeKB > 0 {
		args = append(args, fmt.Sprintf("--fsize=%d", limits.FsizeKB))
	}

	if limits.OpenFiles > 0 {
		args = append(args, fmt.Sprintf("--open-files=%d", limits.OpenFiles))
	} else {
		args = append(args, "--open-files=0")
	}
	if limits.Processes > 0 {
		args = append(args, fmt.Sprintf("--processes=%d", limits.Processes))
	} else {
		args = append(args, "--processes")
	}

	if havePackages {
		args = append(args, fmt.Sprintf("--dir=/packages=%s", sitePackages))
	}
	args = append(args, "--env=HOME=/box")
	if havePackages {
		args = append(args, "--env=PYTHONPATH=/packages")
	}
	args = append(args, fmt.Sprintf("--meta=%s", metadataPath))
	args = append(args, "--run", "--", "runner")

	stdout, stderr, _, err = d.runner.Run(ctx, "sudo", args...)
	return stdout, stderr, err
}

// Execute performs init -> stage -> run -> parse metadata -> partial
// clean, returning with the slot still held, per spec.md 4.5.2.
func (d *IsolateDriver) Execute(ctx context.Context, cfg ExecutionConfig) (ExecutionOutput, error) {
	log.Debug().Int("slot_id", cfg.SlotID).Msg("initializing sandbox")
	if err := d.init(ctx, cfg.SlotID); err != nil {
		return ExecutionOutput{}, err
	}

	log.Debug().Int("slot_id", cfg.SlotID).Str("binary", cfg.BinaryPath).Msg("copying binary into sandbox")
	if err := d.copyTo(ctx, cfg.SlotID, cfg.BinaryPath, "bin"); err != nil {
		return ExecutionOutput{}, err
	}

	log.Debug().Int("slot_id", cfg.SlotID).Str("runner", cfg.RunnerPath).Msg("copying runner into sandbox")
	if err := d.copyTo(ctx, cfg.SlotID, cfg.RunnerPath, "runner"); err != nil {
		return ExecutionOutput{}, err
	}

	sitePackages, havePackages, err := resolveSitePackages(cfg.Language)
	if err != nil {
		return ExecutionOutput{}, err
	}

	log.Debug().Int("slot_id", cfg.SlotID).Msg("running in sandbox")
	stdout, stderr, err := d.run(ctx, cfg.SlotID, sitePackages, havePackages, cfg.MetadataPath, cfg.Limits)
	if err != nil {
		return ExecutionOutput{}, err
	}

	metadataContent, readErr := os.ReadFile(cfg.MetadataPath)
	if readErr != nil {
		return ExecutionOutput{}, domain.Wrapf(domain.ErrIO, "reading metadata file %s: %v", cfg.MetadataPath, readErr)
	}
	metadata := parseMetadata(string(metadataContent))

	d.DeleteFile(ctx, cfg.SlotID, "bin")
	d.DeleteFile(ctx, cfg.SlotID, "runner")

	return ExecutionOutput{Stdout: stdout, Stderr: stderr, Metadata: metadata}, nil
}

// ListFiles runs `sudo ls -1 <boxDir>`, returning non-empty lines.
func (d *IsolateDriver) ListFiles(ctx context.Context, slotID int) ([]string, error) {
	stdout, stderr, exitCode, err := d.runner.Run(ctx, "sudo", "ls", "-1", d.boxDir(slotID))
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, domain.Wrapf(domain.ErrSandboxError, "failed to list files in box: %s", stderr)
	}

	var files []string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ReadFile returns the raw bytes of a file inside the slot, read with
// `sudo cat <boxDir>/<name>` rather than base64, per spec.md's resolved
// Open Question #3 (raw bytes at the core interface, base64 only at
// the transport boundary).
func (d *IsolateDriver) ReadFile(ctx context.Context, slotID int, name string) ([]byte, error) {
	path := d.boxDir(slotID) + "/" + name
	data, stderr, exitCode, err := d.runner.RunBinary(ctx, "sudo", "cat", path)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, domain.Wrapf(domain.ErrSandboxError, "failed to read file from box: %s", stderr)
	}
	return data, nil
}

// DeleteFile best-effort removes a file inside the slot. Failures are
// logged and swallowed — they must never mask a more relevant error.
func (d *IsolateDriver) DeleteFile(ctx context.Context, slotID int, name string) {
	path := d.boxDir(slotID) + "/" + name
	_, stderr, exitCode, err := d.runner.Run(ctx, "sudo", "rm", "-f", path)
	if err != nil {
		log.Warn().Err(err).Int("slot_id", slotID).Str("file", name).Msg("failed to invoke rm in sandbox")
		return
	}
	if exitCode != 0 {
		log.Warn().Int("slot_id", slotID).Str("file", name).Str("stderr", stderr).Msg("failed to delete file in sandbox")
	}
}

// Cleanup runs `sudo isolate -b <slot> --cg --cleanup`. Non-zero exit
// is logged but never fails; the caller always releases the slot
// regardless of sandbox teardown outcome.
func (d *IsolateDriver) Cleanup(ctx context.Context, slotID int) {
	_, stderr, exitCode, err := d.runner.Run(ctx, "sudo", d.tool, "-b", d.slotArg(slotID), "--cg", "--cleanup")
	if err != nil {
		log.Warn().Err(err).Int("slot_id", slotID).Msg("failed to invoke cleanup")
		return
	}
	if exitCode != 0 {
		log.Warn().Int("slot_id", slotID).Str("stderr", stderr).Msg("sandbox cleanup exited non-zero")
	}
}

// parseMetadata does line-wise scanning for the tokens time:,
// time-wall:, cg-mem:, status:, exitcode:. Each token's value is the
// remainder of its line. Multiple occurrences: last write wins.
// Absent tokens keep domain.NewExecutionMetadata's defaults.
func parseMetadata(content string) domain.ExecutionMetadata {
	metadata := domain.NewExecutionMetadata()

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch key {
		case "time":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				metadata.CPUTimeSeconds = f
			}
		case "time-wall":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				metadata.WallTimeSeconds = f
			}
		case "cg-mem":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				metadata.MemoryKB = n
			}
		case "exitcode":
			if n, err := strconv.Atoi(value); err == nil {
				metadata.ExitCode = n
			}
		case "status":
			metadata.Status = value
		}
	}
	return metadata
}
