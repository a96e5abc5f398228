// Package registry discovers per-language tooling descriptors from a
// configuration directory, runs their one-time setup scripts, and
// caches the result for the process lifetime. It generalizes the
// teacher's package-level driver registry (internal/driver.Driver,
// RegisterDriver/NewDriver) to an instance built once at startup: here
// "drivers" are discovered from the filesystem rather than compiled
// in, so there is nothing to register at init() time — the registry
// is built, Setup is run, and from that point the contents are frozen.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/runner"
	"github.com/rs/zerolog/log"
)

// extensionByName is the fixed table mapping a language name to the
// filename suffix used when writing user code to a scratch file.
// Unknown names map to "txt".
var extensionByName = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
}

func extensionFor(name string) string {
	if ext, ok := extensionByName[name]; ok {
		return ext
	}
	return "txt"
}

// Language is an immutable descriptor for one supported language.
type Language struct {
	Name            string
	SourceExtension string
	ConfigDir       string
}

// SetupPath is config_dir/setup.sh.
func (l Language) SetupPath() string { return filepath.Join(l.ConfigDir, "setup.sh") }

// CompilerPath is config_dir/compiler.
func (l Language) CompilerPath() string { return filepath.Join(l.ConfigDir, "compiler") }

// RunnerPath is config_dir/runner.
func (l Language) RunnerPath() string { return filepath.Join(l.ConfigDir, "runner") }

// Registry holds the discovered, set-up language descriptors. It is
// safe for concurrent use; after Setup returns, its contents never
// change again.
type Registry struct {
	configDir string
	runner    *runner.Runner

	mu        sync.RWMutex
	languages map[string]Language
}

// New creates a registry rooted at configDir. Call Setup before
// serving requests.
func New(configDir string, r *runner.Runner) *Registry {
	return &Registry{
		configDir: configDir,
		runner:    r,
		languages: make(map[string]Language),
	}
}

// Setup discovers subdirectories of configDir (each subdirectory name
// is a language name), runs each discovered language's setup.sh if
// present (missing scripts log a warning and are skipped — not
// fatal), and populates the in-memory cache. A failing setup script
// aborts the whole startup with ErrInternal.
func (reg *Registry) Setup(ctx context.Context) error {
	discovered, err := reg.discover()
	if err != nil {
		return err
	}
	log.Info().Int("count", len(discovered)).Msg("discovered languages")

	for _, lang := range discovered {
		setupPath := lang.SetupPath()
		if _, statErr := os.Stat(setupPath); statErr != nil {
			log.Warn().Str("language", lang.Name).Str("path", setupPath).Msg("setup script not found, skipping")
			continue
		}

		log.Info().Str("language", lang.Name).Msg("running language setup")
		if err := reg.runner.RunScript(ctx, setupPath); err != nil {
			return domain.Wrapf(domain.ErrInternal, "setup failed for %s: %v", lang.Name, err)
		}
		log.Info().Str("language", lang.Name).Msg("setup complete")
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, lang := range discovered {
		reg.languages[lang.Name] = lang
	}
	return nil
}

func (reg *Registry) discover() ([]Language, error) {
	entries, err := os.ReadDir(reg.configDir)
	if err != nil {
		return nil, domain.Wrapf(domain.ErrInternal, "failed to read config dir %s: %v", reg.configDir, err)
	}

	var languages []Language
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		languages = append(languages, Language{
			Name:            name,
			SourceExtension: extensionFor(name),
			ConfigDir:       filepath.Join(reg.configDir, name),
		})
	}
	return languages, nil
}

// Find returns the descriptor for name, or ErrLanguageNotFound.
func (reg *Registry) Find(name string) (Language, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	lang, ok := reg.languages[name]
	if !ok {
		return Language{}, domain.Wrapf(domain.ErrLanguageNotFound, "%s", name)
	}
	return lang, nil
}

// List returns all cached descriptors. Iteration order is unspecified.
func (reg *Registry) List() []Language {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Language, 0, len(reg.languages))
	for _, lang := range reg.languages {
		out = append(out, lang)
	}
	return out
}
