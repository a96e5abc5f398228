package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "py", extensionFor("python"))
	assert.Equal(t, "js", extensionFor("javascript"))
	assert.Equal(t, "ts", extensionFor("typescript"))
	assert.Equal(t, "txt", extensionFor("brainfuck"))
}

func TestLanguagePaths(t *testing.T) {
	lang := Language{Name: "python", SourceExtension: "py", ConfigDir: "/cfg/python"}
	assert.Equal(t, filepath.Join("/cfg/python", "setup.sh"), lang.SetupPath())
	assert.Equal(t, filepath.Join("/cfg/python", "compiler"), lang.CompilerPath())
	assert.Equal(t, filepath.Join("/cfg/python", "runner"), lang.RunnerPath())
}

func TestSetupDiscoversAndSkipsMissingScript(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "python"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "javascript"), 0o755))

	reg := New(configDir, runner.New())
	require.NoError(t, reg.Setup(context.Background()))

	langs := reg.List()
	assert.Len(t, langs, 2)

	py, err := reg.Find("python")
	require.NoError(t, err)
	assert.Equal(t, "py", py.SourceExtension)
}

func TestSetupRunsScript(t *testing.T) {
	configDir := t.TempDir()
	langDir := filepath.Join(configDir, "custom")
	require.NoError(t, os.MkdirAll(langDir, 0o755))

	marker := filepath.Join(langDir, "ran")
	script := "#!/bin/sh\ntouch " + marker + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "setup.sh"), []byte(script), 0o755))

	reg := New(configDir, runner.New())
	require.NoError(t, reg.Setup(context.Background()))

	_, statErr := os.Stat(marker)
	assert.NoError(t, statErr, "setup.sh should have run")
}

func TestSetupFailsFatallyOnScriptError(t *testing.T) {
	configDir := t.TempDir()
	langDir := filepath.Join(configDir, "broken")
	require.NoError(t, os.MkdirAll(langDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "setup.sh"), []byte("#!/bin/sh\nexit 1\n"), 0o755))

	reg := New(configDir, runner.New())
	err := reg.Setup(context.Background())
	assert.True(t, errors.Is(err, domain.ErrInternal))
}

func TestFindUnknownLanguage(t *testing.T) {
	reg := New(t.TempDir(), runner.New())
	require.NoError(t, reg.Setup(context.Background()))

	_, err := reg.Find("cobol")
	assert.True(t, errors.Is(err, domain.ErrLanguageNotFound))
}

func TestContentsImmutableAfterSetup(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "python"), 0o755))

	reg := New(configDir, runner.New())
	require.NoError(t, reg.Setup(context.Background()))

	before := reg.List()

	// Adding a new directory after Setup must not change future List
	// calls: the cache is frozen.
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "javascript"), 0o755))

	after := reg.List()
	assert.Equal(t, len(before), len(after))
}
