// Package config loads service configuration from the environment,
// with an optional YAML file providing defaults that any set
// environment variable overrides. This mirrors the teacher's
// env-first posture (its main.go reads an API key and port straight
// from the environment) generalized with the file-overlay the
// teacher's own --config flag documents but never implements.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"gopkg.in/yaml.v3"
)

// SandboxLimits carries the per-slot isolate resource defaults
// recovered from the original Rust implementation's SandboxConfig.
// A zero value for any field means "unlimited" / "flag omitted",
// matching the spec's currently-shipped --open-files=0 --processes
// (unlimited) behavior; operators opt into limits by setting the
// corresponding env var.
type SandboxLimits struct {
	CgMemKB      uint32 `yaml:"cg_mem_kb"`
	MemKB        uint32 `yaml:"mem_kb"`
	TimeSeconds  uint32 `yaml:"time_seconds"`
	WallSeconds  uint32 `yaml:"wall_seconds"`
	ExtraSeconds uint32 `yaml:"extra_seconds"`
	StackKB      uint32 `yaml:"stack_kb"`
	FsizeKB      uint32 `yaml:"fsize_kb"`
	OpenFiles    uint32 `yaml:"open_files"`
	Processes    uint32 `yaml:"processes"`
}

// Config is the full set of service configuration.
type Config struct {
	Port         uint16        `yaml:"port"`
	ConfigDir    string        `yaml:"config_dir"`
	BoxPoolSize  uint32        `yaml:"box_pool_size"`
	APIKey       string        `yaml:"api_key"`
	SandboxLimit SandboxLimits `yaml:"sandbox"`
}

// Default returns the documented defaults: port 3000, config_dir
// "./config", pool size 10, auth disabled, all sandbox limits
// unlimited.
func Default() Config {
	return Config{
		Port:        3000,
		ConfigDir:   "./config",
		BoxPoolSize: 10,
	}
}

// Load builds a Config by starting from Default, overlaying
// yamlPath if it exists (missing file is not an error — the overlay
// is optional), then overlaying any set ISOLATE_SANDBOX_* environment
// variable. Environment variables always win over the file.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, domain.Wrapf(domain.ErrInvalidConfiguration, "parsing %s: %v", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, domain.Wrapf(domain.ErrInvalidConfiguration, "reading %s: %v", yamlPath, err)
		}
	}

	applyEnvUint16("ISOLATE_SANDBOX_PORT", &cfg.Port)
	if v, ok := os.LookupEnv("ISOLATE_SANDBOX_CONFIG_DIR"); ok {
		cfg.ConfigDir = v
	}
	applyEnvUint32("ISOLATE_SANDBOX_BOX_POOL_SIZE", &cfg.BoxPoolSize)
	if v, ok := os.LookupEnv("ISOLATE_SANDBOX_API_KEY"); ok {
		cfg.APIKey = v
	}

	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_CG_MEM", &cfg.SandboxLimit.CgMemKB)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_MEM", &cfg.SandboxLimit.MemKB)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_TIME", &cfg.SandboxLimit.TimeSeconds)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_WALL_TIME", &cfg.SandboxLimit.WallSeconds)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_EXTRA_TIME", &cfg.SandboxLimit.ExtraSeconds)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_STACK", &cfg.SandboxLimit.StackKB)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_FSIZE", &cfg.SandboxLimit.FsizeKB)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_OPEN_FILES", &cfg.SandboxLimit.OpenFiles)
	applyEnvUint32("ISOLATE_SANDBOX_DEFAULT_PROCESSES", &cfg.SandboxLimit.Processes)

	cfg.ConfigDir = filepath.Clean(cfg.ConfigDir)
	return cfg, nil
}

func applyEnvUint16(key string, dst *uint16) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			*dst = uint16(n)
		}
	}
}

func applyEnvUint32(key string, dst *uint32) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}
