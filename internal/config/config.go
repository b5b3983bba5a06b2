// Package config handles loading, saving, and resolving the forksync
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-repository forksync config file.
	LocalConfigFilename = ".forksync.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/forksync/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "ForkSyncConfig"
)

// Config describes the vendored fork managed by forksync.
// Preserve entries are ordered and may be literal relative paths or
// doublestar glob patterns.
type Config struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	// TargetDir is the vendored directory, relative to the repo root.
	TargetDir string `yaml:"target_dir"`
	// UpstreamSourceDir is the library subtree inside the upstream clone.
	UpstreamSourceDir string `yaml:"upstream_source_dir"`
	// BackupDir is the scratch staging directory for preserved files,
	// relative to the repo root. Left in place after a run for inspection.
	BackupDir string `yaml:"backup_dir"`
	// Preserve lists paths that must survive a hard reset, in order.
	Preserve []string `yaml:"preserve"`
	// MetadataFile is the sync metadata record inside the target dir.
	MetadataFile string `yaml:"metadata_file"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion:        ConfigAPIVersion,
		Kind:              ConfigKind,
		TargetDir:         "vendor/tree-sitter",
		UpstreamSourceDir: "lib",
		BackupDir:         filepath.Join(".cache", "forksync-backup"),
		Preserve: []string{
			"Cargo.toml",
			"Cargo.lock",
			"CMakeLists.txt",
			"*.pc.in",
			"README.md",
			"LICENSE",
		},
		MetadataFile: ".sync-meta.txt",
	}
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override, repoRoot string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, LocalConfigFilename), nil
	}

	if env := os.Getenv("FORKSYNC_CONFIG"); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, LocalConfigFilename), nil
	}

	if strings.TrimSpace(repoRoot) == "" {
		var err error
		repoRoot, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(repoRoot, LocalConfigFilename), nil
}

// FindNearestConfigPath searches cwd and each parent directory for
// .forksync.yaml. It returns an empty string when none is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, FORKSYNC_CONFIG, nearest local dotfile in
// cwd/parents; defaults are used when nothing is found.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv("FORKSYNC_CONFIG") != "" {
		return ConfigPath(override, cwd)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return FindNearestConfigPath(cwd)
}

// Load reads the config file from the given path. Missing or empty
// optional fields fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads the config at path, or returns the defaults when
// path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := DefaultConfig()
		return &cfg, nil
	}
	return Load(path)
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ConfigRoot returns the repo root implied by a config file path.
func ConfigRoot(configPath string) string {
	if strings.TrimSpace(configPath) == "" {
		return ""
	}
	return filepath.Clean(filepath.Dir(configPath))
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.TargetDir) == "" {
		cfg.TargetDir = def.TargetDir
	}
	if strings.TrimSpace(cfg.UpstreamSourceDir) == "" {
		cfg.UpstreamSourceDir = def.UpstreamSourceDir
	}
	if strings.TrimSpace(cfg.BackupDir) == "" {
		cfg.BackupDir = def.BackupDir
	}
	if len(cfg.Preserve) == 0 {
		cfg.Preserve = def.Preserve
	}
	if strings.TrimSpace(cfg.MetadataFile) == "" {
		cfg.MetadataFile = def.MetadataFile
	}
}

func isConfigFilePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
