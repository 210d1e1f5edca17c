// Package config assembles the options described in spec.md §6 from three
// layers — built-in defaults, an optional YAML file, and command-line
// flags — in that precedence order, the same layering the teacher uses to
// resolve the cc-helper binary path (env var, then adjacent-to-executable,
// then PATH) in internal/ipc/client.go's findHelper.
package config

import (
	"fmt"
	"os"
	"os/exec"

	"gopkg.in/yaml.v3"
)

// Config holds every option spec.md §6's table enumerates, plus the
// SPEC_FULL.md §4.6 additions (SuffixForm, Compat, Progress).
type Config struct {
	InputPath    string `yaml:"input"`
	ImagePath    string `yaml:"image"`
	ToolPath     string `yaml:"addr2line"`
	OutputPath   string `yaml:"output"`
	AliasData    bool   `yaml:"alias_data"`
	AliasDataAll bool   `yaml:"alias_data_all"`
	Verbose      bool   `yaml:"verbose"`
	SuffixForm   string `yaml:"suffix_form"`
	Compat       string `yaml:"compat"`
	Progress     bool   `yaml:"progress"`
}

// FatalError wraps any fatal error kind from spec.md §7 with the process
// exit code main should use, mirroring the teacher's internal/initx.ExitError.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError with exit code 1, spec.md §6's single
// nonzero exit code for any fatal condition.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Code: 1, Err: err}
}

// LoadFile reads a YAML config file and merges it over the defaults. A
// missing file is not an error — every field is optional per SPEC_FULL.md
// §4.6; path == "" is treated the same as a missing file.
func LoadFile(path string) (Config, error) {
	cfg := Config{SuffixForm: "alias"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, &FatalError{Code: 1, Err: fmt.Errorf("read config %s: %w", path, err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &FatalError{Code: 1, Err: fmt.Errorf("parse config %s: %w", path, err)}
	}
	return cfg, nil
}

// ResolveToolPath finds the addr2line binary: an explicit path (validated
// to exist), else the KAS_ALIAS_ADDR2LINE environment variable, else
// whatever `addr2line` resolves to on PATH.
func ResolveToolPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("addr2line tool path %q: %w", explicit, err)
		}
		return explicit, nil
	}
	if env := os.Getenv("KAS_ALIAS_ADDR2LINE"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
	}
	path, err := exec.LookPath("addr2line")
	if err != nil {
		return "", fmt.Errorf("addr2line not found on PATH: %w", err)
	}
	return path, nil
}
