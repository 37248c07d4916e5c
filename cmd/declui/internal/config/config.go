package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/declui/pkg/core"
	"github.com/go-drift/declui/pkg/parser"
	"github.com/go-drift/declui/pkg/validator"
)

// FileName is the optional project configuration file.
const FileName = "declui.yaml"

// Config represents the optional declui.yaml configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Parser    ParserConfig    `yaml:"parser"`
	Validator ValidatorConfig `yaml:"validator"`
	Boundary  BoundaryConfig  `yaml:"boundary"`
	State     StateConfig     `yaml:"state"`
}

// ProjectConfig names the project.
type ProjectConfig struct {
	Name string `yaml:"name,omitempty"`
}

// ParserConfig mirrors parser.Options. Unset booleans keep the defaults.
type ParserConfig struct {
	AllowComments       *bool  `yaml:"allowComments,omitempty"`
	AllowTrailingCommas *bool  `yaml:"allowTrailingCommas,omitempty"`
	ResolveReferences   *bool  `yaml:"resolveReferences,omitempty"`
	MaxDepth            int    `yaml:"maxDepth,omitempty"`
	Strict              bool   `yaml:"strict,omitempty"`
	BaseDir             string `yaml:"baseDir,omitempty"`
}

// ValidatorConfig mirrors validator.Options.
type ValidatorConfig struct {
	Strict                    bool `yaml:"strict,omitempty"`
	AllowAdditionalProperties bool `yaml:"allowAdditionalProperties,omitempty"`
	MaxDepth                  int  `yaml:"maxDepth,omitempty"`
}

// BoundaryConfig configures the boundary the preview wraps documents in.
type BoundaryConfig struct {
	Strategy         string `yaml:"strategy,omitempty"`
	RetryDelay       string `yaml:"retryDelay,omitempty"`
	MaxRetryAttempts int    `yaml:"maxRetryAttempts,omitempty"`
	ShowErrorDetails bool   `yaml:"showErrorDetails,omitempty"`
}

// StateConfig locates the default state snapshot.
type StateConfig struct {
	Snapshot string `yaml:"snapshot,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root        string
	ModulePath  string
	ProjectName string
	Parser      parser.Options
	Validator   validator.Options
	Boundary    core.BoundaryConfig
	// Snapshot is absolute, or empty when unset.
	Snapshot string
}

// LoadOptional reads declui.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads declui.yaml (if present) from dir and resolves defaults.
// dir need not be a Go module; the module path is empty then.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	modulePath := modulePath(dir)

	name := strings.TrimSpace(cfg.Project.Name)
	if name == "" {
		name = defaultProjectName(modulePath, dir)
	}

	popts, err := cfg.Parser.options(dir)
	if err != nil {
		return nil, err
	}
	bcfg, err := cfg.Boundary.config()
	if err != nil {
		return nil, err
	}

	vopts := validator.DefaultOptions()
	vopts.Strict = cfg.Validator.Strict
	vopts.AllowAdditionalProperties = cfg.Validator.AllowAdditionalProperties
	if cfg.Validator.MaxDepth < 0 {
		return nil, fmt.Errorf("validator.maxDepth must be non-negative (got %d)", cfg.Validator.MaxDepth)
	}
	if cfg.Validator.MaxDepth > 0 {
		vopts.MaxDepth = cfg.Validator.MaxDepth
	}

	snapshot := cfg.State.Snapshot
	if snapshot != "" && !filepath.IsAbs(snapshot) {
		snapshot = filepath.Join(dir, snapshot)
	}

	return &Resolved{
		Root:        dir,
		ModulePath:  modulePath,
		ProjectName: name,
		Parser:      popts,
		Validator:   vopts,
		Boundary:    bcfg,
		Snapshot:    snapshot,
	}, nil
}

func (c ParserConfig) options(dir string) (parser.Options, error) {
	opts := parser.DefaultOptions()
	if c.AllowComments != nil {
		opts.AllowComments = *c.AllowComments
	}
	if c.AllowTrailingCommas != nil {
		opts.AllowTrailingCommas = *c.AllowTrailingCommas
	}
	if c.ResolveReferences != nil {
		opts.ResolveReferences = *c.ResolveReferences
	}
	if c.MaxDepth < 0 {
		return opts, fmt.Errorf("parser.maxDepth must be non-negative (got %d)", c.MaxDepth)
	}
	if c.MaxDepth > 0 {
		opts.MaxDepth = c.MaxDepth
	}
	opts.Strict = c.Strict
	if c.BaseDir != "" {
		opts.BaseDir = c.BaseDir
		if !filepath.IsAbs(opts.BaseDir) {
			opts.BaseDir = filepath.Join(dir, opts.BaseDir)
		}
	}
	return opts, nil
}

func (c BoundaryConfig) config() (core.BoundaryConfig, error) {
	cfg := core.DefaultBoundaryConfig()
	cfg.Name = "preview"
	if c.Strategy != "" {
		s, err := core.ParseStrategy(c.Strategy)
		if err != nil {
			return cfg, fmt.Errorf("boundary.strategy: %w", err)
		}
		cfg.Strategy = s
	}
	if c.RetryDelay != "" {
		d, err := time.ParseDuration(c.RetryDelay)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("boundary.retryDelay must be a positive duration (got %q)", c.RetryDelay)
		}
		cfg.RetryDelay = d
	}
	if c.MaxRetryAttempts < 0 {
		return cfg, fmt.Errorf("boundary.maxRetryAttempts must be non-negative (got %d)", c.MaxRetryAttempts)
	}
	if c.MaxRetryAttempts > 0 {
		cfg.MaxRetryAttempts = c.MaxRetryAttempts
	}
	cfg.ShowErrorDetails = c.ShowErrorDetails
	return cfg, nil
}

// FindProjectRoot walks up from start to the nearest directory holding
// declui.yaml or go.mod. It returns start when neither is found.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for d := dir; ; {
		for _, marker := range []string{FileName, "go.mod"} {
			if _, err := os.Stat(filepath.Join(d, marker)); err == nil {
				return d, nil
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir, nil
		}
		d = parent
	}
}

func modulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

func defaultProjectName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		modName, _, ok := module.SplitPathVersion(modulePath)
		if ok {
			parts := strings.Split(modName, "/")
			base = parts[len(parts)-1]
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "declui_project"
	}
	return base
}
