// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package modbundle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hashicorp/go-modbundle/modulebundle"
)

// DefaultConfigFilename is the config filename looked for when none is
// given explicitly.
const DefaultConfigFilename = "modbundle.yaml"

// Build modes. Mode adjusts emitter and transform defaults only; graph
// construction and assembly semantics are identical across modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
	ModeNone        = "none"
)

// Config is the bundler configuration, normally loaded from a
// modbundle.yaml file at the project root.
type Config struct {
	// ProjectRoot is the absolute directory all relative paths in the
	// configuration are interpreted against. Set from the config file's
	// location by [LoadConfig]; callers constructing a Config directly
	// must set it themselves.
	ProjectRoot string `yaml:"-"`

	// Entry names the bundles to build and the specifier each starts
	// from. A single bare specifier is accepted as shorthand for a bundle
	// named "main".
	Entry EntryConfig `yaml:"entry"`

	Output  OutputConfig  `yaml:"output"`
	Module  ModuleConfig  `yaml:"module"`
	Resolve ResolveConfig `yaml:"resolve"`
	Build   BuildConfig   `yaml:"build"`

	// Mode is one of "development", "production", or "none". Empty means
	// production.
	Mode string `yaml:"mode"`
}

// EntryConfig is the bundle-name-to-specifier mapping of a configuration.
//
// In YAML it may be given either as a mapping or as a single scalar
// specifier, which is shorthand for a mapping with the one key "main".
type EntryConfig map[string]string

func (e *EntryConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var specifier string
		if err := node.Decode(&specifier); err != nil {
			return err
		}
		*e = EntryConfig{"main": specifier}
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		*e = EntryConfig(m)
		return nil
	default:
		return fmt.Errorf("line %d: entry must be a specifier string or a mapping of bundle name to specifier", node.Line)
	}
}

// Names returns the bundle names in sorted order, which is the order
// entries are added to a build so that repeated builds are deterministic.
func (e EntryConfig) Names() []string {
	ret := make([]string, 0, len(e))
	for name := range e {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// OutputConfig says where and under what names artifacts are written.
type OutputConfig struct {
	// Path is the target directory, absolute or relative to the project
	// root.
	Path string `yaml:"path"`

	// Filename is the bundle filename template, supporting the [name] and
	// [contenthash] tokens. Empty means "[name].bundle.js".
	Filename string `yaml:"filename"`

	// PublicPath is prefixed to asset references exported by the asset
	// transform.
	PublicPath string `yaml:"public_path"`
}

// RuleConfig is one transform rule: a path pattern and the transform names
// to apply to matching files.
type RuleConfig struct {
	Test string   `yaml:"test"`
	Use  []string `yaml:"use"`
}

// ModuleConfig holds the transform rule configuration.
type ModuleConfig struct {
	Rules []RuleConfig `yaml:"rules"`

	// ChainOrder is "last-first" or "declared"; see
	// [modulebundle.ChainOrder]. Empty means last-first.
	ChainOrder string `yaml:"chain_order"`
}

// ResolveConfig adjusts specifier resolution.
type ResolveConfig struct {
	Extensions  []string          `yaml:"extensions"`
	IndexNames  []string          `yaml:"index_names"`
	PackageDir  string            `yaml:"package_dir"`
	Constraints map[string]string `yaml:"constraints"`
}

// BuildConfig adjusts graph construction.
type BuildConfig struct {
	Parallelism   int      `yaml:"parallelism"`
	ModuleTimeout Duration `yaml:"module_timeout"`
}

// Duration is a [time.Duration] that unmarshals from the usual duration
// string forms, such as "45s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads and parses the configuration file at the given path and
// validates the result. The project root becomes the directory containing
// the file, and a relative output path is resolved against it.
func LoadConfig(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	config, err := ParseConfig(src)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to locate configuration: %w", err)
	}
	config.ProjectRoot = filepath.Dir(absPath)
	if config.Output.Path != "" && !filepath.IsAbs(config.Output.Path) {
		config.Output.Path = filepath.Join(config.ProjectRoot, config.Output.Path)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// ParseConfig parses configuration source without validating it, rejecting
// any key the configuration schema doesn't define.
func ParseConfig(src []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var config Config
	if err := dec.Decode(&config); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("configuration is empty")
		}
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for problems that would otherwise
// surface as confusing failures deep inside a build.
func (c *Config) Validate() error {
	if c.ProjectRoot == "" {
		return fmt.Errorf("project root is not set")
	}
	if !filepath.IsAbs(c.ProjectRoot) {
		return fmt.Errorf("project root %q is not an absolute path", c.ProjectRoot)
	}
	if len(c.Entry) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	for name, specifier := range c.Entry {
		if name == "" {
			return fmt.Errorf("entry with empty bundle name")
		}
		if specifier == "" {
			return fmt.Errorf("entry %q has an empty specifier", name)
		}
	}

	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if len(c.Entry) > 1 && c.Output.Filename != "" && !strings.Contains(c.Output.Filename, "[name]") {
		return fmt.Errorf("output.filename must contain [name] when building more than one bundle")
	}

	for i, rule := range c.Module.Rules {
		if rule.Test == "" {
			return fmt.Errorf("module.rules[%d]: test pattern is required", i)
		}
		if _, err := regexp.Compile(rule.Test); err != nil {
			return fmt.Errorf("module.rules[%d]: invalid test pattern: %w", i, err)
		}
		if len(rule.Use) == 0 {
			return fmt.Errorf("module.rules[%d]: at least one transform is required", i)
		}
	}
	if _, err := modulebundle.ParseChainOrder(c.Module.ChainOrder); err != nil {
		return fmt.Errorf("module.chain_order: %w", err)
	}

	switch c.Mode {
	case "", ModeDevelopment, ModeProduction, ModeNone:
		// ok
	default:
		return fmt.Errorf("invalid mode %q: must be %q, %q, or %q", c.Mode, ModeDevelopment, ModeProduction, ModeNone)
	}

	if c.Build.Parallelism < 0 {
		return fmt.Errorf("build.parallelism must not be negative")
	}
	if c.Build.ModuleTimeout < 0 {
		return fmt.Errorf("build.module_timeout must not be negative")
	}
	return nil
}

// EffectiveMode returns the configured mode with the default applied.
func (c *Config) EffectiveMode() string {
	if c.Mode == "" {
		return ModeProduction
	}
	return c.Mode
}
