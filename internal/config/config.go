// Package config holds the backend configuration: YAML file loading,
// defaults, and option merging.
package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// Workspace is the project root served by the backend.
	Workspace string `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	// Model selects the tokenizer family used for budget counting.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Options tunes the subsystems.
	Options *Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Options tunes individual subsystems.
type Options struct {
	// DataDir stores the message log database. Empty selects a
	// .stitch directory under the workspace.
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	// DocsRoot holds downloaded documentation sets.
	DocsRoot string `json:"docs_root,omitempty" yaml:"docs_root,omitempty"`
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	// ExcludeGlobs are patterns excluded from workspace scanning.
	ExcludeGlobs []string `json:"exclude_globs,omitempty" yaml:"exclude_globs,omitempty"`
	// Postprocess tunes the context postprocessor.
	Postprocess *PostprocessOptions `json:"postprocess,omitempty" yaml:"postprocess,omitempty"`
}

// PostprocessOptions tunes the context postprocessor scoring. Zero values
// select defaults.
type PostprocessOptions struct {
	// UsefulBackground is the baseline score for lines outside symbols.
	UsefulBackground float64 `json:"useful_background,omitempty" yaml:"useful_background,omitempty"`
	// UsefulSymbolDefault scores lines inside any symbol before hints.
	UsefulSymbolDefault float64 `json:"useful_symbol_default,omitempty" yaml:"useful_symbol_default,omitempty"`
	// DegradeParentCoef scales a hint's score when lifting its parent.
	DegradeParentCoef float64 `json:"degrade_parent_coef,omitempty" yaml:"degrade_parent_coef,omitempty"`
	// DegradeBodyCoef scales symbol body lines below the declaration.
	DegradeBodyCoef float64 `json:"degrade_body_coef,omitempty" yaml:"degrade_body_coef,omitempty"`
	// CommentsPropagateUpCoef controls comment score inheritance.
	CommentsPropagateUpCoef float64 `json:"comments_propogate_up_coef,omitempty" yaml:"comments_propogate_up_coef,omitempty"`
	// DisableGapClosing turns off one-line gap bridging.
	DisableGapClosing bool `json:"disable_gap_closing,omitempty" yaml:"disable_gap_closing,omitempty"`
	// TakeFloor is the strict lower bound for line selection.
	TakeFloor float64 `json:"take_floor,omitempty" yaml:"take_floor,omitempty"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		Options: &Options{
			HTTPAddr: "127.0.0.1:8350",
		},
	}
}

// Load reads a YAML config file layered over defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.merge(&fileCfg), nil
}

func (c *Config) merge(t *Config) *Config {
	if t == nil {
		return c
	}
	c.Workspace = cmp.Or(t.Workspace, c.Workspace)
	c.Model = cmp.Or(t.Model, c.Model)
	if t.Options != nil {
		if c.Options == nil {
			c.Options = &Options{}
		}
		c.Options.DataDir = cmp.Or(t.Options.DataDir, c.Options.DataDir)
		c.Options.DocsRoot = cmp.Or(t.Options.DocsRoot, c.Options.DocsRoot)
		c.Options.HTTPAddr = cmp.Or(t.Options.HTTPAddr, c.Options.HTTPAddr)
		c.Options.ExcludeGlobs = sortedCompact(append(c.Options.ExcludeGlobs, t.Options.ExcludeGlobs...))
		if t.Options.Postprocess != nil {
			c.Options.Postprocess = t.Options.Postprocess
		}
	}
	return c
}

// DataDir resolves the storage directory for the given workspace.
func (c *Config) DataDir() string {
	if c.Options != nil && c.Options.DataDir != "" {
		return c.Options.DataDir
	}
	return filepath.Join(c.Workspace, ".stitch")
}

func sortedCompact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
