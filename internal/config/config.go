// Package config provides configuration file and environment support for codi.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tognete/codi/internal/llm"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = ".codi.yaml"

// Store backends for conversation history.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// SupportedStores lists the valid values for the store setting.
var SupportedStores = []string{StoreFile, StoreSQLite}

// Duration is a custom type that handles YAML duration parsing.
// Supports both Go duration format ("5m", "300s") and numeric seconds.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config represents the .codi.yaml configuration file.
type Config struct {
	Provider        *string   `yaml:"provider"`
	Model           *string   `yaml:"model"`
	Timeout         *Duration `yaml:"timeout"`
	Retries         *int      `yaml:"retries"`
	Temperature     *float64  `yaml:"temperature"`
	Addr            *string   `yaml:"addr"`
	Store           *string   `yaml:"store"`
	HistoryDir      *string   `yaml:"history_dir"`
	Workspace       *string   `yaml:"workspace"`
	MaxContextBytes *int      `yaml:"max_context_bytes"`
}

// LoadResult contains the loaded config and any warnings encountered.
type LoadResult struct {
	Config    *Config
	ConfigDir string
	Warnings  []string
}

// LoadFromDirWithWarnings reads .codi.yaml from the specified directory and returns warnings.
// Returns an empty config (not error) if the file doesn't exist.
func LoadFromDirWithWarnings(dir string) (*LoadResult, error) {
	result, err := LoadFromPathWithWarnings(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, err
	}
	result.ConfigDir = dir
	return result, nil
}

// LoadFromPathWithWarnings reads a config file and returns warnings for unknown keys.
// Returns an empty config (not error) if the file doesn't exist.
// Returns an error if the file exists but is invalid YAML or holds invalid values.
func LoadFromPathWithWarnings(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadResult{Config: &Config{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	warnings := checkUnknownKeys(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}

	return &LoadResult{Config: &cfg, Warnings: warnings}, nil
}

// knownTopLevelKeys are the valid top-level keys in the config file.
var knownTopLevelKeys = []string{
	"provider", "model", "timeout", "retries", "temperature",
	"addr", "store", "history_dir", "workspace", "max_context_bytes",
}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Let the main parser report the error
		return nil
	}

	var warnings []string
	for key := range raw {
		if slices.Contains(knownTopLevelKeys, key) {
			continue
		}
		warning := fmt.Sprintf("unknown key %q in %s", key, ConfigFileName)
		if suggestion := findSimilar(key, knownTopLevelKeys); suggestion != "" {
			warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		warnings = append(warnings, warning)
	}
	slices.Sort(warnings)
	return warnings
}

// findSimilar finds the most similar string from candidates using Levenshtein distance.
// Returns empty string if no candidate is similar enough (threshold: 3 edits).
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		if dist := levenshtein(input, candidate); dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	if c.Provider != nil && !slices.Contains(llm.SupportedProviders, *c.Provider) {
		return fmt.Errorf("provider must be one of %v, got %q", llm.SupportedProviders, *c.Provider)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", *c.Retries)
	}
	if c.Timeout != nil && *c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", time.Duration(*c.Timeout))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", *c.Temperature)
	}
	if c.Store != nil && !slices.Contains(SupportedStores, *c.Store) {
		return fmt.Errorf("store must be one of %v, got %q", SupportedStores, *c.Store)
	}
	if c.MaxContextBytes != nil && *c.MaxContextBytes < 1 {
		return fmt.Errorf("max_context_bytes must be >= 1, got %d", *c.MaxContextBytes)
	}
	return nil
}

// Defaults holds the built-in default values.
var Defaults = ResolvedConfig{
	Provider:        llm.DefaultProvider,
	Timeout:         2 * time.Minute,
	Retries:         3,
	Temperature:     0.7,
	Addr:            ":8000",
	Store:           StoreFile,
	HistoryDir:      filepath.Join(".codi", "conversations"),
	MaxContextBytes: 200_000,
}

// ResolvedConfig holds the final resolved configuration values.
type ResolvedConfig struct {
	Provider        string
	Model           string
	Timeout         time.Duration
	Retries         int
	Temperature     float64
	Addr            string
	Store           string
	HistoryDir      string
	Workspace       string
	MaxContextBytes int
}

// Validate checks the resolved values, so flag and environment overrides
// get the same checks as the config file.
func (r ResolvedConfig) Validate() error {
	timeout := Duration(r.Timeout)
	cfg := Config{
		Provider:        &r.Provider,
		Timeout:         &timeout,
		Retries:         &r.Retries,
		Temperature:     &r.Temperature,
		Store:           &r.Store,
		MaxContextBytes: &r.MaxContextBytes,
	}
	return cfg.Validate()
}

// FlagState tracks whether a flag was explicitly set.
type FlagState struct {
	ProviderSet  bool
	ModelSet     bool
	TimeoutSet   bool
	RetriesSet   bool
	AddrSet      bool
	StoreSet     bool
	WorkspaceSet bool
}

// Resolve merges config file values with env vars and flags.
// Precedence: flags > env vars > config file > defaults
func Resolve(cfg *Config, env EnvState, flags FlagState, flagValues ResolvedConfig) ResolvedConfig {
	result := Defaults

	if cfg != nil {
		setIf(&result.Provider, cfg.Provider)
		setIf(&result.Model, cfg.Model)
		if cfg.Timeout != nil {
			result.Timeout = cfg.Timeout.AsDuration()
		}
		setIf(&result.Retries, cfg.Retries)
		setIf(&result.Temperature, cfg.Temperature)
		setIf(&result.Addr, cfg.Addr)
		setIf(&result.Store, cfg.Store)
		setIf(&result.HistoryDir, cfg.HistoryDir)
		setIf(&result.Workspace, cfg.Workspace)
		setIf(&result.MaxContextBytes, cfg.MaxContextBytes)
	}

	setIf(&result.Provider, env.Provider)
	setIf(&result.Model, env.Model)
	setIf(&result.Timeout, env.Timeout)
	setIf(&result.Retries, env.Retries)
	setIf(&result.Addr, env.Addr)
	setIf(&result.Store, env.Store)
	setIf(&result.HistoryDir, env.HistoryDir)

	if flags.ProviderSet {
		result.Provider = flagValues.Provider
	}
	if flags.ModelSet {
		result.Model = flagValues.Model
	}
	if flags.TimeoutSet {
		result.Timeout = flagValues.Timeout
	}
	if flags.RetriesSet {
		result.Retries = flagValues.Retries
	}
	if flags.AddrSet {
		result.Addr = flagValues.Addr
	}
	if flags.StoreSet {
		result.Store = flagValues.Store
	}
	if flags.WorkspaceSet {
		result.Workspace = flagValues.Workspace
	}

	return result
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
