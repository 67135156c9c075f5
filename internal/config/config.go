// Package config handles loading and validation of standbyprobe.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// FileName is the project configuration file name.
const FileName = "standbyprobe.yaml"

// Environment overrides.
const (
	EnvRegion   = "AWS_REGION"
	EnvPrefix   = "STANDBYPROBE_PREFIX"
	EnvLogLevel = "STANDBYPROBE_LOG_LEVEL"
)

// Defaults.
const (
	DefaultRegion         = "us-west-2"
	DefaultResourcePrefix = "standbyprobe-"
	DefaultInstanceType   = "t3.medium"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultTemplateFile   = "templates/asg.yml"
)

// Load reads standbyprobe.yaml from dir, applies defaults and environment
// overrides, and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Dir = dir

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Write marshals cfg into dir/standbyprobe.yaml. An existing file is left
// untouched and reported as an error.
func Write(dir string, cfg *types.ProjectConfig) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a starter configuration running both built-in scenarios.
func Default(region, ami string) *types.ProjectConfig {
	if region == "" {
		region = DefaultRegion
	}
	cfg := &types.ProjectConfig{
		Region:         region,
		ResourcePrefix: DefaultResourcePrefix,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		InstanceType:   DefaultInstanceType,
		AMIs:           map[string]string{region: ami},
		Scenarios: []types.ScenarioConfig{
			{Name: string(types.ScenarioEnterStandby), Kind: types.ScenarioEnterStandby},
			{Name: string(types.ScenarioExitStandby), Kind: types.ScenarioExitStandby},
		},
		Alerts: []types.AlertConfig{{Type: types.AlertConsole}},
	}
	return cfg
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.ResourcePrefix == "" {
		cfg.ResourcePrefix = DefaultResourcePrefix
	}
	if cfg.InstanceType == "" {
		cfg.InstanceType = DefaultInstanceType
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if len(cfg.Scenarios) == 0 {
		cfg.Scenarios = Default(cfg.Region, "").Scenarios
	}
	if cfg.Store != nil && cfg.Store.Region == "" {
		cfg.Store.Region = cfg.Region
	}
}

// applyEnv overrides file settings with environment variables.
func applyEnv(cfg *types.ProjectConfig, getenv func(string) string) {
	if v := getenv(EnvRegion); v != "" {
		cfg.Region = v
	}
	if v := getenv(EnvPrefix); v != "" {
		cfg.ResourcePrefix = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.AMI() == "" {
		return fmt.Errorf("amis.%s is required", cfg.Region)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("logFormat must be json or text, got %q", cfg.LogFormat)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := ParsePolling(cfg.Polling); err != nil {
		return err
	}
	if cfg.Store != nil && cfg.Store.TableName == "" {
		return errors.New("store.tableName is required")
	}

	seen := make(map[string]bool, len(cfg.Scenarios))
	for i, sc := range cfg.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenarios[%d]: name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("scenarios[%d]: duplicate name %q", i, sc.Name)
		}
		seen[sc.Name] = true
		if _, err := Resolve(cfg, sc); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}
	return nil
}

// Timeouts are the parsed polling settings.
type Timeouts struct {
	StateInterval     time.Duration
	StateMaxWait      time.Duration
	InstanceInterval  time.Duration
	InstanceMaxWait   time.Duration
	ExecutionInterval time.Duration
	ExecutionMaxWait  time.Duration
}

// ParsePolling converts duration strings, filling in defaults for blanks.
func ParsePolling(p types.PollingConfig) (Timeouts, error) {
	t := Timeouts{
		StateInterval:     5 * time.Second,
		StateMaxWait:      60 * time.Second,
		InstanceInterval:  10 * time.Second,
		InstanceMaxWait:   30 * time.Minute,
		ExecutionInterval: 5 * time.Second,
		ExecutionMaxWait:  30 * time.Minute,
	}
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"polling.stateInterval", p.StateInterval, &t.StateInterval},
		{"polling.stateMaxWait", p.StateMaxWait, &t.StateMaxWait},
		{"polling.instanceInterval", p.InstanceInterval, &t.InstanceInterval},
		{"polling.instanceMaxWait", p.InstanceMaxWait, &t.InstanceMaxWait},
		{"polling.executionInterval", p.ExecutionInterval, &t.ExecutionInterval},
		{"polling.executionMaxWait", p.ExecutionMaxWait, &t.ExecutionMaxWait},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Timeouts{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if d <= 0 {
			return Timeouts{}, fmt.Errorf("%s must be positive", f.name)
		}
		*f.dst = d
	}
	return t, nil
}
