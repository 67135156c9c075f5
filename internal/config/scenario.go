package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// builtin holds the transition expectations of the shipped scenarios.
var builtin = map[types.ScenarioKind]struct {
	ignore   []types.LifecycleState
	expected []types.LifecycleState
}{
	types.ScenarioEnterStandby: {
		ignore:   []types.LifecycleState{types.StateEnteringStandby, types.StatePending},
		expected: []types.LifecycleState{types.StateInService, types.StateStandby},
	},
	types.ScenarioExitStandby: {
		ignore:   []types.LifecycleState{types.StatePending},
		expected: []types.LifecycleState{types.StateStandby, types.StateInService},
	},
}

// Resolve returns sc with every blank field filled from the project
// settings and the scenario kind, and relative paths anchored at cfg.Dir.
func Resolve(cfg *types.ProjectConfig, sc types.ScenarioConfig) (types.ScenarioConfig, error) {
	b, ok := builtin[sc.Kind]
	if !ok {
		return sc, fmt.Errorf("unknown kind %q (want %s or %s)", sc.Kind, types.ScenarioEnterStandby, types.ScenarioExitStandby)
	}

	base := cfg.ResourcePrefix + "automation-asg-" + string(sc.Kind)
	if sc.Name != string(sc.Kind) {
		base += "-" + sc.Name
	}
	if sc.DocumentName == "" {
		sc.DocumentName = base
	}
	if sc.StackName == "" {
		sc.StackName = base
	}
	if sc.RoleName == "" {
		sc.RoleName = cfg.ResourcePrefix + sc.Name + "-test"
	}
	if sc.DocumentFile == "" {
		sc.DocumentFile = filepath.Join("documents", string(sc.Kind)+".json")
	}
	if sc.TemplateFile == "" {
		sc.TemplateFile = DefaultTemplateFile
	}
	sc.DocumentFile = anchor(cfg.Dir, sc.DocumentFile)
	sc.TemplateFile = anchor(cfg.Dir, sc.TemplateFile)

	if sc.Ignore == nil {
		sc.Ignore = toStrings(b.ignore)
	}
	if len(sc.Expected) == 0 {
		sc.Expected = toStrings(b.expected)
	}
	for _, s := range sc.Expected {
		if slices.Contains(sc.Ignore, s) {
			return sc, fmt.Errorf("expected state %q is also ignored", s)
		}
	}
	return sc, nil
}

func anchor(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func toStrings(states []types.LifecycleState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
