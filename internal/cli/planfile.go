package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nevrhq/nevr/internal/migration"
)

// diskRule is the JSON shape of a migration rule that can cross process
// boundaries without a function reference. Per the external interface
// contract, rules needing a transform/split/merge function require a
// pre-declared library keyed by name — which library mechanism is used
// is left to the caller; diskRule supports the variants that need no
// function at all.
type diskRule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Breaking    bool   `json:"breaking,omitempty" yaml:"breaking,omitempty"`
	Kind        string `json:"kind" yaml:"kind"`

	RenameFrom string `json:"renameFrom,omitempty" yaml:"renameFrom,omitempty"`
	RenameTo   string `json:"renameTo,omitempty" yaml:"renameTo,omitempty"`
	DeleteKey  string `json:"deleteKey,omitempty" yaml:"deleteKey,omitempty"`
	AddKey     string `json:"addKey,omitempty" yaml:"addKey,omitempty"`
	AddDefault string `json:"addDefault,omitempty" yaml:"addDefault,omitempty"`
}

type diskPlan struct {
	ID                 string     `json:"id" yaml:"id"`
	FromVersion        string     `json:"fromVersion" yaml:"fromVersion"`
	ToVersion          string     `json:"toVersion" yaml:"toVersion"`
	CreatedAt          string     `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	HasBreakingChanges bool       `json:"hasBreakingChanges" yaml:"hasBreakingChanges"`
	Rules              []diskRule `json:"rules" yaml:"rules"`
}

// isYAMLPath reports whether path should be decoded as YAML rather than
// JSON, based on its extension.
func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// loadDiskPlan decodes the raw on-disk plan shape, in JSON or YAML
// depending on path's extension. A missing file yields an empty plan
// rather than an error, so `migrate add-rule` can seed a brand new plan
// file on its first run.
func loadDiskPlan(path string) (diskPlan, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return diskPlan{}, nil
	}
	if err != nil {
		return diskPlan{}, fmt.Errorf("reading plan file: %w", err)
	}

	var dp diskPlan
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &dp); err != nil {
			return diskPlan{}, fmt.Errorf("decoding plan file: %w", err)
		}
	} else if err := json.Unmarshal(data, &dp); err != nil {
		return diskPlan{}, fmt.Errorf("decoding plan file: %w", err)
	}
	return dp, nil
}

// saveDiskPlan writes dp back to path, in JSON or YAML depending on
// path's extension.
func saveDiskPlan(path string, dp diskPlan) error {
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = yaml.Marshal(dp)
	} else {
		data, err = json.MarshalIndent(dp, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding plan file: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// readPlanFile decodes the on-disk plan format into a migration.Plan.
// Plans may be authored as JSON or, when the path ends in .yaml/.yml,
// as YAML — both decode into the same diskPlan shape.
func readPlanFile(path string) (migration.Plan, error) {
	dp, err := loadDiskPlan(path)
	if err != nil {
		return migration.Plan{}, err
	}

	plan := migration.Plan{
		ID:                 dp.ID,
		FromVersion:        dp.FromVersion,
		ToVersion:          dp.ToVersion,
		HasBreakingChanges: dp.HasBreakingChanges,
	}

	for _, r := range dp.Rules {
		rule := migration.Rule{ID: r.ID, Description: r.Description, Breaking: r.Breaking}
		switch r.Kind {
		case "rename":
			rule.Kind = migration.KindRename
			rule.RenameFrom = r.RenameFrom
			rule.RenameTo = r.RenameTo
		case "delete":
			rule.Kind = migration.KindDelete
			rule.DeleteKey = r.DeleteKey
		case "add":
			rule.Kind = migration.KindAdd
			rule.AddKey = r.AddKey
			rule.AddDefault = r.AddDefault
		default:
			return migration.Plan{}, fmt.Errorf("rule %s: kind %q requires a function and cannot be loaded from disk", r.ID, r.Kind)
		}
		plan.Rules = append(plan.Rules, rule)
	}

	return plan, nil
}
