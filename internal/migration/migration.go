// Package migration applies declarative rename/transform/split/merge/
// add/delete rules to a parsed key-value mapping, with preview, apply,
// and rollback support. The tagged-variant rule shape follows the
// dynamic-objects-become-sum-types guidance: each variant's payload is a
// distinct struct field, and only the fields meaningful for Kind are
// populated.
package migration

import (
	"fmt"
	"os"
	"time"
)

// Kind selects which rule variant is active.
type Kind int

const (
	KindRename Kind = iota
	KindTransform
	KindSplit
	KindMerge
	KindDelete
	KindAdd
)

// TransformFunc mutates a single value, optionally consulting the full
// mapping (e.g. to compute a value derived from a sibling key).
type TransformFunc func(oldValue string, mapping map[string]string) (string, bool)

// SplitFunc expands one value into a set of new key-value pairs.
type SplitFunc func(value string, mapping map[string]string) map[string]string

// MergeFunc combines several keys' values (read from mapping) into one.
type MergeFunc func(mapping map[string]string) string

// DefaultFunc produces the value for an add rule when the default is a
// producer rather than a literal string.
type DefaultFunc func() string

// Predicate gates whether a rule applies, given the mapping as it
// stands when the rule is reached.
type Predicate func(mapping map[string]string) bool

// Rule is a tagged variant; only the fields for its Kind are read.
type Rule struct {
	ID          string
	Description string
	Breaking    bool
	Kind        Kind
	Predicate   Predicate

	RenameFrom string
	RenameTo   string

	TransformKey string
	Transform    TransformFunc

	SplitFrom string
	SplitTo   []string
	Split     SplitFunc

	MergeFrom []string
	MergeTo   string
	Merge     MergeFunc

	DeleteKey string

	AddKey          string
	AddDefault      string
	AddDefaultFunc  DefaultFunc
}

// Plan is an ordered sequence of rules between two schema versions.
type Plan struct {
	ID                 string
	FromVersion         string
	ToVersion           string
	Rules               []Rule
	HasBreakingChanges bool
}

// Change records one rule's effect on the mapping, for the result's
// changes list.
type Change struct {
	RuleID string
	Kind   Kind
	Before map[string]string
	After  map[string]string
}

// Fault records a runtime error raised by a user-supplied function.
type Fault struct {
	RuleID       string
	ErrorMessage string
}

// Result is returned by both Preview and Apply.
type Result struct {
	Applied    int
	Skipped    int
	Success    bool
	Changes    []Change
	Faults     []Fault
	Mapping    map[string]string
	BackupPath string
}

// Preview evaluates plan against a deep copy of mapping and returns the
// same result record Apply would, without mutating the input or
// touching any file.
func Preview(plan Plan, mapping map[string]string) Result {
	work := cloneMap(mapping)
	return run(plan, work)
}

// Apply evaluates plan in place against the mapping loaded from path,
// optionally writing a timestamped backup first. If dryRun is true,
// Apply behaves exactly like Preview. serialize renders the resulting
// mapping back to the on-disk text format.
func Apply(plan Plan, mapping map[string]string, path string, writeBackup bool, dryRun bool, serialize func(map[string]string) string) (Result, error) {
	if dryRun {
		return Preview(plan, mapping), nil
	}

	var backupPath string
	if writeBackup && path != "" {
		if original, err := os.ReadFile(path); err == nil {
			backupPath = fmt.Sprintf("%s.%s.bak", path, time.Now().UTC().Format("20060102T150405Z"))
			if err := os.WriteFile(backupPath, original, 0o600); err != nil {
				return Result{}, fmt.Errorf("writing backup: %w", err)
			}
		}
	}

	result := run(plan, mapping)
	result.BackupPath = backupPath

	if path != "" && serialize != nil {
		if err := os.WriteFile(path, []byte(serialize(result.Mapping)), 0o600); err != nil {
			return result, fmt.Errorf("writing migrated file: %w", err)
		}
	}

	return result, nil
}

// Rollback copies backupPath over target, inferred from the backup name
// by stripping the timestamp suffix when target is empty.
func Rollback(backupPath, target string) error {
	if target == "" {
		target = inferTargetFromBackupName(backupPath)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("restoring from backup: %w", err)
	}
	return nil
}

func inferTargetFromBackupName(backupPath string) string {
	// backupPath is "<target>.<timestamp>.bak"; strip the last two
	// dot-separated segments.
	n := len(backupPath)
	dots := 0
	for i := n - 1; i >= 0; i-- {
		if backupPath[i] == '.' {
			dots++
			if dots == 2 {
				return backupPath[:i]
			}
		}
	}
	return backupPath
}

func run(plan Plan, mapping map[string]string) Result {
	result := Result{Mapping: mapping, Success: true}

	for _, rule := range plan.Rules {
		if rule.Predicate != nil && !rule.Predicate(mapping) {
			result.Skipped++
			continue
		}

		applied, change, fault := applyRule(rule, mapping)
		if fault != nil {
			result.Faults = append(result.Faults, *fault)
			result.Success = false
			continue
		}
		if !applied {
			result.Skipped++
			continue
		}

		result.Applied++
		if change != nil {
			result.Changes = append(result.Changes, *change)
		}
	}

	return result
}

func applyRule(rule Rule, mapping map[string]string) (applied bool, change *Change, fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{RuleID: rule.ID, ErrorMessage: fmt.Sprintf("%v", r)}
			applied = false
			change = nil
		}
	}()

	switch rule.Kind {
	case KindRename:
		value, ok := mapping[rule.RenameFrom]
		if !ok {
			return false, nil, nil
		}
		before := map[string]string{rule.RenameFrom: value}
		mapping[rule.RenameTo] = value
		delete(mapping, rule.RenameFrom)
		after := map[string]string{rule.RenameTo: value}
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, Before: before, After: after}, nil

	case KindTransform:
		old, ok := mapping[rule.TransformKey]
		if !ok {
			return false, nil, nil
		}
		newValue, changed := rule.Transform(old, mapping)
		if !changed {
			return false, nil, nil
		}
		before := map[string]string{rule.TransformKey: old}
		mapping[rule.TransformKey] = newValue
		after := map[string]string{rule.TransformKey: newValue}
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, Before: before, After: after}, nil

	case KindSplit:
		value, ok := mapping[rule.SplitFrom]
		if !ok {
			return false, nil, nil
		}
		before := map[string]string{rule.SplitFrom: value}
		produced := rule.Split(value, mapping)
		for k, v := range produced {
			mapping[k] = v
		}
		delete(mapping, rule.SplitFrom)
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, Before: before, After: produced}, nil

	case KindMerge:
		for _, k := range rule.MergeFrom {
			if _, ok := mapping[k]; !ok {
				return false, nil, nil
			}
		}
		before := make(map[string]string, len(rule.MergeFrom))
		for _, k := range rule.MergeFrom {
			before[k] = mapping[k]
		}
		merged := rule.Merge(mapping)
		mapping[rule.MergeTo] = merged
		for _, k := range rule.MergeFrom {
			delete(mapping, k)
		}
		after := map[string]string{rule.MergeTo: merged}
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, Before: before, After: after}, nil

	case KindDelete:
		value, ok := mapping[rule.DeleteKey]
		if !ok {
			return false, nil, nil
		}
		delete(mapping, rule.DeleteKey)
		before := map[string]string{rule.DeleteKey: value}
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, Before: before}, nil

	case KindAdd:
		if _, ok := mapping[rule.AddKey]; ok {
			return false, nil, nil
		}
		value := rule.AddDefault
		if rule.AddDefaultFunc != nil {
			value = rule.AddDefaultFunc()
		}
		mapping[rule.AddKey] = value
		after := map[string]string{rule.AddKey: value}
		return true, &Change{RuleID: rule.ID, Kind: rule.Kind, After: after}, nil
	}

	return false, nil, nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
