package migration

import (
	"sort"

	"github.com/nevrhq/nevr/internal/schemadiff"
)

// FromSchemaDiff derives a plan from two schema versions: renames first
// (only pairs present in renameMap where both sides genuinely appear in
// the respective schema), then deletions for old-only keys, then
// additions for new-only keys. Deletions are marked breaking; additions
// are non-breaking unless disabled in defaults.
func FromSchemaDiff(oldSchema, newSchema schemadiff.Schema, renameMap map[string]string, defaults map[string]string) Plan {
	plan := Plan{}

	renamedFrom := make(map[string]bool)
	var renameKeys []string
	for from := range renameMap {
		renameKeys = append(renameKeys, from)
	}
	sort.Strings(renameKeys)

	for _, from := range renameKeys {
		to := renameMap[from]
		if _, okOld := oldSchema[from]; !okOld {
			continue
		}
		if _, okNew := newSchema[to]; !okNew {
			continue
		}
		plan.Rules = append(plan.Rules, Rule{
			ID:         "rename-" + from,
			Kind:       KindRename,
			RenameFrom: from,
			RenameTo:   to,
		})
		renamedFrom[from] = true
	}

	var removedKeys []string
	for key := range oldSchema {
		if _, stillPresent := newSchema[key]; !stillPresent && !renamedFrom[key] {
			removedKeys = append(removedKeys, key)
		}
	}
	sort.Strings(removedKeys)
	for _, key := range removedKeys {
		plan.Rules = append(plan.Rules, Rule{
			ID:        "delete-" + key,
			Kind:      KindDelete,
			DeleteKey: key,
			Breaking:  true,
		})
		plan.HasBreakingChanges = true
	}

	renamedTo := make(map[string]bool)
	for _, to := range renameMap {
		renamedTo[to] = true
	}
	var addedKeys []string
	for key := range newSchema {
		if _, existedBefore := oldSchema[key]; !existedBefore && !renamedTo[key] {
			addedKeys = append(addedKeys, key)
		}
	}
	sort.Strings(addedKeys)
	for _, key := range addedKeys {
		plan.Rules = append(plan.Rules, Rule{
			ID:         "add-" + key,
			Kind:       KindAdd,
			AddKey:     key,
			AddDefault: defaults[key],
		})
	}

	return plan
}
