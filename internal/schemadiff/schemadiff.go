// Package schemadiff structurally compares two keyed schema descriptions,
// classifying each change as breaking or non-breaking and heuristically
// detecting renames via Levenshtein similarity. The enum-with-String()
// idiom for Kind follows the query-type/masking-strategy pattern found
// elsewhere in the retrieved pack.
package schemadiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the base type of a schema descriptor, after unwrapping any
// optional/default wrapper layers.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindEnum
	KindLiteral
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// MarshalJSON renders Kind as its lowercase name for human-authored
// schema files.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses Kind from its lowercase name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "string":
		*k = KindString
	case "number":
		*k = KindNumber
	case "boolean":
		*k = KindBoolean
	case "enum":
		*k = KindEnum
	case "literal":
		*k = KindLiteral
	case "unknown", "":
		*k = KindUnknown
	default:
		return fmt.Errorf("schemadiff: unknown type kind %q", s)
	}
	return nil
}

// Descriptor is the structural type record extracted from a validation
// schema for diffing purposes.
type Descriptor struct {
	Type       Kind
	Optional   bool
	HasDefault bool
	EnumValues []string
	Min        *float64
	Max        *float64
	Format     string // "url", "email", "uuid", "integer", ...
}

// Schema is a named set of descriptors.
type Schema map[string]Descriptor

// ChangeKind classifies the shape of a per-key change.
type ChangeKind int

const (
	ChangeBecameRequired ChangeKind = iota
	ChangeTypeChanged
	ChangeEnumNarrowed
	ChangeMinTightened
	ChangeMaxTightened
	ChangeOther
)

// Change records one classified difference for a key present in both
// schemas.
type Change struct {
	Key      string
	Kind     ChangeKind
	Breaking bool
	Reason   string
	Old      Descriptor
	New      Descriptor
}

// Rename is a heuristically detected rename between the removed and
// added key sets.
type Rename struct {
	From       string
	To         string
	Confidence float64
}

// Options tunes rename detection and added-key heuristics.
type Options struct {
	RenameThreshold      float64 // default 0.7
	DisableAddedHeuristic bool
}

func (o Options) withDefaults() Options {
	if o.RenameThreshold == 0 {
		o.RenameThreshold = 0.7
	}
	return o
}

// Result is the 4-tuple diff output plus the aggregate isBreaking flag.
type Result struct {
	Added      []string
	Removed    []string
	Changed    []Change
	Renamed    []Rename
	IsBreaking bool
}

// Diff compares oldSchema to newSchema.
func Diff(oldSchema, newSchema Schema, opts Options) Result {
	opts = opts.withDefaults()

	var result Result
	var removedOnly []string
	var addedOnly []string

	for key, oldDesc := range oldSchema {
		newDesc, stillPresent := newSchema[key]
		if !stillPresent {
			removedOnly = append(removedOnly, key)
			continue
		}
		if change, changed := classify(key, oldDesc, newDesc); changed {
			result.Changed = append(result.Changed, change)
		}
	}

	for key := range newSchema {
		if _, existedBefore := oldSchema[key]; !existedBefore {
			addedOnly = append(addedOnly, key)
		}
	}

	result.Renamed = detectRenames(removedOnly, addedOnly, oldSchema, opts.RenameThreshold)
	renamedFrom := make(map[string]bool)
	renamedTo := make(map[string]bool)
	for _, r := range result.Renamed {
		renamedFrom[r.From] = true
		renamedTo[r.To] = true
	}

	for _, key := range removedOnly {
		if renamedFrom[key] {
			continue
		}
		result.Removed = append(result.Removed, key)
		if !oldSchema[key].Optional {
			result.IsBreaking = true
		}
	}

	for _, key := range addedOnly {
		if renamedTo[key] {
			continue
		}
		result.Added = append(result.Added, key)
		desc := newSchema[key]
		if !opts.DisableAddedHeuristic && !desc.Optional && !desc.HasDefault {
			result.IsBreaking = true
		}
	}

	for _, c := range result.Changed {
		if c.Breaking {
			result.IsBreaking = true
		}
	}
	if len(result.Renamed) > 0 {
		result.IsBreaking = true
	}

	return result
}

func classify(key string, oldDesc, newDesc Descriptor) (Change, bool) {
	switch {
	case oldDesc.Optional && !newDesc.Optional && !newDesc.HasDefault:
		return Change{Key: key, Kind: ChangeBecameRequired, Breaking: true,
			Reason: "Variable became required", Old: oldDesc, New: newDesc}, true

	case oldDesc.Type != newDesc.Type:
		return Change{Key: key, Kind: ChangeTypeChanged, Breaking: true,
			Reason: "Type changed from " + oldDesc.Type.String() + " to " + newDesc.Type.String(),
			Old: oldDesc, New: newDesc}, true

	case enumNarrowed(oldDesc.EnumValues, newDesc.EnumValues):
		return Change{Key: key, Kind: ChangeEnumNarrowed, Breaking: true,
			Reason: "Enum narrowed: removed " + strings.Join(removedValues(oldDesc.EnumValues, newDesc.EnumValues), ", "),
			Old: oldDesc, New: newDesc}, true

	case minTightened(oldDesc.Min, newDesc.Min):
		return Change{Key: key, Kind: ChangeMinTightened, Breaking: true,
			Reason: "Minimum tightened", Old: oldDesc, New: newDesc}, true

	case maxTightened(oldDesc.Max, newDesc.Max):
		return Change{Key: key, Kind: ChangeMaxTightened, Breaking: true,
			Reason: "Maximum tightened", Old: oldDesc, New: newDesc}, true
	}

	if descriptorsDiffer(oldDesc, newDesc) {
		return Change{Key: key, Kind: ChangeOther, Breaking: false,
			Reason: "Non-breaking change in type descriptor", Old: oldDesc, New: newDesc}, true
	}

	return Change{}, false
}

func descriptorsDiffer(a, b Descriptor) bool {
	if a.Format != b.Format || a.HasDefault != b.HasDefault || a.Optional != b.Optional {
		return true
	}
	if (a.Min == nil) != (b.Min == nil) || (a.Max == nil) != (b.Max == nil) {
		return true
	}
	if a.Min != nil && b.Min != nil && *a.Min != *b.Min {
		return true
	}
	if a.Max != nil && b.Max != nil && *a.Max != *b.Max {
		return true
	}
	if len(a.EnumValues) != len(b.EnumValues) {
		return true
	}
	return false
}

func enumNarrowed(oldValues, newValues []string) bool {
	if len(oldValues) == 0 {
		return false
	}
	newSet := make(map[string]bool, len(newValues))
	for _, v := range newValues {
		newSet[v] = true
	}
	for _, v := range oldValues {
		if !newSet[v] {
			return true
		}
	}
	return false
}

func removedValues(oldValues, newValues []string) []string {
	newSet := make(map[string]bool, len(newValues))
	for _, v := range newValues {
		newSet[v] = true
	}
	var removed []string
	for _, v := range oldValues {
		if !newSet[v] {
			removed = append(removed, v)
		}
	}
	return removed
}

func minTightened(oldMin, newMin *float64) bool {
	return oldMin != nil && newMin != nil && *newMin > *oldMin
}

func maxTightened(oldMax, newMax *float64) bool {
	return oldMax != nil && newMax != nil && *newMax < *oldMax
}

// detectRenames pairs removed and added keys greedily in list order when
// their lowercased Levenshtein similarity meets threshold; each added
// key matches at most one removed key.
func detectRenames(removed, added []string, oldSchema Schema, threshold float64) []Rename {
	var renames []Rename
	usedAdded := make(map[string]bool)

	for _, from := range removed {
		bestTo := ""
		bestScore := 0.0
		for _, to := range added {
			if usedAdded[to] {
				continue
			}
			score := similarity(strings.ToLower(from), strings.ToLower(to))
			if score > bestScore {
				bestScore = score
				bestTo = to
			}
		}
		if bestTo != "" && bestScore >= threshold {
			renames = append(renames, Rename{From: from, To: bestTo, Confidence: bestScore})
			usedAdded[bestTo] = true
		}
	}

	return renames
}

// similarity returns 1 - (levenshtein distance / max length), in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	la, lb := len(ar), len(br)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
