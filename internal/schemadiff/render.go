package schemadiff

import (
	"fmt"
	"sort"
	"strings"
)

// RenderGuide produces a deterministic, diffable text report with
// sections for renames, additions, removals, and changes, including a
// before/after table for changes where both descriptors are known.
func RenderGuide(result Result) string {
	var sb strings.Builder

	renamed := append([]Rename{}, result.Renamed...)
	sort.Slice(renamed, func(i, j int) bool { return renamed[i].From < renamed[j].From })
	if len(renamed) > 0 {
		sb.WriteString("## Renamed\n\n")
		for _, r := range renamed {
			fmt.Fprintf(&sb, "- %s -> %s (confidence %.2f)\n", r.From, r.To, r.Confidence)
		}
		sb.WriteString("\n")
	}

	added := append([]string{}, result.Added...)
	sort.Strings(added)
	if len(added) > 0 {
		sb.WriteString("## Added\n\n")
		for _, k := range added {
			fmt.Fprintf(&sb, "- %s\n", k)
		}
		sb.WriteString("\n")
	}

	removed := append([]string{}, result.Removed...)
	sort.Strings(removed)
	if len(removed) > 0 {
		sb.WriteString("## Removed\n\n")
		for _, k := range removed {
			fmt.Fprintf(&sb, "- %s\n", k)
		}
		sb.WriteString("\n")
	}

	changed := append([]Change{}, result.Changed...)
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })
	if len(changed) > 0 {
		sb.WriteString("## Changed\n\n")
		for _, c := range changed {
			marker := "non-breaking"
			if c.Breaking {
				marker = "breaking"
			}
			fmt.Fprintf(&sb, "- %s (%s): %s\n", c.Key, marker, c.Reason)
			fmt.Fprintf(&sb, "  | field | before | after |\n")
			fmt.Fprintf(&sb, "  |---|---|---|\n")
			fmt.Fprintf(&sb, "  | type | %s | %s |\n", c.Old.Type, c.New.Type)
			fmt.Fprintf(&sb, "  | optional | %t | %t |\n", c.Old.Optional, c.New.Optional)
			fmt.Fprintf(&sb, "  | hasDefault | %t | %t |\n", c.Old.HasDefault, c.New.HasDefault)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "isBreaking: %t\n", result.IsBreaking)

	return sb.String()
}
