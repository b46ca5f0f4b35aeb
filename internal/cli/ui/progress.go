package ui

import (
	"fmt"
	"strings"
)

// RuleProgress renders a one-line textual progress indicator for a unit
// of a migration run — one line per rule applied, not a full-screen
// redraw — so it stays readable when `migrate apply` output is piped to
// a file or a CI log.
func RuleProgress(current, total int, message string) string {
	percent := float64(current) / float64(total) * 100
	filled := int(percent / 5)
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", 20-filled) + "]"
	return fmt.Sprintf("%s %s %.0f%% (%d/%d)", message, bar, percent, current, total)
}
