// Package envfile parses and serializes the KEY=value text format used for
// the plaintext that the vault codec encrypts and the migration engine
// rewrites.
package envfile

import (
	"strings"
)

// EntryKind tags a parsed line of an env block.
type EntryKind int

const (
	// KindPair is a KEY=value line.
	KindPair EntryKind = iota
	// KindComment is a line whose first non-space byte is '#'.
	KindComment
	// KindBlank is an empty (or all-whitespace) line.
	KindBlank
)

// Entry is one line of an env block, in source order.
type Entry struct {
	Kind  EntryKind
	Key   string
	Value string
	Raw   string // original line, for comments and blanks
}

// Block is an ordered sequence of entries plus the derived key->value
// mapping. Order is preserved for serialization aesthetics; a later pair
// with the same key overwrites the earlier one in Values, but both
// entries remain in Entries.
type Block struct {
	Entries []Entry
	Values  map[string]string
}

// Parse splits s into lines on '\n' and applies the grammar from the
// format boundary: trim surrounding whitespace; skip empty lines and
// lines whose first non-space byte is '#'; split on the first '=';
// re-trim key and value; strip a matching pair of surrounding quotes
// from the value, unescaping \" inside a double-quoted value only.
// A later occurrence of a key overwrites an earlier one in Values.
func Parse(s string) *Block {
	block := &Block{Values: make(map[string]string)}

	lines := strings.Split(s, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			block.Entries = append(block.Entries, Entry{Kind: KindBlank, Raw: line})
			continue
		}
		if trimmed[0] == '#' {
			block.Entries = append(block.Entries, Entry{Kind: KindComment, Raw: line})
			continue
		}

		idx := strings.IndexByte(trimmed, '=')
		if idx < 0 {
			// No '=' found: not a valid pair line, preserve as a comment-like
			// passthrough rather than dropping it silently.
			block.Entries = append(block.Entries, Entry{Kind: KindComment, Raw: line})
			continue
		}

		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])
		value = unquote(value)

		block.Entries = append(block.Entries, Entry{Kind: KindPair, Key: key, Value: value})
		block.Values[key] = value
	}

	return block
}

// unquote strips a matching pair of surrounding ASCII quotes and, for
// double quotes only, unescapes \" inside. No other escape sequence is
// recognized.
func unquote(value string) string {
	if len(value) < 2 {
		return value
	}

	first := value[0]
	last := value[len(value)-1]
	if first != last || (first != '"' && first != '\'') {
		return value
	}

	inner := value[1 : len(value)-1]
	if first == '"' {
		inner = strings.ReplaceAll(inner, `\"`, `"`)
	}
	return inner
}

// needsQuoting reports whether a value must be quoted on serialization:
// it contains whitespace, '#', '"', '\'', or '='.
func needsQuoting(value string) bool {
	return strings.ContainsAny(value, " \t\n\r#\"'=")
}

// Serialize renders pairs as KEY=VALUE lines in insertion order, one per
// key, using the last value recorded for duplicate keys. Values needing
// quoting are wrapped in double quotes with embedded '"' escaped.
func Serialize(block *Block) string {
	var sb strings.Builder
	seen := make(map[string]bool)

	for _, e := range block.Entries {
		if e.Kind != KindPair {
			continue
		}
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true

		value := block.Values[e.Key]
		sb.WriteString(e.Key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(value))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// SerializeMap renders a bare mapping, in the order given by keys, as
// KEY=VALUE lines only — no comments, no blanks. Used by writers that
// choose not to preserve surrounding formatting.
func SerializeMap(values map[string]string, keys []string) string {
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(formatValue(values[k]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatValue(value string) string {
	if !needsQuoting(value) {
		return value
	}
	escaped := strings.ReplaceAll(value, `"`, `\"`)
	return `"` + escaped + `"`
}

// Keys returns the pair keys in first-seen insertion order.
func (b *Block) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, e := range b.Entries {
		if e.Kind != KindPair || seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		keys = append(keys, e.Key)
	}
	return keys
}

// CountPairs returns the number of non-empty, non-comment lines
// containing '=' — the metric the vault codec records as
// metadata.variables.
func CountPairs(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		if strings.Contains(trimmed, "=") {
			count++
		}
	}
	return count
}
