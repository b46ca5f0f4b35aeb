package audit

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Load reads every non-empty line of path as a JSON entry. Per the
// permissive-reset contract, any parse failure on any line is treated
// as a missing chain rather than a partial one: a single corrupted line
// must never block an unrelated vault operation from reading an
// otherwise-empty log, so Load returns an empty slice instead of an
// error in that case.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, nil // malformed file: chain considered reset
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Append reads the log's current last entry, links a new entry to it,
// and appends exactly one line with a trailing newline for atomic
// append semantics. No locking is performed; concurrent writers are
// out of contract.
func Append(path string, action Action, actor Actor, target Target, ctx Context) (Entry, error) {
	entries, err := Load(path)
	if err != nil {
		return Entry{}, err
	}

	previousHash := ""
	if len(entries) > 0 {
		previousHash = entries[len(entries)-1].Hash
	}

	entry := NewEntry(action, actor, target, ctx, previousHash)

	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding audit entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Entry{}, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return Entry{}, fmt.Errorf("writing audit entry: %w", err)
	}

	return entry, nil
}

// Rotate splits entries into an archive (the head, all but the last
// keepTail entries) written as-is to archivePath, and a tail written to
// mainPath as a fresh, independently valid chain — no attempt is made
// to re-link the tail back to the archive.
func Rotate(mainPath, archivePath string, keepTail int) error {
	entries, err := Load(mainPath)
	if err != nil {
		return err
	}
	if len(entries) <= keepTail {
		return nil
	}

	head := entries[:len(entries)-keepTail]
	tail := entries[len(entries)-keepTail:]

	if err := writeChain(archivePath, head); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	rebuilt := make([]Entry, len(tail))
	previousHash := ""
	for i, e := range tail {
		e.PreviousHash = previousHash
		e.Hash = computeHash(e)
		rebuilt[i] = e
		previousHash = e.Hash
	}

	if err := writeChain(mainPath, rebuilt); err != nil {
		return fmt.Errorf("writing rotated main log: %w", err)
	}

	return nil
}

func writeChain(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// csvHeader is the fixed, documented header for CSV export.
var csvHeader = []string{"id", "timestamp", "action", "actorName", "actorType", "targetType", "secretKeys", "branch", "commit"}

// ExportJSON renders entries as a JSON array.
func ExportJSON(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

// ExportCSV renders entries with the fixed header. Per the documented
// best-effort policy, fields are joined with the standard library CSV
// writer, which already applies RFC 4180 quoting for embedded commas —
// stricter than the source exporter, and the limitation this spec
// permits an implementation to resolve either way.
func ExportCSV(entries []Entry) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			e.Timestamp,
			string(e.Action),
			e.Actor.Name,
			string(e.Actor.Type),
			string(e.Target.Type),
			strings.Join(e.Target.SecretKeys, ";"),
			e.Context.Branch,
			e.Context.Commit,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// ExportPlaintext renders one human-readable line per entry, touching
// only fields that were never secret to begin with.
func ExportPlaintext(entries []Entry) []byte {
	var sb strings.Builder
	for _, e := range entries {
		ts := e.Timestamp
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ts = t.Format("2006-01-02 15:04:05 MST")
		}
		fmt.Fprintf(&sb, "%s  %-16s  %s (%s)", ts, e.Action, e.Actor.Name, e.Actor.Type)
		if len(e.Target.SecretKeys) > 0 {
			fmt.Fprintf(&sb, "  keys=%s", strings.Join(e.Target.SecretKeys, ","))
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}
