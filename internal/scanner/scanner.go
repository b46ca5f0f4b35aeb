package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultMaxFileSize = 1 << 20 // 1 MiB

// DefaultExclusions covers VCS, build, install, dependency, and lock
// directories that are never worth scanning.
var DefaultExclusions = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", "dist", "build", "out", "target",
	".venv", "venv", "__pycache__",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
	".min.js", ".min.css",
}

// DefaultExtensions is the inclusion allowlist covering typical source,
// config, and env files.
var DefaultExtensions = []string{
	".go", ".js", ".jsx", ".ts", ".tsx", ".py", ".rb", ".java", ".kt",
	".c", ".cc", ".cpp", ".h", ".hpp", ".rs", ".php", ".sh", ".bash",
	".yml", ".yaml", ".json", ".toml", ".ini", ".env", ".conf", ".cfg",
	".tf", ".tfvars", ".properties", "",
}

// Options controls a Scan call.
type Options struct {
	Patterns     []Pattern
	Exclusions   []string
	Extensions   []string
	MaxFileSize  int64
	Redact       bool
}

func (o Options) withDefaults() Options {
	if len(o.Patterns) == 0 {
		o.Patterns = DefaultPatterns()
	}
	o.Exclusions = append(append([]string{}, DefaultExclusions...), o.Exclusions...)
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = defaultMaxFileSize
	}
	return o
}

// Match is one located occurrence of a pattern.
type Match struct {
	File        string
	Line        int
	Column      int
	PatternName string
	Severity    Severity
	Description string
	Match       string
	LineContent string
}

// Result is the outcome of a full-tree scan.
type Result struct {
	HasSecrets   bool
	FilesScanned int
	Matches      []Match
	Summary      map[string]int // keyed by Severity.String()
}

// Scan walks root breadth-first, applying Options.Exclusions to prune
// subtrees, Options.Extensions to filter files, and Options.MaxFileSize
// to skip oversized files. Per-file I/O errors are absorbed; only
// failure to access root itself propagates.
func Scan(root string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	result := Result{Summary: map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0}}

	if _, err := os.Stat(root); err != nil {
		return result, err
	}

	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if excluded(path, entry.Name(), opts.Exclusions) {
				continue
			}

			if entry.IsDir() {
				queue = append(queue, path)
				continue
			}

			if !included(entry.Name(), opts.Extensions) {
				continue
			}

			info, err := entry.Info()
			if err != nil || info.Size() > opts.MaxFileSize {
				continue
			}

			matches, err := scanFile(path, opts)
			if err != nil {
				continue
			}
			result.FilesScanned++
			result.Matches = append(result.Matches, matches...)
		}
	}

	sort.Slice(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	for _, m := range result.Matches {
		result.Summary[m.Severity.String()]++
	}
	result.HasSecrets = len(result.Matches) > 0

	return result, nil
}

func excluded(path, name string, exclusions []string) bool {
	for _, ex := range exclusions {
		if strings.Contains(path, ex) || strings.Contains(name, ex) {
			return true
		}
	}
	return false
}

func included(name string, extensions []string) bool {
	ext := filepath.Ext(name)
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func scanFile(path string, opts Options) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []Match
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		for _, p := range opts.Patterns {
			locs := p.Regexp.FindAllStringIndex(line, -1)
			for _, loc := range locs {
				raw := line[loc[0]:loc[1]]
				lineContent := line
				if opts.Redact {
					raw = Redact(raw)
					lineContent = strings.ReplaceAll(lineContent, line[loc[0]:loc[1]], Redact(line[loc[0]:loc[1]]))
				}
				matches = append(matches, Match{
					File:        path,
					Line:        lineNo,
					Column:      loc[0] + 1,
					PatternName: p.Name,
					Severity:    p.Severity,
					Description: p.Description,
					Match:       raw,
					LineContent: lineContent,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}

// Redact replaces a matched substring longer than 8 bytes with
// first4…last4, and shorter matches with a fixed mask.
func Redact(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// PreCommitHookSnippet is the stable shell snippet the scanner exposes
// for `nevr scan --install-hook`. It is an artifact, not logic: it
// shells out to the same CLI and fails the commit on findings.
const PreCommitHookSnippet = `#!/bin/sh
# Installed by: nevr scan --install-hook
nevr scan --ci .
exit $?
`
