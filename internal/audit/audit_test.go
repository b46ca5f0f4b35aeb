package audit

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestChainIntegrity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	const n = 5
	var last Entry
	for i := 0; i < n; i++ {
		e, err := Append(path, ActionVaultPush, Actor{Name: "alice", Type: ActorUser}, Target{Type: TargetVault}, Context{})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		last = e
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("len(entries) = %d, want %d", len(entries), n)
	}

	result := Verify(entries)
	if !result.Valid || result.Entries != n {
		t.Fatalf("Verify = %+v, want valid with %d entries", result, n)
	}
	if entries[n-1].Hash != last.Hash {
		t.Fatalf("last entry hash mismatch")
	}

	// Mutating any field causes at least one error to be reported.
	entries[0].Action = ActionVaultPull
	result = Verify(entries)
	if result.Valid {
		t.Fatal("expected verify to fail after mutation")
	}
}

func TestChainLink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	first, err := Append(path, ActionVaultPush, Actor{Name: "alice"}, Target{Type: TargetVault}, Context{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := Append(path, ActionSecretRotate, Actor{Name: "alice"}, Target{Type: TargetSecret, SecretKeys: []string{"API_KEY"}}, Context{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if first.PreviousHash != "" {
		t.Fatalf("first entry previousHash = %q, want empty", first.PreviousHash)
	}
	if second.PreviousHash != first.Hash {
		t.Fatalf("second.PreviousHash = %q, want %q", second.PreviousHash, first.Hash)
	}
}

func TestScenarioS3(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	_, err := Append(path, ActionVaultPush, Actor{Name: "alice"}, Target{Type: TargetVault, SecretKeys: nil}, Context{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, err = Append(path, ActionSecretRotate, Actor{Name: "alice"}, Target{Type: TargetSecret, SecretKeys: []string{"API_KEY"}}, Context{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	result := Verify(entries)
	if !result.Valid || result.Entries != 2 {
		t.Fatalf("Verify = %+v, want valid with 2 entries", result)
	}
	if entries[1].PreviousHash != entries[0].Hash {
		t.Fatal("chain link mismatch")
	}

	entries[0].Action = ActionVaultPull
	result = Verify(entries)
	if result.Valid {
		t.Fatal("expected invalid after mutating entry 0")
	}

	foundIndex0 := false
	foundIndex1 := false
	for _, e := range result.Errors {
		if e.Index == 0 {
			foundIndex0 = true
		}
		if e.Index == 1 {
			foundIndex1 = true
		}
	}
	if !foundIndex0 || !foundIndex1 {
		t.Fatalf("expected errors at index 0 and 1, got %+v", result.Errors)
	}
}

func TestNoLeak(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	canary := "super-secret-plaintext-value-12345"

	_, err := Append(path, ActionSecretUpdate, Actor{Name: "alice"}, Target{Type: TargetSecret, SecretKeys: []string{"API_KEY"}}, Context{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data, err := ExportJSON(entries)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if strings.Contains(string(data), canary) {
		t.Fatal("audit export leaked plaintext canary")
	}
}

func TestMalformedLogResetsSilently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	if err := writeChain(path, nil); err != nil {
		t.Fatalf("writeChain: %v", err)
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load on empty valid file: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}

	result := Verify(entries)
	if !result.Valid {
		t.Fatal("expected trivially-valid empty chain")
	}
}

func TestQueryAndSummarize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	Append(path, ActionVaultPush, Actor{Name: "alice", Type: ActorUser}, Target{Type: TargetVault}, Context{})
	Append(path, ActionSecretRotate, Actor{Name: "bob", Type: ActorUser}, Target{Type: TargetSecret, SecretKeys: []string{"API_KEY"}}, Context{})

	entries, _ := Load(path)

	filtered := Apply(entries, Query{Actions: []Action{ActionSecretRotate}})
	if len(filtered) != 1 {
		t.Fatalf("len(filtered) = %d, want 1", len(filtered))
	}

	summary := Summarize(entries)
	if summary.CountsByAction[ActionVaultPush] != 1 {
		t.Fatalf("CountsByAction[push] = %d, want 1", summary.CountsByAction[ActionVaultPush])
	}
	if len(summary.AffectedKeys) != 1 || summary.AffectedKeys[0] != "API_KEY" {
		t.Fatalf("AffectedKeys = %v", summary.AffectedKeys)
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "audit.log")
	archive := filepath.Join(dir, "audit.archive.log")

	for i := 0; i < 5; i++ {
		Append(main, ActionVaultPush, Actor{Name: "alice"}, Target{Type: TargetVault}, Context{})
	}

	if err := Rotate(main, archive, 2); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	tail, err := Load(main)
	if err != nil {
		t.Fatalf("Load main: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("len(tail) = %d, want 2", len(tail))
	}
	if !Verify(tail).Valid {
		t.Fatal("rotated tail is not a valid chain")
	}
	if tail[0].PreviousHash != "" {
		t.Fatalf("rotated tail head previousHash = %q, want empty", tail[0].PreviousHash)
	}

	head, err := Load(archive)
	if err != nil {
		t.Fatalf("Load archive: %v", err)
	}
	if len(head) != 3 {
		t.Fatalf("len(head) = %d, want 3", len(head))
	}
	if !Verify(head).Valid {
		t.Fatal("archived head is not a valid chain")
	}
}
