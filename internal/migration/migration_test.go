package migration

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestAddIdempotence(t *testing.T) {
	plan := Plan{Rules: []Rule{{ID: "add-1", Kind: KindAdd, AddKey: "FOO", AddDefault: "bar"}}}

	m1 := map[string]string{}
	r1 := Preview(plan, m1)

	r2 := Preview(plan, cloneMap(r1.Mapping))

	if !reflect.DeepEqual(r1.Mapping, r2.Mapping) {
		t.Fatalf("mapping changed on second apply: %#v vs %#v", r1.Mapping, r2.Mapping)
	}
}

func TestRenameInverse(t *testing.T) {
	original := map[string]string{"A": "1", "B": "2"}
	plan := Plan{Rules: []Rule{
		{ID: "r1", Kind: KindRename, RenameFrom: "A", RenameTo: "B2"},
		{ID: "r2", Kind: KindRename, RenameFrom: "B2", RenameTo: "A"},
	}}

	result := Preview(plan, original)
	if !reflect.DeepEqual(result.Mapping, map[string]string{"A": "1", "B": "2"}) {
		t.Fatalf("mapping after inverse rename = %#v", result.Mapping)
	}
}

func TestPreviewPurity(t *testing.T) {
	input := map[string]string{"DB_URL": "postgres://x", "EXTRA": "y"}
	snapshot := cloneMap(input)

	plan := Plan{Rules: []Rule{{ID: "r1", Kind: KindRename, RenameFrom: "DB_URL", RenameTo: "DATABASE_URL"}}}

	preview := Preview(plan, input)

	if !reflect.DeepEqual(input, snapshot) {
		t.Fatalf("Preview mutated input: %#v vs %#v", input, snapshot)
	}

	applyResult := Preview(plan, cloneMap(snapshot))
	if !reflect.DeepEqual(preview.Changes, applyResult.Changes) {
		t.Fatalf("changes differ: %#v vs %#v", preview.Changes, applyResult.Changes)
	}
}

func TestSkippedRuleNotRecordedAsError(t *testing.T) {
	plan := Plan{Rules: []Rule{{ID: "r1", Kind: KindRename, RenameFrom: "MISSING", RenameTo: "X"}}}
	result := Preview(plan, map[string]string{})

	if result.Skipped != 1 || result.Applied != 0 {
		t.Fatalf("result = %+v, want skipped=1 applied=0", result)
	}
	if !result.Success {
		t.Fatal("a skipped rule must not mark the result as failed")
	}
}

func TestFaultRecordedFromPanickingTransform(t *testing.T) {
	boom := func(old string, mapping map[string]string) (string, bool) {
		panic("boom")
	}
	plan := Plan{Rules: []Rule{{ID: "r1", Kind: KindTransform, TransformKey: "A", Transform: boom}}}
	result := Preview(plan, map[string]string{"A": "1"})

	if result.Success {
		t.Fatal("expected Success=false after a rule fault")
	}
	if len(result.Faults) != 1 || result.Faults[0].RuleID != "r1" {
		t.Fatalf("Faults = %+v", result.Faults)
	}
}

// TestScenarioS5 mirrors the literal scenario from the spec.
func TestScenarioS5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DB_URL=postgres://x\nEXTRA=y\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mapping := map[string]string{"DB_URL": "postgres://x", "EXTRA": "y"}
	plan := Plan{Rules: []Rule{{ID: "r1", Kind: KindRename, RenameFrom: "DB_URL", RenameTo: "DATABASE_URL"}}}

	serialize := func(m map[string]string) string {
		return "DATABASE_URL=" + m["DATABASE_URL"] + "\nEXTRA=" + m["EXTRA"] + "\n"
	}

	result, err := Apply(plan, mapping, path, true, false, serialize)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if result.Applied != 1 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want applied=1 skipped=0", result)
	}
	if len(result.Changes) != 1 || result.Changes[0].Kind != KindRename {
		t.Fatalf("Changes = %+v", result.Changes)
	}
	want := map[string]string{"DATABASE_URL": "postgres://x", "EXTRA": "y"}
	if !reflect.DeepEqual(result.Mapping, want) {
		t.Fatalf("Mapping = %#v, want %#v", result.Mapping, want)
	}
	if result.BackupPath == "" {
		t.Fatal("expected a backup path")
	}
	if _, err := os.Stat(result.BackupPath); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
}

func TestRollback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	original := "A=1\n"
	if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mapping := map[string]string{"A": "1"}
	plan := Plan{Rules: []Rule{{ID: "r1", Kind: KindDelete, DeleteKey: "A"}}}
	serialize := func(m map[string]string) string { return "" }

	result, err := Apply(plan, mapping, path, true, false, serialize)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := Rollback(result.BackupPath, path); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(restored) != original {
		t.Fatalf("restored = %q, want %q", restored, original)
	}
}
