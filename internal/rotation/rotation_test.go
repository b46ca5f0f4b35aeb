package rotation

import (
	"path/filepath"
	"testing"
	"time"
)

func TestClassifyAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		record Record
		want   Status
	}{
		{"fresh", Record{LastRotated: now.AddDate(0, 0, -10).Format(time.RFC3339), MaxAgeDays: 30}, StatusFresh},
		{"warning", Record{LastRotated: now.AddDate(0, 0, -20).Format(time.RFC3339), MaxAgeDays: 30}, StatusWarning},
		{"expired", Record{LastRotated: now.AddDate(0, 0, -40).Format(time.RFC3339), MaxAgeDays: 30}, StatusExpired},
		{"unknown no maxage", Record{LastRotated: now.Format(time.RFC3339), MaxAgeDays: 0}, StatusUnknown},
		{"unknown bad date", Record{LastRotated: "not-a-date", MaxAgeDays: 30}, StatusUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyAt(c.record, now); got != c.want {
				t.Fatalf("ClassifyAt(%+v) = %v, want %v", c.record, got, c.want)
			}
		})
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotation.json")

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if len(f.Records) != 0 {
		t.Fatalf("expected empty records for missing file")
	}

	f.Upsert(Record{Key: "API_KEY", LastRotated: time.Now().UTC().Format(time.RFC3339), MaxAgeDays: 90})
	if err := Save(path, f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec, ok := reloaded.FindRecord("API_KEY")
	if !ok {
		t.Fatal("expected API_KEY record")
	}
	if rec.MaxAgeDays != 90 {
		t.Fatalf("MaxAgeDays = %d, want 90", rec.MaxAgeDays)
	}
}
