package schemadiff

import "testing"

func ptr(f float64) *float64 { return &f }

func TestBreakingClassifications(t *testing.T) {
	cases := []struct {
		name string
		old  Schema
		new  Schema
	}{
		{
			name: "removed required key",
			old:  Schema{"A": {Type: KindString}},
			new:  Schema{},
		},
		{
			name: "type changed",
			old:  Schema{"A": {Type: KindString}},
			new:  Schema{"A": {Type: KindNumber}},
		},
		{
			name: "optional became required without default",
			old:  Schema{"A": {Type: KindString, Optional: true}},
			new:  Schema{"A": {Type: KindString}},
		},
		{
			name: "min tightened",
			old:  Schema{"A": {Type: KindNumber, Min: ptr(0)}},
			new:  Schema{"A": {Type: KindNumber, Min: ptr(5)}},
		},
		{
			name: "max tightened",
			old:  Schema{"A": {Type: KindNumber, Max: ptr(100)}},
			new:  Schema{"A": {Type: KindNumber, Max: ptr(10)}},
		},
		{
			name: "enum narrowed",
			old:  Schema{"A": {Type: KindEnum, EnumValues: []string{"x", "y"}}},
			new:  Schema{"A": {Type: KindEnum, EnumValues: []string{"x"}}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := Diff(c.old, c.new, Options{})
			if !result.IsBreaking {
				t.Fatalf("%s: IsBreaking = false, want true; result=%+v", c.name, result)
			}
		})
	}
}

func TestNonBreakingClassifications(t *testing.T) {
	cases := []struct {
		name string
		old  Schema
		new  Schema
	}{
		{
			name: "added optional key",
			old:  Schema{},
			new:  Schema{"A": {Type: KindString, Optional: true}},
		},
		{
			name: "required became optional",
			old:  Schema{"A": {Type: KindString}},
			new:  Schema{"A": {Type: KindString, Optional: true}},
		},
		{
			name: "enum widened",
			old:  Schema{"A": {Type: KindEnum, EnumValues: []string{"x"}}},
			new:  Schema{"A": {Type: KindEnum, EnumValues: []string{"x", "y"}}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := Diff(c.old, c.new, Options{})
			if result.IsBreaking {
				t.Fatalf("%s: IsBreaking = true, want false; result=%+v", c.name, result)
			}
		})
	}
}

// TestScenarioS6 mirrors the literal scenario from the spec.
func TestScenarioS6(t *testing.T) {
	old := Schema{"DB_URL": {Type: KindString, Format: "url"}}
	newSchema := Schema{"DATABASE_URL": {Type: KindString, Format: "url"}}

	result := Diff(old, newSchema, Options{})

	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Fatalf("Added=%v Removed=%v, want both empty", result.Added, result.Removed)
	}
	if len(result.Renamed) != 1 {
		t.Fatalf("len(Renamed) = %d, want 1", len(result.Renamed))
	}
	r := result.Renamed[0]
	if r.From != "DB_URL" || r.To != "DATABASE_URL" || r.Confidence < 0.7 {
		t.Fatalf("Renamed[0] = %+v", r)
	}
	if !result.IsBreaking {
		t.Fatal("expected IsBreaking = true for a rename")
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	if s := similarity("abc", "abc"); s != 1 {
		t.Fatalf("similarity(equal) = %v, want 1", s)
	}
	if s := similarity("", ""); s != 1 {
		t.Fatalf("similarity(empty,empty) = %v, want 1", s)
	}
	if s := similarity("kitten", "sitting"); s <= 0 || s >= 1 {
		t.Fatalf("similarity(kitten,sitting) = %v, want in (0,1)", s)
	}
}

func TestRenderGuideDeterministic(t *testing.T) {
	old := Schema{"DB_URL": {Type: KindString}}
	newSchema := Schema{"DATABASE_URL": {Type: KindString}}
	result := Diff(old, newSchema, Options{})

	g1 := RenderGuide(result)
	g2 := RenderGuide(result)
	if g1 != g2 {
		t.Fatal("RenderGuide is not deterministic")
	}
	if g1 == "" {
		t.Fatal("expected non-empty guide")
	}
}
