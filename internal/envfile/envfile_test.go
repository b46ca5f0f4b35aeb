package envfile

import (
	"reflect"
	"testing"
)

func TestParseBasic(t *testing.T) {
	src := "# comment\n\nA=1\nB=\"hello world\"\nC='single'\n"
	block := Parse(src)

	want := map[string]string{"A": "1", "B": "hello world", "C": "single"}
	if !reflect.DeepEqual(block.Values, want) {
		t.Fatalf("Values = %#v, want %#v", block.Values, want)
	}
}

func TestParseDuplicateKeyOverwrites(t *testing.T) {
	block := Parse("A=1\nA=2\n")
	if block.Values["A"] != "2" {
		t.Fatalf("A = %q, want %q", block.Values["A"], "2")
	}
}

func TestParseQuoteUnescape(t *testing.T) {
	block := Parse(`MSG="he said \"hi\""` + "\n")
	want := `he said "hi"`
	if block.Values["MSG"] != want {
		t.Fatalf("MSG = %q, want %q", block.Values["MSG"], want)
	}
}

func TestSerializeQuotesWhenNeeded(t *testing.T) {
	block := Parse("A=1\nB=hello world\n")
	out := Serialize(block)
	if out != "A=1\nB=\"hello world\"\n" {
		t.Fatalf("Serialize = %q", out)
	}
}

func TestRoundTripFixedPoint(t *testing.T) {
	src := "A=1\nB=\"hello world\"\nC=simple\n"
	b1 := Parse(src)
	out1 := Serialize(b1)
	b2 := Parse(out1)
	out2 := Serialize(b2)

	if !reflect.DeepEqual(b1.Values, b2.Values) {
		t.Fatalf("Values changed across round trip: %#v vs %#v", b1.Values, b2.Values)
	}
	if out1 != out2 {
		t.Fatalf("serialize not a fixed point: %q vs %q", out1, out2)
	}
}

func TestCountPairs(t *testing.T) {
	src := "# comment\n\nA=1\nB=2\n# another\nC=3\n"
	if got := CountPairs(src); got != 3 {
		t.Fatalf("CountPairs = %d, want 3", got)
	}
}
