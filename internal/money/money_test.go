package money

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRendersTwoDecimals(t *testing.T) {
	cases := map[string]string{
		"100":    "100.00",
		"100.5":  "100.50",
		"100.50": "100.50",
		"-40.05": "-40.05",
		"0":      "0.00",
	}
	for in, want := range cases {
		m, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got := m.String(); got != want {
			t.Errorf("Parse(%q).String() = %q, want %q", in, got, want)
		}
	}
}

func TestParseRejectsExcessPrecision(t *testing.T) {
	for _, in := range []string{"1.005", "0.001", "-2.125"} {
		if _, err := Parse(in); !errors.Is(err, ErrPrecision) {
			t.Errorf("Parse(%q) error = %v, want ErrPrecision", in, err)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "10,00", "1.2.3"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 is the classic binary-float trap.
	sum := MustParse("0.10").Add(MustParse("0.20"))
	if !sum.Equal(MustParse("0.30")) {
		t.Fatalf("0.10 + 0.20 = %s", sum)
	}

	total := Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.01"))
	}
	if got := total.String(); got != "10.00" {
		t.Fatalf("1000 * 0.01 = %s, want 10.00", got)
	}
}

func TestComparisons(t *testing.T) {
	a, b := MustParse("10.00"), MustParse("10.50")
	if !a.LessThan(b) || b.LessThan(a) {
		t.Fatal("LessThan ordering broken")
	}
	if !b.GreaterThan(a) {
		t.Fatal("GreaterThan ordering broken")
	}
	if !MustParse("10.5").Equal(MustParse("10.50")) {
		t.Fatal("10.5 should equal 10.50")
	}
	if !MustParse("-1.00").IsNegative() || !MustParse("1.00").IsPositive() || !Zero.IsZero() {
		t.Fatal("sign predicates broken")
	}
}

func TestFromMinorUnits(t *testing.T) {
	if got := FromMinorUnits(1050).String(); got != "10.50" {
		t.Fatalf("FromMinorUnits(1050) = %s", got)
	}
	if got := FromMinorUnits(-5).String(); got != "-0.05" {
		t.Fatalf("FromMinorUnits(-5) = %s", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(MustParse("99.9"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"99.90"` {
		t.Fatalf("marshal = %s", out)
	}

	var m Money
	if err := json.Unmarshal([]byte(`"12.34"`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.Equal(MustParse("12.34")) {
		t.Fatalf("round trip = %s", m)
	}

	if err := json.Unmarshal([]byte(`12.345`), &m); err == nil {
		t.Fatal("expected error for non-string JSON amount")
	}
}
