package normalize

import "testing"

func TestNormalizeBasics(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Bebauungsplan Nr. 12/2024", "bebauungsplan nr. 12/2024"},
		{"Batteriespeicheranlage", "batteriespeicheranlage"},
		{"Umspannwerk äöüÄÖÜß", "umspannwerk aeoeueaeoeuess"},
		{"multiple   spaces\nand\ttabs", "multiple spaces and tabs"},
		{"  leading and trailing  ", "leading and trailing"},
	}
	for _, c := range cases {
		got := Normalize(c.in).Text
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "Bebauungsplan  Nr. 12/2024 — Speicheranlage äöü"
	once := Normalize(in).Text
	twice := Normalize(once).Text
	if once != twice {
		t.Errorf("normalize not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestOriginalOffsetRoundTrip(t *testing.T) {
	in := "Batteriespeicher für Müllerhof"
	res := Normalize(in)
	idx := len(res.Text) - 1
	orig := res.OriginalOffset(idx)
	if orig < 0 || orig >= len(in) {
		t.Fatalf("OriginalOffset(%d) = %d out of range for input len %d", idx, orig, len(in))
	}
}
