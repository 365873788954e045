package codec

import "testing"

func TestCode2IntRoundTrip(t *testing.T) {
	for _, code := range []string{"AAAA", "ABCD", "ZZZZ", "AAAAAA", "ZZZZZZ", "QWERTY"} {
		x, err := Code2Int(code)
		if err != nil {
			t.Fatalf("Code2Int(%q): %v", code, err)
		}
		back, err := Int2Code(x)
		if err != nil {
			t.Fatalf("Int2Code(%d): %v", x, err)
		}
		if back != code {
			t.Errorf("round trip: %q -> %d -> %q", code, x, back)
		}
	}
}

func TestInt2CodeRoundTrip(t *testing.T) {
	// R3: Code2Int(Int2Code(x)) = x for every valid code integer.
	for _, x := range []int32{0, 1, 25, 26, 675, 456975, 456976, 1000000, 308915775} {
		code, err := Int2Code(x)
		if err != nil {
			t.Fatalf("Int2Code(%d): %v", x, err)
		}
		back, err := Code2Int(code)
		if err != nil {
			t.Fatalf("Code2Int(%q): %v", code, err)
		}
		if back != x {
			t.Errorf("Code2Int(Int2Code(%d)) = %d, want %d", x, back, x)
		}
	}
}

func TestCode2IntRejectsInvalid(t *testing.T) {
	for _, code := range []string{"AB", "abcd", "AB CD", "ABCDE"} {
		if _, err := Code2Int(code); err == nil {
			t.Errorf("Code2Int(%q): expected error", code)
		}
	}
}
