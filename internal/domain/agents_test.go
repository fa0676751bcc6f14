package domain

import "testing"

func TestParseAccountID(t *testing.T) {
	t.Run("normalizes to lowercase", func(t *testing.T) {
		got, err := ParseAccountID("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		want := AccountID("0xabcdef0123456789abcdef0123456789abcdef01")
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		bad := []string{
			"",
			"abcdef0123456789abcdef0123456789abcdef01",     // missing prefix
			"0xabcdef0123456789abcdef0123456789abcdef",     // too short
			"0xabcdef0123456789abcdef0123456789abcdef0102", // too long
			"0xzzcdef0123456789abcdef0123456789abcdef01",   // non-hex
		}
		for _, s := range bad {
			if _, err := ParseAccountID(s); err == nil {
				t.Errorf("ParseAccountID(%q) accepted", s)
			}
		}
	})
}

func TestAccountIDEqual(t *testing.T) {
	a := AccountID("0xabcdef0123456789abcdef0123456789abcdef01")
	b := AccountID("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	if !a.Equal(b) {
		t.Error("case-insensitive comparison failed")
	}
	if a.Equal("0x0000000000000000000000000000000000000000") {
		t.Error("distinct addresses compared equal")
	}
}
