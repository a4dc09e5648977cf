package pin

import (
	"strings"
	"testing"
)

func TestValid(t *testing.T) {
	cases := []struct {
		pin  string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"", false},
		{"12345a", false},
		{"12 456", false},
		{"12345٠", false}, // arabic-indic digit, not ASCII
	}
	for _, tc := range cases {
		if got := Valid(tc.pin); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.pin, got, tc.want)
		}
	}
}

func TestGenerateBackupCode_Format(t *testing.T) {
	code, err := GenerateBackupCode()
	if err != nil {
		t.Fatalf("GenerateBackupCode: %v", err)
	}
	groups := strings.Split(code, "-")
	if len(groups) != 4 {
		t.Fatalf("code %q has %d groups, want 4", code, len(groups))
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Errorf("group %q length = %d, want 4", g, len(g))
		}
		for _, c := range g {
			if !strings.ContainsRune(backupCodeAlphabet, c) {
				t.Errorf("code %q contains %c outside the alphabet", code, c)
			}
		}
	}
}

func TestGenerateBackupCode_Randomness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateBackupCode()
		if err != nil {
			t.Fatalf("GenerateBackupCode: %v", err)
		}
		if seen[code] {
			t.Errorf("duplicate backup code generated: %s", code)
		}
		seen[code] = true
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ABCD-EFGH-JKMN-PQRS", "ABCDEFGHJKMNPQRS"},
		{"abcd-efgh-jkmn-pqrs", "ABCDEFGHJKMNPQRS"},
		{"ABCD EFGH JKMN PQRS", "ABCDEFGHJKMNPQRS"},
		{"abcdefghjkmnpqrs", "ABCDEFGHJKMNPQRS"},
	}
	for _, tc := range cases {
		if got := NormalizeBackupCode(tc.in); got != tc.want {
			t.Errorf("NormalizeBackupCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGeneratedCodeNormalizesToItself(t *testing.T) {
	code, err := GenerateBackupCode()
	if err != nil {
		t.Fatalf("GenerateBackupCode: %v", err)
	}
	want := strings.ReplaceAll(code, "-", "")
	if got := NormalizeBackupCode(code); got != want {
		t.Errorf("NormalizeBackupCode(%q) = %q, want %q", code, got, want)
	}
}
