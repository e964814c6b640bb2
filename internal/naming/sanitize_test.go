package naming

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Žofie Nováková", "Zofie Novakova"},
		{"José García", "Jose Garcia"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := RemoveDiacritics(tc.input); got != tc.expected {
			t.Errorf("RemoveDiacritics(%q) = %q; want %q", tc.input, got, tc.expected)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Anna", "Anna"},
		{"spaces become underscores", "Anna Smith", "Anna_Smith"},
		{"trimmed", "  Anna  ", "Anna"},
		{"path separators replaced", `Anna/Smith\Jones`, "Anna_Smith_Jones"},
		{"shell hostile replaced", `An<na>:"?*|`, "An_na______"},
		{"empty means skip", "   ", ""},
		{"diacritics kept", "Jiří", "Jiří"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeName(tc.input); got != tc.expected {
				t.Errorf("SanitizeName(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		a string
		b string
	}{
		{"Jiří Novák", "jiri novak"},
		{"Anna-Smith", "anna smith"},
		{"anna_smith", "anna smith"},
	}

	for _, tc := range tests {
		if got := NormalizePersonName(tc.a); got != tc.b {
			t.Errorf("NormalizePersonName(%q) = %q; want %q", tc.a, got, tc.b)
		}
	}
}
