package library

import "testing"

func TestSanitizeReplacesSlashesAndForbiddenChars(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"AC/DC", "AC-DC"},
		{"Back/in Black", "Back-in Black"},
		{`a\b`, "a-b"},
		{"a|b*c", "axbxc"},
		{"  spaced.. ", "spaced"},
		{"keep -_.()!#$%&'@^{}~", "keep -_.()!#$%&'@^{}~"},
		{"drop?<>:\"", "drop"},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestPatternExpandMatchesSpecExample(t *testing.T) {
	p := NewPattern("covers/{artist}/{album}.jpg")
	got := p.Expand("AC/DC", "Back/in Black")
	want := "covers/AC-DC/Back-in Black.jpg"
	if got != want {
		t.Errorf("Expand() = %q; want %q", got, want)
	}
}

func TestPatternEmbedDetection(t *testing.T) {
	if !NewPattern("+").Embed() {
		t.Error(`NewPattern("+").Embed() = false; want true`)
	}
	if NewPattern("covers/{artist}.jpg").Embed() {
		t.Error("NewPattern(path).Embed() = true; want false")
	}
}
