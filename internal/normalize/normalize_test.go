package normalize

import "testing"

func TestString(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"AÀh' JÉeêé", "aah' jeeee"},
		{"Café", "cafe"},
		{"", ""},
		{"Already Lower", "already lower"},
	} {
		if got := String(tc.in); got != tc.want {
			t.Errorf("String(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestStringIdempotent(t *testing.T) {
	for _, s := range []string{"AÀh' JÉeêé", "Café", "Déjà Vu!!", "plain text"} {
		once := String(s)
		twice := String(once)
		if once != twice {
			t.Errorf("String(%q) = %q but String of that = %q; want idempotent", s, once, twice)
		}
	}
}

func TestStrict(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"AC/DC", "acdc"},
		{"Back in Black!", "back in black"},
		{"Déjà-Vu", "dejavu"},
	} {
		if got := Strict(tc.in); got != tc.want {
			t.Errorf("Strict(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
