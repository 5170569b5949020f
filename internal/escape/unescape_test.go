package escape

import "testing"

func TestUnescape(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"escaped dot", `a\.b`, "a.b"},
		{"decimal triple", `x\065y`, "xAy"},
		{"escaped backslash", `z\\`, `z\`},
		{"no escapes", "plain", "plain"},
		{"truncated at end", `a\`, "a"},
		{"truncated triple", `a\12`, "a"},
		{"malformed triple", `a\1x2`, "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Unescape(nil, tc.in)
			if got != tc.want {
				t.Fatalf("Unescape(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
