package svctype

import "testing"

func TestParse_Valid(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantTyp string
		wantSub string
	}{
		{"trailing dot and local", "_type._tcp.local.", "_type._tcp", ""},
		{"bare type", "_type._tcp", "_type._tcp", ""},
		{"leading subtype", "_sub._type._tcp", "_type._tcp", "_sub"},
		{"trailing comma subtype", "_type._tcp,_sub", "_type._tcp", "_sub"},
		{"udp proto", "_printer._udp", "_printer._udp", ""},
		{"leading wins over trailing", "_sub._type._tcp,_other", "_type._tcp", "_sub"},
		{"local with trailing subtype", "_ipp._tcp.local,_universal", "_ipp._tcp", "_universal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.in)
			if !ok {
				t.Fatalf("Parse(%q) rejected, want accept", tc.in)
			}
			if got.Type != tc.wantTyp || got.Subtype != tc.wantSub {
				t.Fatalf("Parse(%q) = (%q, %q), want (%q, %q)", tc.in, got.Type, got.Subtype, tc.wantTyp, tc.wantSub)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"_tcp",
		"type._tcp",
		"_type._sctp",
		"_.i_tcp",
		"_type._tcp.extra.local",
		"_",
		"_a._tcp,",
	}

	for _, in := range cases {
		if _, ok := Parse(in); ok {
			t.Errorf("Parse(%q) accepted, want rejection", in)
		}
	}
}
