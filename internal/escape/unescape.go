// Package escape decodes mdnsresponder-style backslash escapes used in
// DNS-SD instance names, the way the teacher's message package decodes DNS
// wire-format labels: a small scanning loop with explicit bounds checks that
// logs a truncated or malformed escape and stops, rather than panicking.
package escape

import (
	"log/slog"
	"strings"
)

// Unescape decodes a DNS-SD name using mdnsresponder escape conventions:
// characters are copied verbatim except for a backslash, which either
// escapes a literal '.' or '\\', or introduces a three-digit decimal byte
// value ("\ddd").
//
// A malformed or truncated escape sequence is logged at the given logger
// and decoding stops at the truncation point, returning everything decoded
// so far — per spec, it never panics on malformed input.
func Unescape(logger *slog.Logger, name string) string {
	var out strings.Builder
	out.Grow(len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '\\' {
			out.WriteByte(c)
			continue
		}

		if i+1 >= len(name) {
			logEscape(logger, name, i, "truncated escape at end of name")
			return out.String()
		}

		next := name[i+1]
		if next == '.' || next == '\\' {
			out.WriteByte(next)
			i++
			continue
		}

		if i+3 >= len(name) {
			logEscape(logger, name, i, "truncated decimal escape triple")
			return out.String()
		}

		d1, ok1 := digit(name[i+1])
		d2, ok2 := digit(name[i+2])
		d3, ok3 := digit(name[i+3])
		if !ok1 || !ok2 || !ok3 {
			logEscape(logger, name, i, "malformed decimal escape triple")
			return out.String()
		}

		out.WriteByte(byte(d1*100 + d2*10 + d3))
		i += 3
	}

	return out.String()
}

func digit(b byte) (int, bool) {
	if b < '0' || b > '9' {
		return 0, false
	}
	return int(b - '0'), true
}

func logEscape(logger *slog.Logger, name string, pos int, msg string) {
	if logger == nil {
		return
	}
	logger.Warn("unescape: "+msg, "name", name, "pos", pos)
}
