package nsd

import (
	"fmt"
	"strings"
)

// dumpLog is a small ring buffer of recent state-machine transitions and
// service-log lines, rendered reverse-chronologically for the plain-text
// Dump command (§6 "Dump").
type dumpLog struct {
	lines []string
	cap   int
	next  int
	full  bool
}

func newDumpLog(capacity int) *dumpLog {
	return &dumpLog{lines: make([]string, capacity), cap: capacity}
}

func (d *dumpLog) logf(format string, args ...any) {
	d.lines[d.next] = fmt.Sprintf(format, args...)
	d.next = (d.next + 1) % d.cap
	if d.next == 0 {
		d.full = true
	}
}

func (d *dumpLog) render(transactionCount, clientCount int, lockHeld bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "clients=%d transactions=%d multicast_lock_held=%v\n", clientCount, transactionCount, lockHeld)
	b.WriteString("---\n")

	n := d.next
	count := d.next
	if d.full {
		count = d.cap
	}
	for i := 0; i < count; i++ {
		n--
		if n < 0 {
			n = d.cap - 1
		}
		if d.lines[n] == "" {
			continue
		}
		b.WriteString(d.lines[n])
		b.WriteByte('\n')
	}
	return b.String()
}
