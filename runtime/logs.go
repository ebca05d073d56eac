package runtime

import "fmt"

// LogCollector accumulates program log output for one transaction, in the
// order it was emitted. It is the ledger's equivalent of the validator's
// streamed program logs.
type LogCollector struct {
	entries []string
}

func (l *LogCollector) push(s string) {
	if l == nil {
		return
	}
	l.entries = append(l.entries, s)
}

func (l *LogCollector) pushf(format string, args ...any) {
	l.push(fmt.Sprintf(format, args...))
}

// Entries returns the collected log lines.
func (l *LogCollector) Entries() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.entries...)
}
