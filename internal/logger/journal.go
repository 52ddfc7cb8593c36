package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	journalMu  sync.Mutex
	journalLog *log.Logger
)

// SetJournalWriter routes trade/lifecycle journal entries to w. A nil writer
// disables the journal.
func SetJournalWriter(w io.Writer) {
	journalMu.Lock()
	defer journalMu.Unlock()
	if w == nil {
		journalLog = nil
		return
	}
	journalLog = log.New(w, "", log.LstdFlags)
}

// JournalField is one "key: value" line of a journal entry.
type JournalField struct {
	Key   string
	Value string
}

// Journal writes a tagged entry, e.g. [TRADE][Eve] followed by its fields.
func Journal(kind, agent string, fields ...JournalField) {
	journalMu.Lock()
	l := journalLog
	journalMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(strings.TrimSpace(kind)))
	b.WriteString("]")
	if agent != "" {
		b.WriteString("[")
		b.WriteString(agent)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, f := range fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(f.Value))
		b.WriteString("\n")
	}
	l.Print(b.String())
}
