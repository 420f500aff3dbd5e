package tui

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogHook forwards logrus entries to the UI. Entries are dropped rather than
// blocking the logger when the UI falls behind.
type LogHook struct {
	lines chan<- string
}

// NewLogHook returns a hook sending formatted entries on lines.
func NewLogHook(lines chan<- string) *LogHook {
	return &LogHook{lines: lines}
}

func (h *LogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *LogHook) Fire(entry *logrus.Entry) error {
	line := entry.Message
	if entry.Level <= logrus.WarnLevel {
		line = fmt.Sprintf("%s %s", strings.ToUpper(entry.Level.String()), line)
	}
	select {
	case h.lines <- line:
	default:
	}
	return nil
}
