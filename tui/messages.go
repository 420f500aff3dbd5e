package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/sitecapture/mirror"
	"github.com/lukemcguire/sitecapture/result"
)

// MirrorUpdateMsg carries one observer notification from the running mirror.
type MirrorUpdateMsg struct {
	Update mirror.Update
}

// LogLineMsg carries one formatted log line.
type LogLineMsg struct {
	Line string
}

// MirrorDoneMsg signals the mirror run has completed.
type MirrorDoneMsg struct {
	Result *result.Result
	Err    error
}

// waitForUpdate returns a tea.Cmd that reads one notification from the
// observer channel. A closed channel ends the subscription.
func waitForUpdate(ch <-chan mirror.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return MirrorUpdateMsg{Update: u}
	}
}

// waitForLog returns a tea.Cmd that reads one log line.
func waitForLog(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return LogLineMsg{Line: line}
	}
}
