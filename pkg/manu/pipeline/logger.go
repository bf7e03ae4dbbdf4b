package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/manu/pkg/manu/channels"
)

// LogEntry is the operator-facing record of one interaction. Field names are
// kept in Portuguese to match the record format operators already read.
type LogEntry struct {
	Number     string
	Name       string
	Time       string
	Date       string
	Group      string
	Command    string
	HasCommand bool
	IsGroup    bool
}

// InteractionLogger renders interaction records to an operator stream. It is
// a pure side effect: it runs for every event regardless of the
// authorization verdict and never propagates a failure to the caller.
type InteractionLogger struct {
	out    io.Writer
	logger *slog.Logger
}

// NewInteractionLogger creates a logger writing records to out. Internal
// failures are reported through logger instead of being returned.
func NewInteractionLogger(out io.Writer, logger *slog.Logger) *InteractionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &InteractionLogger{out: out, logger: logger.With("component", "interactions")}
}

// Log writes the record for one classified event. groupName is only
// rendered for group conversations; the command line only when a prefix was
// detected. Any panic or write error is caught and reported, never thrown.
func (l *InteractionLogger) Log(evt *channels.Event, cmd Command, groupName string, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("failed to log interaction", "error", r)
		}
	}()

	entry := buildLogEntry(evt, cmd, groupName, now)
	if _, err := io.WriteString(l.out, renderLogEntry(entry)); err != nil {
		l.logger.Error("failed to write interaction record", "error", err)
	}
}

// buildLogEntry projects the event into a LogEntry.
func buildLogEntry(evt *channels.Event, cmd Command, groupName string, now time.Time) LogEntry {
	entry := LogEntry{
		Number:  evt.Key.SenderNumber(),
		Name:    evt.PushName,
		Time:    now.Format("15:04:05"),
		Date:    now.Format("02/01/06"),
		IsGroup: evt.Key.IsGroup(),
	}
	if entry.Number == "" {
		entry.Number = "Unknown"
	}
	if entry.Name == "" {
		entry.Name = "Unknown"
	}
	if entry.IsGroup {
		entry.Group = groupName
	}
	if cmd.HasPrefix {
		entry.HasCommand = true
		entry.Command = cmd.Token
	}
	return entry
}

// renderLogEntry formats the record as "key: value" lines under a header
// distinguishing group from private conversations.
func renderLogEntry(entry LogEntry) string {
	conversation := "Privado"
	if entry.IsGroup {
		conversation = "Grupo"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mensagem no %s\n", conversation)
	fmt.Fprintf(&b, "número: %s\n", entry.Number)
	fmt.Fprintf(&b, "nome: %s\n", entry.Name)
	fmt.Fprintf(&b, "hora: %s\n", entry.Time)
	fmt.Fprintf(&b, "data: %s\n", entry.Date)
	if entry.IsGroup {
		fmt.Fprintf(&b, "grupo: %s\n", entry.Group)
	}
	if entry.HasCommand {
		fmt.Fprintf(&b, "comando: %s\n", entry.Command)
	}
	b.WriteString("\n")
	return b.String()
}
