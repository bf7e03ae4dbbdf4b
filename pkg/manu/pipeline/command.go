package pipeline

import "strings"

// DefaultPrefix is the command prefix recognized in chat messages.
const DefaultPrefix = "."

// Command is a parsed command invocation. Token is normalized (diacritics
// stripped, lower-cased, internal whitespace removed); Args preserves the
// original casing and token spacing.
type Command struct {
	HasPrefix bool
	Token     string
	Args      string
}

// ParseCommand detects a command prefix in text and splits it into a
// normalized command token and the remaining argument string. Splitting uses
// runs of whitespace as the sole delimiter. A bare prefix yields an empty
// token; no prefix yields a zero Command.
func ParseCommand(text, prefix string) Command {
	trimmed := strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(trimmed, prefix) {
		return Command{}
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, prefix))
	cmd := Command{HasPrefix: true}
	if len(fields) == 0 {
		return cmd
	}

	token := Normalize(fields[0], false)
	cmd.Token = strings.Join(strings.Fields(token), "")
	cmd.Args = strings.Join(fields[1:], " ")
	return cmd
}
