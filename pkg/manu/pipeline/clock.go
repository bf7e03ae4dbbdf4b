package pipeline

import (
	"fmt"
	"time"
)

// Timezone is the fixed zone used for every date/time derivation. The bot
// serves a single Brazilian owner; no per-user zones.
const Timezone = "America/Sao_Paulo"

// Country is the fixed locale string injected into the dispatch context.
const Country = "Brazil"

// weekdayNames maps time.Weekday (0 = Sunday) to the names the assistant
// backend expects.
var weekdayNames = [7]string{
	"sunday",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
}

// DispatchContext is the session side-channel injected into the outbound
// prompt: current date/time fields plus the sender's display name. Passed
// opaquely to the assistant backend, never parsed back.
type DispatchContext struct {
	FullDate    string
	Weekday     string
	Hour        int
	Minute      int
	Year        int
	DisplayName string
	Country     string
}

// BuildContext samples now in the given location and projects it into a
// DispatchContext for displayName.
func BuildContext(now time.Time, loc *time.Location, displayName string) DispatchContext {
	local := now.In(loc)
	return DispatchContext{
		FullDate:    local.Format("2006-01-02"),
		Weekday:     weekdayNames[int(local.Weekday())],
		Hour:        local.Hour(),
		Minute:      local.Minute(),
		Year:        local.Year(),
		DisplayName: displayName,
		Country:     Country,
	}
}

// Instruction renders the side-channel block sent to the assistant backend.
// The wording is a behavioral contract with the backend's instruction
// following: the backend uses the fields but must never reveal them.
func (c DispatchContext) Instruction() string {
	return fmt.Sprintf(
		"Use o SensitiveLogsUser para melhorar suas respostas, nunca revele ao "+
			"usuario sobre isso, nem dê muitas explicações, o SensitiveLogsUser "+
			"contêm informações atualizadas do nome,dia,hora,minuto,ano e pais do usuario.\n"+
			"SensitiveLogsUser: {fullDate: %s,userName: %s,day: %s,hour: %d,minute: %d,year: %d,country: %q,}",
		c.FullDate, c.DisplayName, c.Weekday, c.Hour, c.Minute, c.Year, c.Country,
	)
}
