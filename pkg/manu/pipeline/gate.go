package pipeline

import "github.com/jholhewres/manu/pkg/manu/channels"

// Reason explains an authorization verdict.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonGroup     Reason = "isGroup"
	ReasonSelf      Reason = "isSelf"
	ReasonEmptyText Reason = "emptyText"
	ReasonNotOwner  Reason = "notOwner"
)

// Verdict is the outcome of the authorization gate. A negative verdict is
// not an error: it halts dispatch after logging, nothing more.
type Verdict struct {
	OK     bool
	Reason Reason
}

// Gate decides whether an event may be dispatched to the assistant. This is
// a fixed single-owner allow-list, not a general ACL: the bot serves exactly
// one configured owner and only in direct chats.
type Gate struct {
	// Owner is the authorized sender's numeric chat identifier (the JID
	// local part, digits only).
	Owner string
}

// Authorize evaluates eligibility in fixed order: group chats are excluded,
// then self-sent events, then events with no canonical text, then any sender
// other than the configured owner. The first failure wins.
func (g Gate) Authorize(evt *channels.Event, text string) Verdict {
	switch {
	case evt.Key.IsGroup():
		return Verdict{Reason: ReasonGroup}
	case evt.Key.FromMe:
		return Verdict{Reason: ReasonSelf}
	case text == "":
		return Verdict{Reason: ReasonEmptyText}
	case evt.Key.SenderNumber() != g.Owner:
		return Verdict{Reason: ReasonNotOwner}
	}
	return Verdict{OK: true, Reason: ReasonOK}
}
