package texts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/gateway"
)

// Callback data prefixes. Data is colon-separated: "<scope>:<action>[:args]".
const (
	cbCategory = "category"
	cbUrgency  = "urgency"
	cbTicket   = "ticket"
	cbMenu     = "menu"
	cbClient   = "client"
	cbTriage   = "triage"
	cbCSAT     = "csat"
	cbDetail   = "csat_detail"
	cbOp       = "op"
)

// CategoryKeyboard lists all ticket categories, two per row.
func CategoryKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	var row []gateway.Button
	for _, c := range domain.Categories {
		row = append(row, gateway.Button{
			Text: c.Emoji + " " + c.Label,
			Data: cbCategory + ":" + c.ID,
		})
		if len(row) == 2 {
			kb.Row(row...)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Row(row...)
	}
	kb.Row(gateway.Button{
		Text: "🚨 URGENT",
		Data: cbCategory + ":" + domain.CategoryUrgent,
	})
	return kb
}

// UrgencyKeyboard offers the urgency levels for the urgent category.
func UrgencyKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: "🔥 Everything is down", Data: cbUrgency + ":critical"})
	kb.Row(gateway.Button{Text: "⚠️ Partially broken", Data: cbUrgency + ":major"})
	kb.Row(gateway.Button{Text: "😕 Annoying but workable", Data: cbUrgency + ":minor"})
	return kb
}

// AttachmentsKeyboard is shown while collecting attachments.
func AttachmentsKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(gateway.Button{Text: "✅ Done", Data: cbTicket + ":skip_attachments"})
}

// SummaryKeyboard is the pre-submit confirmation.
func SummaryKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: "🚀 Submit", Data: cbTicket + ":submit"})
	kb.Row(
		gateway.Button{Text: "📂 Category", Data: cbTicket + ":edit_category"},
		gateway.Button{Text: "✍️ Description", Data: cbTicket + ":edit_description"},
	)
	kb.Row(
		gateway.Button{Text: "📎 Attachments", Data: cbTicket + ":edit_attachments"},
		gateway.Button{Text: "🗑 Discard", Data: cbTicket + ":cancel"},
	)
	return kb
}

// TriageKeyboard is shown to unbound users on /start.
func TriageKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: "🔑 I have a code", Data: cbTriage + ":enter_code"})
	kb.Row(gateway.Button{Text: "🤷 No code", Data: cbTriage + ":no_code"})
	return kb
}

// SkipContactKeyboard lets triage users skip the contact step.
func SkipContactKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(gateway.Button{Text: "⏭ Skip", Data: cbTriage + ":skip_contact"})
}

// MenuKeyboard is the idle-state menu.
func MenuKeyboard() *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: "🆕 New request", Data: cbMenu + ":new_request"})
	kb.Row(gateway.Button{Text: "📋 My requests", Data: cbMenu + ":my_tickets"})
	return kb
}

// RecentClosedKeyboard is offered when a message arrives shortly after a
// ticket closed: continue the conversation in it, or start fresh.
func RecentClosedKeyboard(number int) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: fmt.Sprintf("🔄 Reopen #%d", number), Data: fmt.Sprintf("%s:followup:%d", cbClient, number)})
	kb.Row(gateway.Button{Text: "🆕 New request", Data: cbTicket + ":new"})
	return kb
}

// MyTicketsKeyboard sits under the ticket listing. A recently closed ticket
// gets a reopen shortcut; that path puts the ticket back in the queue.
func MyTicketsKeyboard(recentClosed int) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	if recentClosed > 0 {
		kb.Row(gateway.Button{
			Text: fmt.Sprintf("🔄 Reopen #%d", recentClosed),
			Data: fmt.Sprintf("%s:reopen:%d", cbClient, recentClosed),
		})
	}
	kb.Row(gateway.Button{Text: "🆕 New request", Data: cbMenu + ":new_request"})
	return kb
}

// ActiveTicketKeyboard accompanies the client's view of an open ticket.
func ActiveTicketKeyboard(number int, status domain.TicketStatus) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	kb.Row(gateway.Button{Text: "➕ Add details", Data: fmt.Sprintf("%s:add_details:%d", cbMenu, number)})
	if status == domain.TicketStatusNew {
		kb.Row(gateway.Button{Text: "🗑 Cancel request", Data: fmt.Sprintf("%s:cancel:%d", cbClient, number)})
	}
	return kb
}

// ConfirmCancelKeyboard asks the client to confirm self-cancellation.
func ConfirmCancelKeyboard(number int) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(
		gateway.Button{Text: "✅ Yes, cancel", Data: fmt.Sprintf("%s:cancel_confirm:%d", cbClient, number)},
		gateway.Button{Text: "↩️ Keep it", Data: cbMenu + ":my_tickets"},
	)
}

// ConfirmReopenKeyboard asks the client to confirm reopening.
func ConfirmReopenKeyboard(number int) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(
		gateway.Button{Text: "✅ Yes, reopen", Data: fmt.Sprintf("%s:reopen_confirm:%d", cbClient, number)},
		gateway.Button{Text: "↩️ Never mind", Data: cbMenu + ":my_tickets"},
	)
}

// ConfirmFollowUpKeyboard asks the client to confirm picking a recently
// closed ticket back up.
func ConfirmFollowUpKeyboard(number int) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(
		gateway.Button{Text: "✅ Yes, reopen", Data: fmt.Sprintf("%s:followup_confirm:%d", cbClient, number)},
		gateway.Button{Text: "↩️ Never mind", Data: cbMenu + ":my_tickets"},
	)
}

// CSATKeyboard is attached to the "completed" notice.
func CSATKeyboard(ticketID int64) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	return kb.Row(
		gateway.Button{Text: "👍", Data: fmt.Sprintf("%s:positive:%d", cbCSAT, ticketID)},
		gateway.Button{Text: "👎", Data: fmt.Sprintf("%s:negative:%d", cbCSAT, ticketID)},
	)
}

// RatingKeyboard renders a 1-5 row for one detailed CSAT aspect.
func RatingKeyboard(aspect string, ticketID int64) *gateway.Keyboard {
	var row []gateway.Button
	for r := 1; r <= 5; r++ {
		row = append(row, gateway.Button{
			Text: strconv.Itoa(r),
			Data: fmt.Sprintf("%s:%s:%d:%d", cbDetail, aspect, r, ticketID),
		})
	}
	kb := &gateway.Keyboard{}
	kb.Row(row...)
	return kb.Row(gateway.Button{Text: "⏭ Skip", Data: fmt.Sprintf("%s:skip_detailed:%d", cbCSAT, ticketID)})
}

// OperatorKeyboard renders the action row on a ticket card, shaped by status.
func OperatorKeyboard(ticketID int64, status domain.TicketStatus) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	op := func(action string) string { return fmt.Sprintf("%s:%s:%d", cbOp, action, ticketID) }
	switch status {
	case domain.TicketStatusNew:
		kb.Row(gateway.Button{Text: "🙋 Take", Data: op("take")})
		kb.Row(
			gateway.Button{Text: "❓ Ask details", Data: op("details")},
			gateway.Button{Text: "🚫 Cancel", Data: op("cancel")},
		)
	case domain.TicketStatusInProgress:
		kb.Row(
			gateway.Button{Text: "⏸ Hold", Data: op("pause")},
			gateway.Button{Text: "✅ Close", Data: op("close")},
		)
		kb.Row(
			gateway.Button{Text: "❓ Ask details", Data: op("details")},
			gateway.Button{Text: "🚫 Cancel", Data: op("cancel")},
		)
	case domain.TicketStatusOnHold:
		kb.Row(
			gateway.Button{Text: "▶️ Resume", Data: op("resume")},
			gateway.Button{Text: "🚫 Cancel", Data: op("cancel")},
		)
	case domain.TicketStatusCompleted:
		kb.Row(gateway.Button{Text: "🔄 Reopen", Data: op("reopen")})
	}
	return kb
}

// Callback is a parsed button payload.
type Callback struct {
	Scope  string
	Action string
	Arg    string
}

// ParseCallback splits "<scope>:<action>[:args]" button data. Args keep any
// further colons intact.
func ParseCallback(data string) Callback {
	parts := strings.SplitN(data, ":", 3)
	cb := Callback{Scope: parts[0]}
	if len(parts) > 1 {
		cb.Action = parts[1]
	}
	if len(parts) > 2 {
		cb.Arg = parts[2]
	}
	return cb
}

// IntArg parses the trailing numeric argument of a callback.
func (c Callback) IntArg() (int64, bool) {
	// For csat_detail the arg is "<rating>:<ticketID>"; take the last piece.
	s := c.Arg
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// RatingArg parses "<rating>:<ticketID>" for detailed CSAT callbacks.
func (c Callback) RatingArg() (rating int, ticketID int64, ok bool) {
	parts := strings.SplitN(c.Arg, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	r, err := strconv.Atoi(parts[0])
	if err != nil || r < 1 || r > 5 {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return r, id, true
}
