// Package texts holds every user-facing message template and inline keyboard
// the bot sends, so wording lives in one place.
package texts

import (
	"fmt"
	"strings"

	"github.com/spec-kit/support-bot/internal/domain"
)

const (
	Welcome = "👋 Hi! This is the support bot.\n\n" +
		"Here you can report a problem, ask a question or leave a feature request. " +
		"Pick a category below to get started."

	WelcomeBack = "👋 Welcome back, %s! Pick a category to open a new request."

	AskInviteCode = "🔑 Please enter your project invite code.\n\n" +
		"If you don't have one, tap the button below and we'll sort it out manually."

	InviteCodeInvalid = "❌ That code doesn't match any active project. " +
		"Check for typos and try again, or continue without a code."

	NoCodeAcknowledged = "📨 Got it! We've noted your contact details. " +
		"An operator will bind your account shortly, after that you'll be able to open requests."

	AskCompany = "🏢 What company are you writing from?"

	AskContact = "📞 Leave a phone number or email so we can reach you, or skip this step."

	AskDescription = "✍️ Describe the problem in as much detail as you can. " +
		"What did you do, what did you expect, what happened instead?"

	AskUrgencyLevel = "🚨 How bad is it?"

	AskUrgencyDetails = "✍️ Got it. Now describe what exactly is broken — " +
		"what were you doing when it happened, and who is affected?"

	AskAttachments = "📎 Attach screenshots, videos or files if you have any. " +
		"When you're done (or have nothing to attach), tap the button."

	AttachmentSaved = "📎 Attached (%d total). Add more or tap \"Done\"."

	DescriptionTooShort = "✍️ Please add a bit more detail — a couple of sentences helps the operator a lot."

	TicketSubmitted = "✅ Request <b>#%d</b> created!\n\n%s\n\nWe'll reply here as soon as an operator picks it up."

	TicketCancelledByClient = "🗑 Request <b>#%d</b> cancelled."

	CancelConfirm = "❓ Cancel request <b>#%d</b>? This cannot be undone."

	ReopenConfirm = "❓ Reopen request <b>#%d</b>?"

	ReopenDone = "🔄 Request <b>#%d</b> reopened. An operator will get back to you."

	FollowUpReopened = "🔄 Request <b>#%d</b> reopened — just keep writing here, " +
		"your messages go straight to the operator who handled it."

	TicketDeliveryDelayed = "⚠️ Request <b>#%d</b> is saved, but we hit a technical hiccup " +
		"handing it to the support team. An operator will pick it up with a short delay."

	ReopenTooLate = "⏳ Request <b>#%d</b> was closed more than 48 hours ago and can't be reopened. " +
		"Please open a new request instead."

	ActiveTicketForwarded = "📨 Added to request <b>#%d</b>."

	NoActiveTicket = "ℹ️ You have no open requests right now. Start a new one below."

	OperatorOnly = "🚫 This action is for support operators."

	OperatorNeedID = "🚫 You're not on the operator list. Your ID: %d"

	NotBoundYet = "⏳ Your account isn't bound to a project yet. An operator will do that shortly."

	OutsideWorkingHours = "🌙 We're currently outside working hours (%02d:00–%02d:00 %s). " +
		"Your request is registered and will be handled first thing in the morning."

	AskFeedbackComment = "💬 Tell us what went wrong — we read every message."

	FeedbackThanks = "💚 Thanks for the feedback!"

	AskRatingSpeed      = "⚡️ How fast did we respond? (1–5)"
	AskRatingQuality    = "🎯 How well did we solve the problem? (1–5)"
	AskRatingPoliteness = "🤝 How polite was the operator? (1–5)"

	RatingsThanks = "🌟 Thanks! Your ratings help us improve."

	AskCancelReason = "✍️ Why is this ticket being cancelled? Reply in this thread."
	AskPauseReason  = "✍️ Why is this ticket going on hold? Reply in this thread."

	ReasonWrongThread = "⚠️ Please reply in the ticket's own thread."

	AskDetailsQuestion = "✍️ What should we ask the client? Reply in this thread."

	DetailsRequested = "📨 Question sent to the client."

	MyTicketsEmpty = "📭 You haven't opened any requests yet."

	SessionExpired = "⏳ Looks like we lost track of where we were. Let's start over — pick a category."
)

// TicketCard renders the operator-facing card posted into a client thread.
func TicketCard(ticket *domain.Ticket, clientName, userDisplay, username string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Request #%d</b>\n", domain.StatusEmoji(ticket.Status), ticket.Number)
	fmt.Fprintf(&b, "%s\n\n", domain.StatusProgressBar(ticket.Status))
	fmt.Fprintf(&b, "🏢 <b>Client:</b> %s\n", clientName)
	if userDisplay != "" {
		fmt.Fprintf(&b, "👤 <b>From:</b> %s", userDisplay)
		if username != "" {
			fmt.Fprintf(&b, " (@%s)", username)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "📂 <b>Category:</b> %s\n", domain.CategoryLabel(ticket.Category))
	if sla := domain.CategorySLA(ticket.Category); sla != "" {
		fmt.Fprintf(&b, "⏱ <b>SLA:</b> %s\n", sla)
	}
	if ticket.Priority == domain.TicketPriorityUrgent {
		b.WriteString("🚨 <b>Priority: URGENT</b>\n")
	}
	fmt.Fprintf(&b, "\n%s", EscapeHTML(ticket.Description))
	return b.String()
}

// TicketSummary renders the pre-submit summary shown to the client.
func TicketSummary(category, description string, attachments int) string {
	var b strings.Builder
	b.WriteString("📋 <b>Your request</b>\n\n")
	fmt.Fprintf(&b, "📂 Category: %s\n", domain.CategoryLabel(category))
	fmt.Fprintf(&b, "✍️ Description: %s\n", EscapeHTML(description))
	if attachments > 0 {
		fmt.Fprintf(&b, "📎 Attachments: %d\n", attachments)
	}
	b.WriteString("\nAll good? Submit it, or edit any part first.")
	return b.String()
}

// StatusNotice is the client-facing line for a status change.
func StatusNotice(number int, status domain.TicketStatus, reason string) string {
	var b strings.Builder
	switch status {
	case domain.TicketStatusInProgress:
		fmt.Fprintf(&b, "👨‍💻 Request <b>#%d</b> is being worked on.", number)
	case domain.TicketStatusOnHold:
		fmt.Fprintf(&b, "⏸ Request <b>#%d</b> is on hold.", number)
	case domain.TicketStatusCompleted:
		fmt.Fprintf(&b, "✅ Request <b>#%d</b> is completed!\n\nHow did we do?", number)
	case domain.TicketStatusCancelled:
		fmt.Fprintf(&b, "🚫 Request <b>#%d</b> was cancelled.", number)
	default:
		fmt.Fprintf(&b, "ℹ️ Request <b>#%d</b>: status changed to %s.", number, domain.StatusLabel(status))
	}
	if reason != "" {
		fmt.Fprintf(&b, "\n\n💬 %s", EscapeHTML(reason))
	}
	return b.String()
}

// TicketLine is one row of the client's "my tickets" listing.
func TicketLine(ticket domain.Ticket) string {
	return fmt.Sprintf("%s <b>#%d</b> · %s · %s",
		domain.StatusEmoji(ticket.Status),
		ticket.Number,
		domain.CategoryLabel(ticket.Category),
		domain.StatusLabel(ticket.Status))
}

// ClientMessageHeader prefixes forwarded client messages in the thread.
func ClientMessageHeader(number int, display, username string) string {
	who := display
	if username != "" {
		who = fmt.Sprintf("%s (@%s)", display, username)
	}
	return fmt.Sprintf("💬 <b>#%d</b> · %s:", number, EscapeHTML(who))
}

// FeedbackCard renders received feedback into the ticket thread.
func FeedbackCard(number int, csat domain.CSAT, comment string, speed, quality, politeness *int) string {
	var b strings.Builder
	mark := "👍"
	if csat == domain.CSATNegative {
		mark = "👎"
	}
	fmt.Fprintf(&b, "%s <b>Feedback for #%d</b>\n", mark, number)
	if speed != nil {
		fmt.Fprintf(&b, "⚡️ Speed: %d/5\n", *speed)
	}
	if quality != nil {
		fmt.Fprintf(&b, "🎯 Quality: %d/5\n", *quality)
	}
	if politeness != nil {
		fmt.Fprintf(&b, "🤝 Politeness: %d/5\n", *politeness)
	}
	if comment != "" {
		fmt.Fprintf(&b, "\n💬 %s", EscapeHTML(comment))
	}
	return b.String()
}

// EscapeHTML sanitizes user text for HTML parse mode.
func EscapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
