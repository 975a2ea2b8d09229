package domain

// Category is a static catalog entry: an id, a client-facing label, and an
// SLA hint. Entries with no SLA get special wording in confirmations.
type Category struct {
	ID    string
	Label string
	Emoji string
	SLA   string
}

// CategoryUrgent is the pseudo-category that routes through the urgency
// sub-flow and maps to TicketPriorityUrgent.
const CategoryUrgent = "urgent"

// Categories is the fixed catalog shown on the client menu.
var Categories = []Category{
	{ID: "report", Label: "Report issue", Emoji: "\U0001F4CA", SLA: "6-12 hours"},
	{ID: "rating", Label: "Incorrect rating", Emoji: "⭐", SLA: "4-8 hours"},
	{ID: "widget", Label: "Widget and integrations", Emoji: "\U0001F517", SLA: "1-2 business days"},
	{ID: "access", Label: "Access and roles", Emoji: "\U0001F510", SLA: "1-3 hours"},
	{ID: "howto", Label: "Report setup and usage", Emoji: "\U0001F4A1", SLA: "1-3 business days"},
	{ID: "billing", Label: "Billing and documents", Emoji: "\U0001F4B3", SLA: "1-2 business days"},
	{ID: "feature", Label: "Feature request", Emoji: "✨"},
	{ID: "other", Label: "Other", Emoji: "\U0001F4DD"},
}

// CategoryByID returns the catalog entry for id, or nil when unknown.
func CategoryByID(id string) *Category {
	for i := range Categories {
		if Categories[i].ID == id {
			return &Categories[i]
		}
	}
	return nil
}

// CategoryLabel returns the emoji-prefixed label for a category id. Unknown
// ids (including the urgent pseudo-category) fall back to the id itself.
func CategoryLabel(id string) string {
	if id == CategoryUrgent {
		return "\U0001F6A8 Urgent issue"
	}
	if cat := CategoryByID(id); cat != nil {
		return cat.Emoji + " " + cat.Label
	}
	return id
}

// CategorySLA returns the SLA hint for a category id, or "" when the
// category has no committed response window.
func CategorySLA(id string) string {
	if cat := CategoryByID(id); cat != nil {
		return cat.SLA
	}
	return ""
}

// ValidCategory reports whether id names a catalog entry or the urgent
// pseudo-category.
func ValidCategory(id string) bool {
	return id == CategoryUrgent || CategoryByID(id) != nil
}
