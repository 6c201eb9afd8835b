package template

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

type Category string

const (
	CategoryMarketing     Category = "marketing"
	CategoryUtility       Category = "utility"
	CategoryTransactional Category = "transactional"
)

// Binding maps a placeholder identifier to its rendered value for one recipient.
type Binding map[string]string

type MessageTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Subject   string    `json:"subject,omitempty"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"`
	Category  Category  `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeVariables refreshes Variables from Content and Subject. Variables is
// derived state and must never be edited by hand; call this after any content
// change.
func (t *MessageTemplate) RecomputeVariables() {
	t.Variables = ExtractVariables(t.Content + " " + t.Subject)
}

// EffectiveCategory returns the stored category, falling back to a keyword
// guess from the template name. The guess is a heuristic, not a classifier.
func (t MessageTemplate) EffectiveCategory() Category {
	if t.Category != "" {
		return t.Category
	}
	return InferCategory(t.Name)
}

func InferCategory(name string) Category {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "offer"), strings.Contains(n, "promo"), strings.Contains(n, "discount"):
		return CategoryMarketing
	case strings.Contains(n, "otp"), strings.Contains(n, "receipt"), strings.Contains(n, "payment"), strings.Contains(n, "fee"):
		return CategoryTransactional
	default:
		return CategoryUtility
	}
}
