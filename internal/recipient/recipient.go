package recipient

import (
	"github.com/tahirm09/BulkNotify/internal/template"
)

type Recipient struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ContactValue returns the channel-appropriate contact address. Empty means
// the recipient cannot be dispatched on that channel.
func (r Recipient) ContactValue(channel template.Channel) string {
	switch channel {
	case template.ChannelEmail:
		return r.Email
	case template.ChannelWhatsApp:
		return r.Phone
	}
	return ""
}
