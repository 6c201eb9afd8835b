package recipient

import (
	"strconv"
	"time"

	"github.com/tahirm09/BulkNotify/internal/template"
)

type Resolved struct {
	Recipient Recipient
	Binding   template.Binding
}

type Resolution struct {
	Bound []Resolved
	// Skipped holds recipients excluded for lacking a contact value on the
	// target channel, so callers can explain reduced counts.
	Skipped []Recipient
}

// Resolver builds per-recipient bindings. Now is swappable for tests and
// defaults to time.Now.
type Resolver struct {
	Now func() time.Time
}

// Resolve filters recipients without a contact value for the channel and
// builds a Binding for the rest. Precedence, lowest to highest: computed
// temporal fields, recipient attributes, caller-supplied custom fields.
func (rs Resolver) Resolve(recipients []Recipient, channel template.Channel, customFields template.Binding) Resolution {
	now := time.Now
	if rs.Now != nil {
		now = rs.Now
	}
	temporal := temporalFields(now())

	var res Resolution
	for _, r := range recipients {
		contact := r.ContactValue(channel)
		if contact == "" {
			res.Skipped = append(res.Skipped, r)
			continue
		}

		b := make(template.Binding, len(temporal)+len(r.Attributes)+len(customFields)+2)
		for k, v := range temporal {
			b[k] = v
		}
		b["name"] = r.DisplayName
		for k, v := range r.Attributes {
			b[k] = v
		}
		for k, v := range customFields {
			b[k] = v
		}
		res.Bound = append(res.Bound, Resolved{Recipient: r, Binding: b})
	}
	return res
}

func temporalFields(now time.Time) template.Binding {
	return template.Binding{
		"current_date":  now.Format("02 Jan 2006"),
		"current_time":  now.Format("15:04"),
		"current_year":  strconv.Itoa(now.Year()),
		"current_month": now.Format("January"),
		"current_day":   now.Format("Monday"),
	}
}
