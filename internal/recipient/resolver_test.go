package recipient

import (
	"testing"
	"time"

	"github.com/tahirm09/BulkNotify/internal/template"
)

var fixedNow = func() time.Time {
	return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
}

func TestResolve_FiltersMissingContact(t *testing.T) {
	rs := Resolver{Now: fixedNow}
	recs := []Recipient{
		{ID: "r1", DisplayName: "Aarav", Email: "a@x.com"},
		{ID: "r2", DisplayName: "Diya"}, // no email
		{ID: "r3", DisplayName: "Kabir", Email: "k@x.com"},
	}

	res := rs.Resolve(recs, template.ChannelEmail, nil)

	if len(res.Bound) != 2 {
		t.Fatalf("bound = %d, want 2", len(res.Bound))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "r2" {
		t.Fatalf("skipped = %+v, want r2", res.Skipped)
	}
	for _, b := range res.Bound {
		if b.Recipient.ID == "r2" {
			t.Fatal("recipient without email entered the bound list")
		}
	}
}

func TestResolve_ChannelSelectsContactField(t *testing.T) {
	rs := Resolver{Now: fixedNow}
	recs := []Recipient{
		{ID: "r1", Email: "a@x.com"},
		{ID: "r2", Phone: "+911234567890"},
		{ID: "r3", Email: "k@x.com", Phone: "+919999999999"},
	}

	email := rs.Resolve(recs, template.ChannelEmail, nil)
	if len(email.Bound) != 2 || len(email.Skipped) != 1 {
		t.Fatalf("email: bound=%d skipped=%d", len(email.Bound), len(email.Skipped))
	}

	wa := rs.Resolve(recs, template.ChannelWhatsApp, nil)
	if len(wa.Bound) != 2 || wa.Skipped[0].ID != "r1" {
		t.Fatalf("whatsapp: bound=%d skipped=%+v", len(wa.Bound), wa.Skipped)
	}
}

func TestResolve_BindingPrecedence(t *testing.T) {
	rs := Resolver{Now: fixedNow}
	recs := []Recipient{{
		ID:          "r1",
		DisplayName: "Aarav",
		Email:       "a@x.com",
		Attributes: map[string]string{
			"batch_name":   "10th Standard",
			"current_date": "attribute wins over temporal",
		},
	}}
	custom := template.Binding{"batch_name": "10th Premium"}

	res := rs.Resolve(recs, template.ChannelEmail, custom)
	b := res.Bound[0].Binding

	if b["batch_name"] != "10th Premium" {
		t.Fatalf("custom field did not override attribute: %q", b["batch_name"])
	}
	if b["current_date"] != "attribute wins over temporal" {
		t.Fatalf("attribute did not override temporal: %q", b["current_date"])
	}
	if b["name"] != "Aarav" {
		t.Fatalf("display name not bound: %q", b["name"])
	}
}

func TestResolve_TemporalFields(t *testing.T) {
	rs := Resolver{Now: fixedNow}
	res := rs.Resolve([]Recipient{{ID: "r1", Email: "a@x.com"}}, template.ChannelEmail, nil)

	b := res.Bound[0].Binding
	want := map[string]string{
		"current_date":  "14 Mar 2025",
		"current_time":  "09:30",
		"current_year":  "2025",
		"current_month": "March",
		"current_day":   "Friday",
	}
	for k, v := range want {
		if b[k] != v {
			t.Fatalf("%s = %q, want %q", k, b[k], v)
		}
	}
}
