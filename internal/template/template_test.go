package template

import "testing"

func TestRecomputeVariables(t *testing.T) {
	tpl := MessageTemplate{
		Subject:   "Hello {{name}}",
		Content:   "Your batch {{batch_name}} starts {{current_date}}. Bye {{name}}.",
		Variables: []string{"stale"},
	}
	tpl.RecomputeVariables()

	want := []string{"batch_name", "current_date", "name"}
	got := append([]string(nil), tpl.Variables...)
	if len(got) != len(want) {
		t.Fatalf("variables = %v, want set %v", got, want)
	}
	set := map[string]bool{}
	for _, v := range got {
		set[v] = true
	}
	for _, v := range want {
		if !set[v] {
			t.Fatalf("variables = %v, missing %q", got, v)
		}
	}
}

func TestInferCategory(t *testing.T) {
	cases := map[string]Category{
		"Diwali Offer Blast":    CategoryMarketing,
		"Login OTP":             CategoryTransactional,
		"Fee Payment Reminder":  CategoryTransactional,
		"Batch Timing Change":   CategoryUtility,
		"New Session Promo 20%": CategoryMarketing,
	}
	for name, want := range cases {
		if got := InferCategory(name); got != want {
			t.Fatalf("InferCategory(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestEffectiveCategory_ExplicitWins(t *testing.T) {
	tpl := MessageTemplate{Name: "Summer Offer", Category: CategoryUtility}
	if got := tpl.EffectiveCategory(); got != CategoryUtility {
		t.Fatalf("explicit category overridden: %s", got)
	}

	tpl.Category = ""
	if got := tpl.EffectiveCategory(); got != CategoryMarketing {
		t.Fatalf("fallback inference = %s, want marketing", got)
	}
}

func TestChannelValid(t *testing.T) {
	if !ChannelEmail.Valid() || !ChannelWhatsApp.Valid() {
		t.Fatal("known channels must be valid")
	}
	if Channel("SMS").Valid() {
		t.Fatal("unknown channel accepted")
	}
}
