package template

import (
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty", "", nil},
		{"no placeholders", "plain text", nil},
		{"single", "Hi {{name}}", []string{"name"}},
		{"duplicates removed", "{{a}} and {{b}} and {{a}}", []string{"a", "b"}},
		{"unbalanced ignored", "Hi {{name} and {batch}}", nil},
		{"nested ignored", "{{{{x}}", []string{"x"}},
		{"identifier chars", "{{batch_name}} {{x1}}", []string{"batch_name", "x1"}},
		{"spaces not identifiers", "{{first name}}", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractVariables(tc.content)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractVariables(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestSubstitute(t *testing.T) {
	content := "Hi {{name}}, your batch is {{batch_name}}."
	b := Binding{"name": "Aarav", "batch_name": "10th Premium"}

	got := Substitute(content, b)
	want := "Hi Aarav, your batch is 10th Premium."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubstitute_MissingKeyRendersEmpty(t *testing.T) {
	got := Substitute("Hello {{name}}!", Binding{})
	if got != "Hello !" {
		t.Fatalf("got %q, want %q", got, "Hello !")
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	b := Binding{"name": "Aarav", "batch_name": "10th Premium"}
	once := Substitute("Hi {{name}}, batch {{batch_name}}", b)
	twice := Substitute(once, b)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestSubstitute_FullCoverageLeavesNoKnownPlaceholders(t *testing.T) {
	content := "{{a}} {{b}} {{c}} literal {{a}}"
	b := Binding{}
	for _, v := range ExtractVariables(content) {
		b[v] = "x"
	}
	out := Substitute(content, b)
	for _, v := range ExtractVariables(out) {
		if _, ok := b[v]; ok {
			t.Fatalf("placeholder %q survived substitution in %q", v, out)
		}
	}
}

func TestValidateTemplate(t *testing.T) {
	tpl := MessageTemplate{
		Subject: "Fees for {{month}}",
		Content: "Hi {{name}}, {{amount}} is due.",
	}
	res := ValidateTemplate(tpl, Binding{"name": "Aarav", "month": "May"})

	if res.CanSend {
		t.Fatal("expected CanSend=false with missing variables")
	}
	if !reflect.DeepEqual(res.MissingVariables, []string{"amount"}) {
		t.Fatalf("missing = %v", res.MissingVariables)
	}
	if res.AvailableVariables["name"] != "Aarav" || res.AvailableVariables["month"] != "May" {
		t.Fatalf("available = %v", res.AvailableVariables)
	}

	res = ValidateTemplate(tpl, Binding{"name": "A", "month": "B", "amount": "C"})
	if !res.CanSend || len(res.MissingVariables) != 0 {
		t.Fatalf("expected CanSend with all fields, got %+v", res)
	}
}
