package extract

import (
	"testing"
	"time"
)

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		content  string
		want     bool
		wantType string
	}{
		{
			name:     "fenced code block triggers extraction",
			content:  "Here you go:\n```go\nfunc main() {}\n```",
			want:     true,
			wantType: "code",
		},
		{
			name:     "keyword triggers extraction",
			content:  "I saved this as an artifact for you.",
			want:     true,
			wantType: "code",
		},
		{
			name:     "keyword match is case-insensitive",
			content:  "Here is your ARTIFACT.",
			want:     true,
			wantType: "code",
		},
		{
			name:    "plain prose is not extracted",
			content: "The weather today is sunny.",
			want:    false,
		},
		{
			name:    "empty content is not extracted",
			content: "",
			want:    false,
		},
		{
			name:     "custom fence marker",
			policy:   Policy{FenceMarker: "~~~"},
			content:  "~~~\nsome code\n~~~",
			want:     true,
			wantType: "code",
		},
		{
			name:    "custom fence marker ignores default fence",
			policy:  Policy{FenceMarker: "~~~", Keyword: "snippet"},
			content: "```\nsome code\n```",
			want:    false,
		},
		{
			name:     "custom type tags the draft",
			policy:   Policy{Type: "document"},
			content:  "```text\nhello\n```",
			want:     true,
			wantType: "document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, ok := tt.policy.Evaluate(tt.content)

			if ok != tt.want {
				t.Fatalf("Evaluate() eligible = %v, want %v", ok, tt.want)
			}
			if !ok {
				return
			}
			if draft.Content != tt.content {
				t.Errorf("draft content = %q, want full content %q", draft.Content, tt.content)
			}
			if draft.Type != tt.wantType {
				t.Errorf("draft type = %q, want %q", draft.Type, tt.wantType)
			}
			if draft.Name == "" {
				t.Error("draft name must not be empty")
			}
		})
	}
}

func TestPolicy_DefaultName(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	p := Policy{Now: func() time.Time { return fixed }}

	draft, ok := p.Evaluate("```\nx\n```")
	if !ok {
		t.Fatal("expected content to be eligible")
	}

	want := "Artifact 2026-03-14 15:09:26"
	if draft.Name != want {
		t.Errorf("draft name = %q, want %q", draft.Name, want)
	}
}

func TestPolicy_EvaluateIsPure(t *testing.T) {
	p := Policy{Now: func() time.Time { return time.Unix(0, 0) }}
	content := "an artifact here"

	first, ok1 := p.Evaluate(content)
	second, ok2 := p.Evaluate(content)

	if !ok1 || !ok2 {
		t.Fatal("expected both evaluations to be eligible")
	}
	if first != second {
		t.Errorf("repeated evaluation differs: %+v vs %+v", first, second)
	}
}
