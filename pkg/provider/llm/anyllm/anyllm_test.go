package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/orato-voice/orato/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("empty provider name should fail")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("empty model should fail")
	}
	if _, err := New("not-a-provider", "m"); err == nil {
		t.Error("unknown provider name should fail")
	}
}

func TestBuildParamsSystemPromptAndJSONOnly(t *testing.T) {
	p := &Provider{model: "gemini-2.0-flash"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a speech coach.",
		Messages: []llm.Message{
			{Role: "user", Content: "analyse this"},
		},
		Temperature: 0.4,
		MaxTokens:   512,
		JSONOnly:    true,
	})

	if params.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	sys := params.Messages[0]
	if sys.Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q", sys.Role)
	}
	sysContent, ok := sys.Content.(string)
	if !ok {
		t.Fatalf("system content is %T, want string", sys.Content)
	}
	if !strings.Contains(sysContent, "speech coach") || !strings.Contains(sysContent, "JSON") {
		t.Errorf("system content missing prompt or JSON instruction: %q", sysContent)
	}
	if params.Temperature == nil || *params.Temperature != 0.4 {
		t.Error("temperature not carried")
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Error("max tokens not carried")
	}
}

func TestBuildParamsOmitsEmptySystem(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(params.Messages))
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero knobs should stay nil")
	}
}
