package anyllm_test

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/llm/anyllm"
)

func TestNew_EmptyProviderName_ReturnsError(t *testing.T) {
	_, err := anyllm.New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty providerName, got nil")
	}
}

func TestNew_EmptyModel_ReturnsError(t *testing.T) {
	_, err := anyllm.New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestNew_UnsupportedProvider_ReturnsError(t *testing.T) {
	_, err := anyllm.New("watson", "some-model")
	if err == nil {
		t.Fatal("expected error for unsupported provider, got nil")
	}
}

func TestNew_SupportedProviders(t *testing.T) {
	// Backends that do not require an API key at construction time.
	for _, name := range []string{"openai", "anthropic", "ollama", "llamacpp", "llamafile"} {
		p, err := anyllm.New(name, "test-model", anyllmlib.WithAPIKey("test-key"))
		if err != nil {
			t.Errorf("New(%q) returned error: %v", name, err)
			continue
		}
		if p == nil {
			t.Errorf("New(%q) returned nil provider", name)
		}
	}
}
