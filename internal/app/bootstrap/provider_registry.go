package bootstrap

import (
	"pdfbot/internal/adapter/provider/llm/anthropic"
	"pdfbot/internal/adapter/provider/llm/openai"
	applog "pdfbot/internal/platform/log"
	"pdfbot/internal/provider"
)

// RegisterLLMProviders registers configured LLM providers.
func RegisterLLMProviders(anthropicKey, anthropicBaseURL, openaiKey, openaiBaseURL string) {
	if anthropicKey == "" {
		applog.Warn("⚠️  No ANTHROPIC_API_KEY set, claude model will not work")
	} else {
		p := anthropic.New(anthropic.Config{
			APIKey:  anthropicKey,
			BaseURL: anthropicBaseURL,
		})
		provider.RegisterProvider(p)
		applog.Infof("✅ Registered LLM provider: %s", p.Name())
	}

	if openaiKey == "" && openaiBaseURL == "" {
		applog.Warn("⚠️  No OPENAI_API_KEY set, llama model will not work")
	} else {
		p := openai.New(openai.Config{
			APIKey:  openaiKey,
			BaseURL: openaiBaseURL,
		})
		provider.RegisterProvider(p)
		applog.Infof("✅ Registered LLM provider: %s (base: %s)", p.Name(), openaiBaseURL)
	}
}
