package providers

import "github.com/tombee/baton/pkg/llm"

func init() {
	// Factories register at import time; nothing is instantiated until
	// llm.Activate runs with resolved credentials.
	llm.RegisterFactory("claude", NewClaudeWithCredentials)
	llm.RegisterFactory("gemini", NewGeminiWithCredentials)
	llm.RegisterFactory("codex", NewCodexWithCredentials)
	llm.RegisterFactory("bedrock", NewBedrockWithCredentials)
	llm.RegisterFactory("mock", NewMockWithCredentials)
}
