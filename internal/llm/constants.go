// In file: internal/llm/constants.go
package llm

import "time"

// Constants shared by the provider clients.
const (
	defaultTimeout    = 120 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	defaultMaxOutput  = 4096
)

// Chat completion endpoints of the OpenAI-compatible providers.
const (
	groqBaseURL    = "https://api.groq.com/openai/v1"
	openAIBaseURL  = "https://api.openai.com/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"
)
