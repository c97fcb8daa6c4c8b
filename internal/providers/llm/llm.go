package llm

import "context"

// Result is one completion. Costs are split into the input and output token
// components, in USD, priced by the provider's configured rates.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
}

type Provider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (Result, error)
	Close() error
}
