package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

// Pricing is USD per 1000 tokens.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

type VertexGemini struct {
	client  *vertexgenai.Client
	model   *vertexgenai.GenerativeModel
	pricing Pricing
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string, pricing Pricing) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	var temp float32 = 0
	m.Temperature = &temp

	return &VertexGemini{client: c, model: m, pricing: pricing}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Complete(ctx context.Context, prompt string, maxTokens int) (Result, error) {
	m := *v.model
	if maxTokens > 0 {
		mt := int32(maxTokens)
		m.MaxOutputTokens = &mt
	}

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return Result{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, errors.New("empty completion response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(vertexgenai.Text); ok {
			text += string(t)
		}
	}

	out := Result{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	out.InputCost = float64(out.InputTokens) / 1000 * v.pricing.InputPer1K
	out.OutputCost = float64(out.OutputTokens) / 1000 * v.pricing.OutputPer1K
	return out, nil
}
