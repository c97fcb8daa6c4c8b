package stt

import "context"

// Result is one speech-to-text call outcome. DurationSec is the billed audio
// duration; Cost is the provider price for this call in USD.
type Result struct {
	Text         string
	NoSpeechProb float64
	DurationSec  float64
	Cost         float64
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
	Close() error
}
