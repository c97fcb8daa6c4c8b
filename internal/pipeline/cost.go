package pipeline

import "math"

// Round6 rounds half-up to 6 decimal places; all persisted prices go
// through it.
func Round6(v float64) float64 {
	return math.Floor(v*1e6+0.5) / 1e6
}

type SpeechEntry struct {
	Kind        string  `json:"kind"`
	DurationSec float64 `json:"duration_sec"`
	Price       float64 `json:"price"`
}

type ModelEntry struct {
	Kind        string  `json:"kind"`
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
	Price       float64 `json:"price"`
}

// CostLog is created fresh per run, appended to by the transcription and
// scoring stages, summarized once, persisted once, and never mutated after
// persistence.
type CostLog struct {
	Speech []SpeechEntry `json:"speech"`
	Model  []ModelEntry  `json:"model"`

	TotalCost         float64 `json:"total_cost"`
	TranscriptionCost float64 `json:"transcription_cost"`
	ReasoningCost     float64 `json:"reasoning_cost"`
	DurationSec       float64 `json:"duration_sec"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

func NewCostLog() *CostLog {
	return &CostLog{
		Speech: []SpeechEntry{},
		Model:  []ModelEntry{},
	}
}

func (c *CostLog) AddSpeech(kind string, durationSec, price float64) {
	c.Speech = append(c.Speech, SpeechEntry{
		Kind:        kind,
		DurationSec: durationSec,
		Price:       Round6(price),
	})
}

func (c *CostLog) AddModel(kind string, inputPrice, outputPrice float64) {
	in := Round6(inputPrice)
	out := Round6(outputPrice)
	c.Model = append(c.Model, ModelEntry{
		Kind:        kind,
		InputPrice:  in,
		OutputPrice: out,
		Price:       Round6(in + out),
	})
}

// Summarize derives the totals. Invariant:
// TotalCost == Round6(TranscriptionCost + ReasoningCost).
func (c *CostLog) Summarize(processingTimeSec float64) {
	var transcription, reasoning, duration float64
	for _, e := range c.Speech {
		transcription += e.Price
		duration += e.DurationSec
	}
	for _, e := range c.Model {
		reasoning += e.Price
	}

	c.TranscriptionCost = Round6(transcription)
	c.ReasoningCost = Round6(reasoning)
	c.TotalCost = Round6(c.TranscriptionCost + c.ReasoningCost)
	c.DurationSec = duration
	c.ProcessingTimeSec = processingTimeSec
}
