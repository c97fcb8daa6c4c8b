package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/echolabs/echocore/internal/providers/llm"
)

const (
	fallbackItemReview    = "Failed to review."
	fallbackSummaryReview = "Failed to rate the interview."

	maxItemReviewChars    = 255
	maxSummaryReviewChars = 500
)

// ScoringStage rates every transcript against its expected answer and then
// summarizes the rated set. Model failures and unparsable responses degrade
// per item; they never abort the run.
type ScoringStage struct {
	LLM         llm.Provider
	CallTimeout time.Duration
}

func (s *ScoringStage) Score(ctx context.Context, run *Run, items []TranscriptItem) ([]RatedItem, Summary, error) {
	rated := make([]RatedItem, 0, len(items))

	for _, item := range items {
		out := RatedItem{TranscriptItem: item, Rate: 1, Review: fallbackItemReview}

		res, err := s.complete(ctx, ratePrompt(run.LanguageName, item), 500)
		if err != nil {
			run.Log.WithError(err).Error("rating call failed, degrading to rate 1")
		} else {
			run.Costs.AddModel("llm", res.InputCost, res.OutputCost)
			if v, ok := decodeVerdict(res.Text); ok {
				out.Rate = clampRate(v.Rate)
				out.Review = truncate(v.Review, maxItemReviewChars)
			} else {
				run.Log.Errorf("unparsable rating response, degrading to rate 1: %q", snippet(res.Text))
			}
		}

		rated = append(rated, out)
		run.Log.Infof("question rated | rate %d", out.Rate)
	}

	summary := Summary{Rate: 1, Review: fallbackSummaryReview}
	res, err := s.complete(ctx, summaryPrompt(run.LanguageName, rated), 4000)
	if err != nil {
		run.Log.WithError(err).Error("summary call failed, degrading")
	} else {
		run.Costs.AddModel("llm", res.InputCost, res.OutputCost)
		if v, ok := decodeVerdict(res.Text); ok {
			summary.Rate = clampRate(v.Rate)
			summary.Review = truncate(v.Review, maxSummaryReviewChars)
		} else {
			run.Log.Errorf("unparsable summary response, degrading: %q", snippet(res.Text))
		}
	}
	run.Log.Infof("summary ready | rate %d", summary.Rate)

	return rated, summary, nil
}

func (s *ScoringStage) complete(ctx context.Context, prompt string, maxTokens int) (llm.Result, error) {
	if s.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CallTimeout)
		defer cancel()
	}
	return s.LLM.Complete(ctx, prompt, maxTokens)
}

// verdict is the structured answer both model tasks must return.
type verdict struct {
	Rate   float64 `json:"rate"`
	Review string  `json:"review"`
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// decodeVerdict locates the first {...} block in free text and decodes it.
// The two arms - parsed and unparsable - are explicit: callers must handle
// ok == false rather than rely on a zero value.
func decodeVerdict(text string) (verdict, bool) {
	block := jsonBlockRe.FindString(text)
	if block == "" {
		return verdict{}, false
	}
	var v verdict
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return verdict{}, false
	}
	return v, true
}

func clampRate(v float64) int {
	n := int(v)
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func snippet(s string) string {
	return truncate(strings.TrimSpace(s), 120)
}

func ratePrompt(languageName string, item TranscriptItem) string {
	return fmt.Sprintf(`You are evaluating an interview fragment. The input is in %[1]s. The review must also be in %[1]s.

Question: %s
Expected answer: %s
Respondent's answer: %s

Rate the respondent's answer on a scale from 1 to 5:
5 - fully matches expectations
4 - mostly matches
3 - partially matches
2 - off-topic
1 - missing or inappropriate

Respond strictly in JSON in %[1]s:
{
  "rate": <number from 1 to 5>,
  "review": "<short explanation, max 255 characters, in %[1]s>"
}

Do not include any formatting like `+"```json"+`. Return plain valid JSON only.`,
		languageName, item.Question, item.Expected, item.Answer)
}

func summaryPrompt(languageName string, rated []RatedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are interview answers in %s:\n\n", languageName)
	for _, item := range rated {
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\nRate: %d\nComment: %s\n\n",
			item.Question, item.Answer, item.Rate, item.Review)
	}
	fmt.Fprintf(&b, `
1. Give an overall interview score from 1 to 5.
2. Write a short summary (max 500 characters) analyzing the respondent's behavior and answers.

Respond strictly in JSON in %[1]s:
{
  "rate": <number from 1 to 5>,
  "review": "<summary in %[1]s, max 500 characters>"
}

Do not include markdown or `+"```json"+` - return only valid JSON.`, languageName)
	return b.String()
}
