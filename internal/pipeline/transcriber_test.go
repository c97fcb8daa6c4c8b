package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/providers/stt"
	"github.com/echolabs/echocore/internal/utils"
)

// fakeSTT maps audio payloads to transcripts.
type fakeSTT struct {
	byAudio map[string]stt.Result
	errOn   map[string]error
	calls   int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, language string) (stt.Result, error) {
	f.calls++
	if err, ok := f.errOn[string(audio)]; ok {
		return stt.Result{}, err
	}
	if res, ok := f.byAudio[string(audio)]; ok {
		return res, nil
	}
	return stt.Result{}, errors.New("unexpected audio")
}

func (f *fakeSTT) Close() error { return nil }

func writeChunk(t *testing.T, run *Run, name, content string) {
	t.Helper()
	if err := os.WriteFile(run.Workspace.Path(name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func twoQuestions() []models.Question {
	return []models.Question{
		{Position: 0, Question: "Tell me about yourself", Expected: "A short intro"},
		{Position: 1, Question: "Why this role", Expected: "Motivation"},
	}
}

func TestTranscribe_JoinsChunksPerQuestion(t *testing.T) {
	run := newTestRun(t)
	writeChunk(t, run, "0_0.webm", "audio-a")
	writeChunk(t, run, "0_1.webm", "audio-b")
	writeChunk(t, run, "1_0.webm", "audio-c")

	f := &fakeSTT{byAudio: map[string]stt.Result{
		"audio-a": {Text: "my name is", DurationSec: 14, Cost: 0.0014},
		"audio-b": {Text: "Alex", DurationSec: 6, Cost: 0.0006},
		"audio-c": {Text: "I like the team", DurationSec: 12, Cost: 0.0012},
	}}
	stage := &TranscriptionStage{STT: f}

	items, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Answer != "my name is Alex" {
		t.Errorf("items[0].Answer = %q", items[0].Answer)
	}
	if items[0].Question != "Tell me about yourself" || items[0].Expected != "A short intro" {
		t.Errorf("items[0] question/expected = %q / %q", items[0].Question, items[0].Expected)
	}
	if items[1].Answer != "I like the team" {
		t.Errorf("items[1].Answer = %q", items[1].Answer)
	}
	if len(run.Costs.Speech) != 3 {
		t.Errorf("speech cost entries = %d, want 3", len(run.Costs.Speech))
	}
}

func TestTranscribe_SentinelForChunklessQuestion(t *testing.T) {
	run := newTestRun(t)
	writeChunk(t, run, "0_0.webm", "audio-a")

	f := &fakeSTT{byAudio: map[string]stt.Result{
		"audio-a": {Text: "an answer", DurationSec: 15, Cost: 0.0015},
	}}
	stage := &TranscriptionStage{STT: f}

	items, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[1].Answer != NoAnswer {
		t.Errorf("items[1].Answer = %q, want %q", items[1].Answer, NoAnswer)
	}
}

func TestTranscribe_SentinelWhenEveryChunkFails(t *testing.T) {
	run := newTestRun(t)
	writeChunk(t, run, "0_0.webm", "audio-a")
	writeChunk(t, run, "1_0.webm", "audio-b")

	f := &fakeSTT{
		byAudio: map[string]stt.Result{
			"audio-b": {Text: "fine", DurationSec: 15, Cost: 0.0015},
		},
		errOn: map[string]error{"audio-a": errors.New("stt down")},
	}
	stage := &TranscriptionStage{STT: f}

	items, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Answer != NoAnswer {
		t.Errorf("items[0].Answer = %q, want sentinel", items[0].Answer)
	}
	if items[1].Answer != "fine" {
		t.Errorf("items[1].Answer = %q", items[1].Answer)
	}
}

func TestTranscribe_SkipsChunkForUnknownQuestion(t *testing.T) {
	run := newTestRun(t)
	writeChunk(t, run, "0_0.webm", "audio-a")
	writeChunk(t, run, "7_0.webm", "audio-x")

	f := &fakeSTT{byAudio: map[string]stt.Result{
		"audio-a": {Text: "hello", DurationSec: 15, Cost: 0.0015},
	}}
	stage := &TranscriptionStage{STT: f}

	items, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Answer != "hello" {
		t.Errorf("items[0].Answer = %q", items[0].Answer)
	}
	// The out-of-range chunk must never reach the provider.
	if f.calls != 1 {
		t.Errorf("stt calls = %d, want 1", f.calls)
	}
}

func TestTranscribe_DropsSingleCharacterTranscripts(t *testing.T) {
	run := newTestRun(t)
	writeChunk(t, run, "0_0.webm", "audio-a")
	writeChunk(t, run, "0_1.webm", "audio-b")

	f := &fakeSTT{byAudio: map[string]stt.Result{
		"audio-a": {Text: "m", DurationSec: 2, Cost: 0.0002},
		"audio-b": {Text: "real words", DurationSec: 13, Cost: 0.0013},
	}}
	stage := &TranscriptionStage{STT: f}

	items, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Answer != "real words" {
		t.Errorf("items[0].Answer = %q, want noise dropped", items[0].Answer)
	}
}

func TestTranscribe_NoChunksIsFatal(t *testing.T) {
	run := newTestRun(t)
	stage := &TranscriptionStage{STT: &fakeSTT{}}

	_, err := stage.Transcribe(context.Background(), run, twoQuestions())
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
