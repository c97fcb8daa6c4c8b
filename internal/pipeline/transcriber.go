package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/echolabs/echocore/internal/models"
	"github.com/echolabs/echocore/internal/providers/stt"
	"github.com/echolabs/echocore/internal/utils"
)

// TranscriptionStage turns the downloaded chunks into one transcript per
// question. Per-chunk failures are absorbed; only a missing workspace or a
// chunkless attempt is fatal.
type TranscriptionStage struct {
	STT         stt.Provider
	CallTimeout time.Duration
}

func (t *TranscriptionStage) Transcribe(ctx context.Context, run *Run, questions []models.Question) ([]TranscriptItem, error) {
	const op = "TranscriptionStage.Transcribe"

	files, malformed, err := sortedChunkFiles(run.Workspace.Dir())
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "workspace not readable", err)
	}
	for _, name := range malformed {
		run.Log.Warnf("skipping malformed chunk filename %q", name)
	}
	if len(files) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no chunk files to group", nil)
	}

	grouped := make(map[int][]string)
	for _, name := range files {
		key, _ := parseChunkName(name)
		if key.Question >= len(questions) {
			run.Log.Warnf("chunk %s references unknown question %d, skipping", name, key.Question)
			continue
		}
		grouped[key.Question] = append(grouped[key.Question], name)
	}
	if len(grouped) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no chunks match the interview questions", nil)
	}

	items := make([]TranscriptItem, 0, len(questions))
	for qIdx, q := range questions {
		var b strings.Builder
		for _, name := range grouped[qIdx] {
			text, ok := t.transcribeChunk(ctx, run, name)
			if !ok {
				continue
			}
			if len(strings.TrimSpace(text)) > 1 {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
		}

		answer := b.String()
		if answer == "" {
			answer = NoAnswer
		}

		items = append(items, TranscriptItem{
			Question: q.Question,
			Expected: q.Expected,
			Answer:   answer,
		})
		run.Log.Infof("question %d transcribed", qIdx)
	}
	return items, nil
}

func (t *TranscriptionStage) transcribeChunk(ctx context.Context, run *Run, name string) (string, bool) {
	data, err := os.ReadFile(run.Workspace.Path(name))
	if err != nil {
		run.Log.WithError(err).Warnf("unreadable chunk %s, skipping", name)
		return "", false
	}

	callCtx := ctx
	if t.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.CallTimeout)
		defer cancel()
	}

	res, err := t.STT.Transcribe(callCtx, data, run.STTLocale)
	if err != nil {
		run.Log.WithError(err).Warnf("transcription failed for %s, skipping", name)
		return "", false
	}

	run.Costs.AddSpeech("stt", res.DurationSec, res.Cost)
	if res.Text == "" {
		run.Log.Warnf("empty transcription for %s (no_speech_prob=%.2f)", name, res.NoSpeechProb)
		return "", false
	}
	return res.Text, true
}
