package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/echolabs/echocore/internal/media"
)

// ErrNoRenderableChunks distinguishes "zero chunks survived validation"
// from a legitimately empty timecode map: a run whose render produces no
// segments is a failure, never success-with-no-video.
var ErrNoRenderableChunks = errors.New("no chunks survived validation")

// MediaRenderer validates and repairs chunk encodings, concatenates the
// survivors into one continuous video, and tracks where each question's
// answer begins.
type MediaRenderer struct{}

func (r *MediaRenderer) Render(ctx context.Context, run *Run) (string, map[string]string, error) {
	run.Log.Info("building video")

	files, _, err := sortedChunkFiles(run.Workspace.Dir())
	if err != nil {
		return "", nil, err
	}

	fixedDir, err := run.Workspace.FixedDir()
	if err != nil {
		return "", nil, err
	}

	timecodes := make(map[string]string, run.QuestionCount)
	for i := 0; i < run.QuestionCount; i++ {
		timecodes[qKey(i)] = ""
	}

	var (
		survivors   []string
		currentTime float64
		prevQ       = -1
		first       = true
	)

	for _, name := range files {
		key, _ := parseChunkName(name)
		src := run.Workspace.Path(name)
		fixed := filepath.Join(fixedDir, "fixed_"+name)

		switch r.prepare(ctx, run, name, src, fixed) {
		case media.VerdictSkip:
			continue
		}

		if first {
			timecodes[qKey(key.Question)] = formatTimecode(0)
			first = false
		} else if key.Question != prevQ {
			timecodes[qKey(key.Question)] = formatTimecode(currentTime)
		}
		prevQ = key.Question

		currentTime += media.Duration(ctx, fixed)
		survivors = append(survivors, fixed)
		run.Log.Infof("%s prepared", name)
	}

	if len(survivors) == 0 {
		return "", nil, ErrNoRenderableChunks
	}

	// Questions with no surviving chunk anchor at the end of the video.
	end := formatTimecode(currentTime)
	for k, v := range timecodes {
		if v == "" {
			timecodes[k] = end
		}
	}

	out := run.Workspace.VideoPath()
	if err := media.Concat(ctx, survivors, out); err != nil {
		return "", nil, err
	}
	run.Log.Info("video built, timecodes ready")
	return out, timecodes, nil
}

// prepare probes one chunk and either keeps it (copied), repairs it
// (re-encoded), or skips it. Preparation failures downgrade to skip.
func (r *MediaRenderer) prepare(ctx context.Context, run *Run, name, src, fixed string) media.Verdict {
	info, err := media.Probe(ctx, src)
	if err != nil {
		run.Log.WithError(err).Warnf("probe failed for %s, skipping", name)
		return media.VerdictSkip
	}

	hasFrames := false
	if info.Duration < 0.2 {
		hasFrames = media.HasFrames(ctx, src)
	}

	verdict := media.Evaluate(info, hasFrames)
	switch verdict {
	case media.VerdictSkip:
		run.Log.Warnf("skipping unreadable file %s", name)
	case media.VerdictReencode:
		if err := media.Reencode(ctx, src, fixed); err != nil {
			run.Log.WithError(err).Warnf("failed to repair %s, skipping", name)
			return media.VerdictSkip
		}
	case media.VerdictKeep:
		if err := copyFile(src, fixed); err != nil {
			run.Log.WithError(err).Warnf("failed to stage %s, skipping", name)
			return media.VerdictSkip
		}
	}
	return verdict
}

func qKey(question int) string { return fmt.Sprintf("q%d", question) }

func formatTimecode(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
