package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ChunkSeconds is the nominal recorded chunk length. Chunks noticeably
// shorter than this usually carry a broken container header from an
// interrupted upload and are re-encoded.
const ChunkSeconds = 15.0

var (
	validVideoCodecs = map[string]bool{"vp8": true, "vp9": true, "av1": true}
	validAudioCodecs = map[string]bool{"opus": true, "vorbis": true}
)

// ProbeInfo is the subset of ffprobe output the renderer decides on.
type ProbeInfo struct {
	VideoCodec string
	AudioCodec string
	FPS        float64
	Duration   float64
}

// probeOutput mirrors the ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe inspects codecs, frame rate, and duration of a media file.
func Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}

	info := &ProbeInfo{}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			info.VideoCodec = s.CodecName
			info.FPS = parseFrameRate(s.RFrameRate)
		case "audio":
			info.AudioCodec = s.CodecName
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > info.Duration {
			info.Duration = d
		}
	}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d > info.Duration {
		info.Duration = d
	}
	return info, nil
}

// parseFrameRate converts ffprobe's "30000/1001" form to frames per second.
func parseFrameRate(v string) float64 {
	parts := strings.SplitN(v, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// HasFrames runs a frame-count probe; a file with neither video nor audio
// frames is unreadable and cannot be repaired by re-encoding.
func HasFrames(ctx context.Context, path string) bool {
	return countFrames(ctx, path, "v:0") > 0 || countFrames(ctx, path, "a:0") > 0
}

func countFrames(ctx context.Context, path, streamSelector string) int {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-count_frames",
		"-select_streams", streamSelector,
		"-show_entries", "stream=nb_read_frames",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return n
}

type Verdict int

const (
	// VerdictKeep: chunk passes validation and goes into the concat as-is.
	VerdictKeep Verdict = iota
	// VerdictReencode: malformed but repairable; re-encode to the accepted
	// codec pair first.
	VerdictReencode
	// VerdictSkip: unreadable, drop it rather than abort the run.
	VerdictSkip
)

// Evaluate decides what to do with a chunk from its probe result. hasFrames
// is consulted only for near-zero durations, where the frame count
// distinguishes a broken header (repairable) from a truly empty file.
func Evaluate(info *ProbeInfo, hasFrames bool) Verdict {
	codecsValid := validVideoCodecs[info.VideoCodec] && validAudioCodecs[info.AudioCodec]

	if info.Duration < 0.2 {
		if hasFrames {
			return VerdictReencode
		}
		if codecsValid {
			return VerdictSkip
		}
		return VerdictReencode
	}

	if !codecsValid {
		return VerdictReencode
	}
	if info.FPS < 10 || info.FPS > 60 {
		return VerdictReencode
	}
	if info.Duration < ChunkSeconds*0.9 {
		return VerdictReencode
	}
	return VerdictKeep
}
