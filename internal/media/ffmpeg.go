package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Available returns true if ffmpeg is on the PATH.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// Reencode rewrites a chunk to the accepted codec pair (VP8 video at 1M,
// Opus audio).
func Reencode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-y", "-i", src,
		"-c:v", "libvpx", "-b:v", "1M",
		"-c:a", "libopus",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg re-encode failed: %w\n%s", err, string(out))
	}
	return nil
}

// Duration returns the real container duration in seconds, 0 on probe
// failure.
func Duration(ctx context.Context, path string) float64 {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return d
}

// Concat joins the inputs into one continuous video via a stream-concat
// filter graph, re-encoding to the accepted codec pair.
func Concat(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat requires at least one input")
	}

	args := []string{"-y"}
	var filters strings.Builder
	for i, in := range inputs {
		args = append(args, "-i", in)
		fmt.Fprintf(&filters, "[%d:v:0][%d:a:0]", i, i)
	}
	fmt.Fprintf(&filters, "concat=n=%d:v=1:a=1[outv][outa]", len(inputs))

	args = append(args,
		"-filter_complex", filters.String(),
		"-map", "[outv]", "-map", "[outa]",
		"-c:v", "libvpx", "-b:v", "1M",
		"-c:a", "libopus",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w\n%s", err, string(out))
	}
	return nil
}
