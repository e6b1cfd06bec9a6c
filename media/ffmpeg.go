// Package media wraps the ffmpeg/ffprobe command-line tools that all
// deterministic assembly work runs through.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Run executes ffmpeg with the given arguments. On failure the returned
// error carries the tail of ffmpeg's stderr so tooling problems surface
// with the underlying diagnostic.
func Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", append([]string{"-y"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[0], err, stderrTail(stderr.String()))
	}
	return nil
}

// ProbeDuration returns a media file's duration in seconds via ffprobe.
func ProbeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseDuration(string(out))
}

// ParseDuration parses ffprobe's duration output.
func ParseDuration(s string) (float64, error) {
	dur, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(s), err)
	}
	return dur, nil
}

// WriteConcatList writes an ffmpeg concat-demuxer manifest listing the
// given files in order.
func WriteConcatList(path string, inputs []string) error {
	var lines []string
	for _, f := range inputs {
		lines = append(lines, fmt.Sprintf("file '%s'", f))
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

// EscapeDrawText escapes a string for use inside a drawtext filter.
func EscapeDrawText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, ":", "\\:")
	return s
}

// FormatSeconds renders a duration for ffmpeg arguments.
func FormatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	const max = 400
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
