// Package bgaudio synthesizes background sound procedurally with ffmpeg's
// lavfi sources: band-limited noise for ambience, sine chords for music,
// anullsrc for silence. It never fails hard — the worst case degrades to a
// silent clip, and only if even that fails does the caller get a missing
// artifact.
package bgaudio

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"

	"vidgen-pipeline/files"
	"vidgen-pipeline/media"
	"vidgen-pipeline/types"
)

// AudioType is the coarse bucket a description classifies into.
type AudioType string

const (
	TypeSilence AudioType = "silence"
	TypeAmbient AudioType = "ambient"
	TypeMusic   AudioType = "music"
)

// Register is the coarse frequency band for synthesis.
type Register string

const (
	RegisterLow   Register = "low"
	RegisterMid   Register = "mid"
	RegisterHigh  Register = "high"
	RegisterMixed Register = "mixed"
)

const defaultDurationSec = 5.0

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:sec|second|s)`)

type Generator struct {
	ws *files.Workspace
}

func New(ws *files.Workspace) *Generator {
	return &Generator{ws: ws}
}

// Generate synthesizes background audio for a free-text description.
func (g *Generator) Generate(ctx context.Context, description string) types.Artifact {
	if strings.TrimSpace(description) == "" {
		description = "silence"
	}

	audioType, duration, register := Classify(description)
	outFile := g.ws.UniquePath(files.AudioDir, "background", ".wav")

	var err error
	switch audioType {
	case TypeSilence:
		err = g.synthSilence(ctx, outFile, duration)
	case TypeMusic:
		err = g.synthMusic(ctx, outFile, description, duration)
	default:
		err = g.synthAmbient(ctx, outFile, description, duration, register)
	}
	if err == nil {
		return types.Artifact{Path: outFile, Status: types.ArtifactReal}
	}

	log.Printf("[bgaudio] synthesis failed (%v) — degrading to silence", err)
	if err := g.synthSilence(ctx, outFile, duration); err != nil {
		log.Printf("[bgaudio] silence fallback also failed: %v", err)
		return types.Artifact{Status: types.ArtifactMissing}
	}
	return types.Artifact{Path: outFile, Status: types.ArtifactFallback}
}

// Classify buckets a description into an audio type, an explicit or
// default duration, and a frequency register. Type keywords are checked in
// a fixed order (silence, music, ambient), frequency keywords in a
// separate fixed order; the keyword lists are tunable policy, the three
// type buckets are not.
func Classify(description string) (AudioType, float64, Register) {
	lower := strings.ToLower(description)

	audioType := TypeAmbient
	switch {
	case strings.Contains(lower, "silence") || strings.Contains(lower, "quiet"):
		audioType = TypeSilence
	case containsAny(lower, "music", "melody", "song", "tune"):
		audioType = TypeMusic
	case containsAny(lower, "ambient", "atmosphere", "background", "noise"):
		audioType = TypeAmbient
	}

	duration := defaultDurationSec
	if m := durationPattern.FindStringSubmatch(lower); m != nil {
		if d, err := media.ParseDuration(m[1]); err == nil {
			duration = d
		}
	}

	register := RegisterMixed
	switch {
	case containsAny(lower, "deep", "low", "bass", "rumble"):
		register = RegisterLow
	case containsAny(lower, "high", "bright", "chirp", "bell"):
		register = RegisterHigh
	case containsAny(lower, "middle", "mid", "voice"):
		register = RegisterMid
	}

	return audioType, duration, register
}

func (g *Generator) synthSilence(ctx context.Context, outFile string, duration float64) error {
	return media.Run(ctx,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", media.FormatSeconds(duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
}

func (g *Generator) synthAmbient(ctx context.Context, outFile, description string, duration float64, register Register) error {
	return media.Run(ctx,
		"-f", "lavfi",
		"-i", ambientFilter(description, register),
		"-t", media.FormatSeconds(duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
}

func (g *Generator) synthMusic(ctx context.Context, outFile, description string, duration float64) error {
	return media.Run(ctx,
		"-f", "lavfi",
		"-i", musicFilter(description, duration),
		"-t", media.FormatSeconds(duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
}

// ambientFilter builds a lavfi graph of filtered noise shaped by the
// description's setting and register.
func ambientFilter(description string, register Register) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "laboratory") || strings.Contains(lower, "tech"):
		beep := 800 + rand.Intn(400)
		return fmt.Sprintf(
			"anoisesrc=c=pink:r=44100:a=0.1,highpass=f=60,lowpass=f=600[base];sine=f=%d:d=0.1[beep];[base][beep]amix=inputs=2:duration=first:weights=1 0.2",
			beep)
	case strings.Contains(lower, "nature") || strings.Contains(lower, "forest"):
		switch register {
		case RegisterLow:
			return "anoisesrc=c=brown:r=44100:a=0.05,highpass=f=20,lowpass=f=400"
		case RegisterHigh:
			return "anoisesrc=c=white:r=44100:a=0.03,highpass=f=2000,lowpass=f=8000"
		default:
			return "anoisesrc=c=pink:r=44100:a=0.04,highpass=f=100,lowpass=f=2000"
		}
	case strings.Contains(lower, "urban") || strings.Contains(lower, "city"):
		return "anoisesrc=c=pink:r=44100:a=0.06,highpass=f=80,lowpass=f=1500"
	default:
		switch register {
		case RegisterLow:
			return "anoisesrc=c=brown:r=44100:a=0.04,highpass=f=40,lowpass=f=300"
		case RegisterHigh:
			return "anoisesrc=c=white:r=44100:a=0.02,highpass=f=1000,lowpass=f=5000"
		default:
			return "anoisesrc=c=pink:r=44100:a=0.03,highpass=f=200,lowpass=f=2000"
		}
	}
}

// musicFilter builds a three-tone sine chord, minor for dark descriptions,
// major otherwise.
func musicFilter(description string, duration float64) string {
	lower := strings.ToLower(description)

	// C major (C4, E4, G4) or C minor (C4, Eb4, G4)
	freqs := []float64{261.63, 329.63, 392.00}
	if containsAny(lower, "sad", "dark", "melancholy") {
		freqs[1] = 311.13
	}

	d := media.FormatSeconds(duration)
	return fmt.Sprintf(
		"sine=f=%.2f:d=%s[s1];sine=f=%.2f:d=%s[s2];sine=f=%.2f:d=%s[s3];[s1][s2][s3]amix=inputs=3:duration=first,volume=0.3",
		freqs[0], d, freqs[1], d, freqs[2], d)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
