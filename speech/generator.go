// Package speech turns narration text into audio via an external TTS
// command. Generation failure never escapes this package: the caller gets
// a missing artifact and substitutes silence.
package speech

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/media"
	"vidgen-pipeline/types"
)

// Generator runs the configured TTS engine. Set TTS_COMMAND to a command
// accepting --text "..." --output path; without it, edge-tts is used when
// present on PATH.
type Generator struct {
	cfg       config.SpeechConfig
	ws        *files.Workspace
	normalize func(ctx context.Context, src, dst string) error
}

func New(cfg config.SpeechConfig, ws *files.Workspace) *Generator {
	return &Generator{cfg: cfg, ws: ws, normalize: normalizeNarration}
}

// normalizeNarration re-encodes a TTS result into the pipeline's common
// narration format, 44100 Hz mono PCM wav. Engines emit whatever they
// like (edge-tts writes mp3); the silence substitute is wav, and concat
// assembly needs every narration track in one shared format.
func normalizeNarration(ctx context.Context, src, dst string) error {
	return media.Run(ctx,
		"-i", src,
		"-ar", "44100",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		dst,
	)
}

// Generate synthesizes speech for the given text. Returns a missing
// artifact when the text is empty, no engine is available, or every
// attempt fails.
func (g *Generator) Generate(ctx context.Context, text string) types.Artifact {
	if strings.TrimSpace(text) == "" {
		return types.Artifact{Status: types.ArtifactMissing}
	}

	engine := resolveEngine()
	if engine == "" {
		log.Println("[speech] no TTS engine found — set TTS_COMMAND or install edge-tts")
		return types.Artifact{Status: types.ArtifactMissing}
	}

	rawFile := g.ws.UniquePath(files.AudioDir, "tts_raw", ".mp3")
	outFile := g.ws.UniquePath(files.AudioDir, "tts", ".wav")
	g.ws.RegisterTemp(rawFile)

	var err error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		name, args := buildCommand(engine, g.cfg.Voice, text, rawFile)
		cmd := exec.CommandContext(ctx, name, args...)
		if err = cmd.Run(); err == nil {
			if nerr := g.normalize(ctx, rawFile, outFile); nerr != nil {
				log.Printf("[speech] narration transcode failed: %v", nerr)
				return types.Artifact{Status: types.ArtifactMissing}
			}
			return types.Artifact{Path: outFile, Status: types.ArtifactReal}
		}
		log.Printf("[speech] TTS attempt %d failed: %v — retrying...", attempt, err)
		select {
		case <-ctx.Done():
			return types.Artifact{Status: types.ArtifactMissing}
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}

	log.Printf("[speech] TTS failed after %d attempts: %v", g.cfg.MaxAttempts, err)
	return types.Artifact{Status: types.ArtifactMissing}
}

// Silence writes a silent clip of the given duration, used as the audio
// substitute when narration could not be generated.
func (g *Generator) Silence(ctx context.Context, durationSec float64) (string, error) {
	outFile := g.ws.UniquePath(files.AudioDir, "silent", ".wav")
	err := media.Run(ctx,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", media.FormatSeconds(durationSec),
		"-acodec", "pcm_s16le",
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("silent clip: %w", err)
	}
	return outFile, nil
}

// resolveEngine picks the TTS command: TTS_COMMAND env first, then
// edge-tts if installed.
func resolveEngine() string {
	if cmd := strings.TrimSpace(os.Getenv("TTS_COMMAND")); cmd != "" {
		return cmd
	}
	if _, err := exec.LookPath("edge-tts"); err == nil {
		return "edge-tts"
	}
	return ""
}

// buildCommand maps an engine to its invocation shape.
func buildCommand(engine, voice, text, outFile string) (string, []string) {
	switch {
	case engine == "edge-tts":
		return "edge-tts", []string{
			"--voice", voice,
			"--text", text,
			"--write-media", outFile,
		}
	case strings.HasSuffix(engine, ".py"):
		return "python3", []string{engine, "--text", text, "--output", outFile}
	default:
		return engine, []string{"--text", text, "--output", outFile}
	}
}
