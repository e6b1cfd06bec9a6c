// Package assemble is the deterministic final stage: concatenate segment
// clips, assemble the audio tracks, mux them together, and optionally
// overlay character thumbnails. It never reorders anything — segment order
// in equals segment order out.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/media"
)

// ErrNoSegments is returned when there is nothing to assemble. Callers
// treat it as a terminal, reportable condition.
var ErrNoSegments = errors.New("no video segments to assemble")

// AudioPlan says how the final audio track is produced.
type AudioPlan int

const (
	// PlanNone produces no audio track; the concatenated video is final.
	PlanNone AudioPlan = iota
	// PlanNarration concatenates the narration tracks directly.
	PlanNarration
	// PlanMix pairwise-mixes narration with background per segment, then
	// concatenates the mixed results.
	PlanMix
)

// PlanAudio picks the audio strategy from what is available. Mixing needs
// one background track per narration track; a count mismatch falls back to
// narration-only rather than misaligning segments.
func PlanAudio(narrations, backgrounds []string) AudioPlan {
	switch {
	case len(narrations) == 0:
		return PlanNone
	case len(backgrounds) == 0:
		return PlanNarration
	case len(backgrounds) != len(narrations):
		log.Printf("[assemble] %d narration vs %d background tracks — skipping background mix",
			len(narrations), len(backgrounds))
		return PlanNarration
	default:
		return PlanMix
	}
}

type Assembler struct {
	cfg config.AssemblyConfig
	ws  *files.Workspace
}

func New(cfg config.AssemblyConfig, ws *files.Workspace) *Assembler {
	return &Assembler{cfg: cfg, ws: ws}
}

// Assemble builds the final video from per-segment artifacts, all lists in
// segment order. Returns the final video path, or an error terminal for
// the run (already-produced per-segment artifacts are left untouched).
func (a *Assembler) Assemble(ctx context.Context, clips, narrations, backgrounds, characterImages []string, outputPath string) (string, error) {
	if len(clips) == 0 {
		return "", ErrNoSegments
	}
	if outputPath == "" {
		outputPath = filepath.Join(a.ws.Root(), a.cfg.FinalVideoName)
	}

	log.Printf("[assemble] Concatenating %d segment clips...", len(clips))
	concatVideo, err := a.concatClips(ctx, clips)
	if err != nil {
		return "", fmt.Errorf("concatenate clips: %w", err)
	}

	audioTrack, err := a.assembleAudio(ctx, narrations, backgrounds)
	if err != nil {
		return "", fmt.Errorf("assemble audio: %w", err)
	}

	if audioTrack != "" {
		log.Println("[assemble] Muxing final audio onto video...")
		if err := media.Run(ctx,
			"-i", concatVideo,
			"-i", audioTrack,
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
			outputPath,
		); err != nil {
			return "", fmt.Errorf("mux final audio: %w", err)
		}
	} else {
		log.Println("[assemble] No audio tracks — final video is silent")
		if err := files.CopyFile(concatVideo, outputPath); err != nil {
			return "", fmt.Errorf("copy silent video: %w", err)
		}
	}

	// Thumbnails are best-effort: a failed overlay keeps the un-overlaid
	// video rather than losing the whole run.
	if len(characterImages) > 0 {
		if err := a.overlayCharacters(ctx, outputPath, characterImages); err != nil {
			log.Printf("[assemble] Warning: character overlay failed: %v — keeping video without overlays", err)
		}
	}

	log.Printf("[assemble] ✅ Final video: %s", outputPath)
	return outputPath, nil
}

// concatClips joins the clips in list order with the concat demuxer,
// copying streams bit-for-bit.
func (a *Assembler) concatClips(ctx context.Context, clips []string) (string, error) {
	manifest := a.ws.TempPath("segments.txt")
	if err := media.WriteConcatList(manifest, clips); err != nil {
		return "", err
	}

	outFile := a.ws.TempPath("concat_video.mp4")
	err := media.Run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		outFile,
	)
	if err != nil {
		return "", err
	}
	return outFile, nil
}

// assembleAudio produces the final audio track, or "" when there is none.
func (a *Assembler) assembleAudio(ctx context.Context, narrations, backgrounds []string) (string, error) {
	switch PlanAudio(narrations, backgrounds) {
	case PlanNone:
		return "", nil
	case PlanNarration:
		return a.concatAudio(ctx, narrations)
	default:
		mixed := make([]string, 0, len(narrations))
		for i := range narrations {
			m, err := a.mixPair(ctx, narrations[i], backgrounds[i], i)
			if err != nil {
				return "", err
			}
			mixed = append(mixed, m)
		}
		return a.concatAudio(ctx, mixed)
	}
}

// mixPair mixes one segment's narration with its background track; the
// narration's duration governs the result.
func (a *Assembler) mixPair(ctx context.Context, narration, background string, idx int) (string, error) {
	outFile := a.ws.TempPath(fmt.Sprintf("mixed_%03d.wav", idx))
	err := media.Run(ctx,
		"-i", narration,
		"-i", background,
		"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=first:dropout_transition=2",
		outFile,
	)
	if err != nil {
		return "", err
	}
	return outFile, nil
}

func (a *Assembler) concatAudio(ctx context.Context, tracks []string) (string, error) {
	manifest := a.ws.TempPath("audios.txt")
	if err := media.WriteConcatList(manifest, tracks); err != nil {
		return "", err
	}

	outFile := a.ws.TempPath("final_audio.wav")
	err := media.Run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		outFile,
	)
	if err != nil {
		return "", err
	}
	return outFile, nil
}

// overlayCharacters layers each character image as a small thumbnail, each
// subsequent one further right, for the full duration of the video.
func (a *Assembler) overlayCharacters(ctx context.Context, videoPath string, images []string) error {
	log.Printf("[assemble] Overlaying %d character thumbnail(s)...", len(images))

	outFile := a.ws.TempPath("with_characters.mp4")

	args := []string{"-i", videoPath}
	for _, img := range images {
		args = append(args, "-i", img)
	}
	args = append(args,
		"-filter_complex", a.overlayFilter(len(images)),
		"-c:a", "copy",
		outFile,
	)

	if err := media.Run(ctx, args...); err != nil {
		return err
	}
	return files.CopyFile(outFile, videoPath)
}

// overlayFilter builds the scale+overlay chain for n thumbnail inputs.
func (a *Assembler) overlayFilter(n int) string {
	filter := ""
	for idx := 0; idx < n; idx++ {
		filter += fmt.Sprintf("[%d:v]scale=%d:-1[char%d];", idx+1, a.cfg.ThumbnailWidth, idx)
	}

	prev := "[0:v]"
	for idx := 0; idx < n; idx++ {
		x := a.cfg.ThumbnailX + idx*a.cfg.ThumbnailSpacing
		filter += fmt.Sprintf("%s[char%d]overlay=x=%d:y=%d", prev, idx, x, a.cfg.ThumbnailY)
		if idx < n-1 {
			filter += fmt.Sprintf("[tmp%d];", idx)
			prev = fmt.Sprintf("[tmp%d]", idx)
		}
	}
	return filter
}
