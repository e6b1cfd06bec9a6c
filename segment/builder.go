// Package segment builds one fixed-duration video clip per script
// segment: the character's still image as the visual track, narration (or
// silence) as the audio track.
package segment

import (
	"context"
	"fmt"
	"log"

	"vidgen-pipeline/config"
	"vidgen-pipeline/facecache"
	"vidgen-pipeline/files"
	"vidgen-pipeline/media"
	"vidgen-pipeline/types"
)

// SpeechGenerator produces narration audio; failure is reported through
// the artifact status, never an error.
type SpeechGenerator interface {
	Generate(ctx context.Context, text string) types.Artifact
	Silence(ctx context.Context, durationSec float64) (string, error)
}

// ImageGenerator produces a still image for (prompt, seed),
// deterministically for identical inputs.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, seed uint32) types.Artifact
}

type Builder struct {
	videoCfg   config.VideoConfig
	imageryCfg config.ImageryConfig
	ws         *files.Workspace
	speech     SpeechGenerator
	imagery    ImageGenerator
}

func NewBuilder(videoCfg config.VideoConfig, imageryCfg config.ImageryConfig, ws *files.Workspace, speech SpeechGenerator, imagery ImageGenerator) *Builder {
	return &Builder{
		videoCfg:   videoCfg,
		imageryCfg: imageryCfg,
		ws:         ws,
		speech:     speech,
		imagery:    imagery,
	}
}

// Build produces the segment's clip plus the narration and image artifacts
// that went into it. Generation problems degrade to fallbacks; only a
// muxing failure — an environment problem, not a content problem — is
// returned as an error.
func (b *Builder) Build(ctx context.Context, seg types.ScriptSegment, faces *facecache.Cache) (types.SegmentArtifacts, error) {
	var out types.SegmentArtifacts

	duration := ClipDuration(seg, b.videoCfg.DefaultDurationSec)

	out.Image = b.resolveImage(ctx, seg, faces)
	if !out.Image.Usable() {
		return out, fmt.Errorf("segment %d: no image available, not even a placeholder", seg.Index)
	}

	out.Narration = b.resolveNarration(ctx, seg, duration)
	if !out.Narration.Usable() {
		return out, fmt.Errorf("segment %d: could not produce narration or silence", seg.Index)
	}

	clipPath := b.ws.UniquePath(files.VideosDir, "segment", ".mp4")
	if err := b.mux(ctx, out.Image.Path, out.Narration.Path, duration, clipPath); err != nil {
		return out, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	out.Clip = types.Artifact{Path: clipPath, Status: types.ArtifactReal}
	log.Printf("[segment] ✅ Segment %d clip ready (%.1fs): %s", seg.Index, duration, clipPath)
	return out, nil
}

// ClipDuration is end - start, or the default when upstream timing is
// non-positive (equal timestamps from rounding slip through validation of
// raw input that was later normalized).
func ClipDuration(seg types.ScriptSegment, defaultDuration float64) float64 {
	if d := seg.Duration(); d > 0 {
		return d
	}
	log.Printf("[segment] segment %d has non-positive duration, using default %.1fs", seg.Index, defaultDuration)
	return defaultDuration
}

// resolveImage returns the character image for the segment, reusing the
// run's face cache so each character is generated at most once.
func (b *Builder) resolveImage(ctx context.Context, seg types.ScriptSegment, faces *facecache.Cache) types.Artifact {
	face := seg.CharacterFace
	if face == nil {
		// Faceless segment: placeholder frame, nothing cached
		return b.imagery.Generate(ctx, "", b.imageryCfg.DefaultSeed)
	}

	img, cached := faces.GetOrGenerate(face.Name, face.Seed, func() types.Artifact {
		return b.imagery.Generate(ctx, face.Prompt, face.Seed)
	})
	if cached {
		log.Printf("[segment] segment %d reuses cached image for %q", seg.Index, face.Name)
	}
	return img
}

// resolveNarration returns real speech or, when the speech engine failed,
// a silent clip matching the segment's duration.
func (b *Builder) resolveNarration(ctx context.Context, seg types.ScriptSegment, duration float64) types.Artifact {
	if a := b.speech.Generate(ctx, seg.Narration); a.Usable() {
		return a
	}

	log.Printf("[segment] segment %d has no narration audio — substituting silence", seg.Index)
	silent, err := b.speech.Silence(ctx, duration)
	if err != nil {
		log.Printf("[segment] silence substitution failed: %v", err)
		return types.Artifact{Status: types.ArtifactMissing}
	}
	return types.Artifact{Path: silent, Status: types.ArtifactFallback}
}

// mux composites the still image and audio track into one clip. All clips
// share codec, dimensions and frame rate so the assembler can concatenate
// them without re-encoding.
func (b *Builder) mux(ctx context.Context, imagePath, audioPath string, duration float64, outFile string) error {
	scalePad := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		b.videoCfg.Width, b.videoCfg.Height, b.videoCfg.Width, b.videoCfg.Height,
	)
	return media.Run(ctx,
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", scalePad,
		"-r", fmt.Sprintf("%d", b.videoCfg.FPS),
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-t", media.FormatSeconds(duration),
		outFile,
	)
}
