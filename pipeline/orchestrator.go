// Package pipeline drives the end-to-end flow: script → expansion →
// parsing → per-segment generation → assembly. Every collaborator comes
// in through an interface so runs are isolated and testable, and no error
// escapes Run — terminal failures come back as a structured state.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vidgen-pipeline/assemble"
	"vidgen-pipeline/config"
	"vidgen-pipeline/facecache"
	"vidgen-pipeline/files"
	"vidgen-pipeline/script"
	"vidgen-pipeline/types"
)

// Expander is the external script-expansion collaborator.
type Expander interface {
	Expand(ctx context.Context, scriptText, apiKey string, segmentDuration int) (string, error)
}

// SegmentBuilder builds one segment's clip and its input artifacts.
type SegmentBuilder interface {
	Build(ctx context.Context, seg types.ScriptSegment, faces *facecache.Cache) (types.SegmentArtifacts, error)
}

// BackgroundGenerator synthesizes one segment's background audio.
type BackgroundGenerator interface {
	Generate(ctx context.Context, description string) types.Artifact
}

// Assembler combines per-segment artifacts into the final video.
type Assembler interface {
	Assemble(ctx context.Context, clips, narrations, backgrounds, characterImages []string, outputPath string) (string, error)
}

// Publisher optionally pushes the finished video somewhere; failures never
// affect the pipeline result.
type Publisher interface {
	Publish(ctx context.Context, videoPath, title string) (string, error)
}

// Progress receives human-readable stage updates.
type Progress func(stage types.Stage, message string, percent int)

// Recovery suggestions mapped per error category.
const (
	suggestCredentials  = "check your expansion API credentials"
	suggestCollaborator = "check your internet connection and API key, then retry"
	suggestInput        = "fix the reported segment and retry"
	suggestTooling      = "verify ffmpeg is installed and on PATH"
	suggestLoad         = "reduce load or retry"
)

// Request carries one run's inputs.
type Request struct {
	Script          string
	APIKey          string
	SegmentDuration int
	OutputPath      string
}

// Deps are the orchestrator's collaborators. Publisher may be nil.
type Deps struct {
	Expander   Expander
	Builder    SegmentBuilder
	Background BackgroundGenerator
	Assembler  Assembler
	Publisher  Publisher
}

type Orchestrator struct {
	cfg      *config.Config
	ws       *files.Workspace
	deps     Deps
	progress Progress
}

func New(cfg *config.Config, ws *files.Workspace, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, ws: ws, deps: deps}
}

// OnProgress sets the progress hook. Must be called before Run.
func (o *Orchestrator) OnProgress(fn Progress) {
	o.progress = fn
}

// Run executes one pipeline run. It always returns a state: Done with the
// final video path, or Failed with the stage, a human-readable message, a
// recovery suggestion, and whatever partial artifacts exist.
func (o *Orchestrator) Run(ctx context.Context, req Request) *types.PipelineState {
	state := &types.PipelineState{
		RunID:     strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Stage:     types.StageIdle,
	}
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		o.saveState(state)
	}()

	fail := func(at types.Stage, msg, suggestion string) *types.PipelineState {
		state.Stage = types.StageFailed
		state.FailedStage = at
		state.Error = msg
		state.Suggestion = suggestion
		log.Printf("[pipeline] ❌ Run %s failed at %s: %s", state.RunID, at, msg)
		o.report(types.StageFailed, msg, 100)
		return state
	}

	if strings.TrimSpace(req.Script) == "" {
		return fail(types.StageIdle, "please provide a script", suggestInput)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return fail(types.StageIdle, "expansion API key is missing", suggestCredentials)
	}

	segDuration := config.ClampSegmentDuration(req.SegmentDuration)

	// ExpandingScript
	state.Stage = types.StageExpandingScript
	o.report(state.Stage, "🔍 Expanding script...", 10)
	expanded, err := o.deps.Expander.Expand(ctx, req.Script, req.APIKey, segDuration)
	if err != nil {
		return fail(types.StageExpandingScript, fmt.Sprintf("script expansion failed: %v", err), suggestCollaborator)
	}
	state.ExpandedScript = expanded

	// ParsingSegments — the expanded text is preserved in the state even
	// when parsing fails, so the caller can inspect what came back.
	state.Stage = types.StageParsingSegments
	o.report(state.Stage, "📝 Parsing segments...", 25)
	segments, registry, err := script.ParseSegments(expanded)
	if err != nil {
		return fail(types.StageParsingSegments, fmt.Sprintf("script parsing failed: %v", err), suggestInput)
	}
	state.Segments = segments
	o.report(state.Stage, fmt.Sprintf("✅ Parsed %d segments", len(segments)), 35)

	// GeneratingArtifacts — independent segments in parallel, bounded by
	// the worker count; individual failures degrade, never abort.
	state.Stage = types.StageGeneratingArtifacts
	o.report(state.Stage, "🎥 Generating segment artifacts...", 45)
	faces := facecache.New()
	results, backgrounds := o.generateAll(ctx, segments, faces)

	state.Clips = make([]types.Artifact, len(segments))
	state.Narrations = make([]types.Artifact, len(segments))
	for i, r := range results {
		state.Clips[i] = r.Clip
		state.Narrations[i] = r.Narration
	}
	state.BackgroundAudios = backgrounds

	characterImages := cachedFaces(registry, faces)
	state.CharacterImages = characterImages

	realClips, totalClips := types.ArtifactCounts(state.Clips)
	o.report(state.Stage, fmt.Sprintf("✅ Generated %d/%d segment clips", realClips, totalClips), 80)

	// Assembling — reassembled into original segment order (the slices
	// are indexed by segment, so order is already restored here).
	state.Stage = types.StageAssembling
	o.report(state.Stage, "🎬 Assembling final video...", 90)
	clips, narrations, bgs := collectTracks(results, backgrounds)
	finalVideo, err := o.deps.Assembler.Assemble(ctx, clips, narrations, bgs, artifactPaths(characterImages), req.OutputPath)
	if err != nil {
		if errors.Is(err, assemble.ErrNoSegments) {
			return fail(types.StageAssembling, "no segment produced a usable clip", suggestLoad)
		}
		return fail(types.StageAssembling, fmt.Sprintf("video assembly failed: %v", err), suggestTooling)
	}
	state.FinalVideo = finalVideo

	state.Stage = types.StageDone
	o.report(state.Stage, fmt.Sprintf("🎉 Video ready: %s", finalVideo), 100)

	if o.deps.Publisher != nil {
		url, err := o.deps.Publisher.Publish(ctx, finalVideo, publishTitle(req.Script))
		if err != nil {
			log.Printf("[pipeline] Warning: publish failed: %v — final video kept locally", err)
		} else {
			state.PublishURL = url
		}
	}

	return state
}

// generateAll fans segment work out over a bounded worker pool and joins
// before returning. Result slices are indexed by segment, so original
// order survives regardless of completion order. The face cache is the
// only state shared between workers.
func (o *Orchestrator) generateAll(ctx context.Context, segments []types.ScriptSegment, faces *facecache.Cache) ([]types.SegmentArtifacts, []types.Artifact) {
	results := make([]types.SegmentArtifacts, len(segments))
	backgrounds := make([]types.Artifact, len(segments))

	var g errgroup.Group
	g.SetLimit(o.cfg.Pipeline.Workers)
	for i := range segments {
		i := i
		seg := segments[i]
		g.Go(func() error {
			res, err := o.deps.Builder.Build(ctx, seg, faces)
			if err != nil {
				log.Printf("[pipeline] segment %d build failed: %v — continuing without it", seg.Index, err)
				res.Clip = types.Artifact{Status: types.ArtifactMissing}
			}
			results[i] = res
			backgrounds[i] = o.deps.Background.Generate(ctx, seg.AudioDescription)
			return nil
		})
	}
	g.Wait()

	return results, backgrounds
}

// cachedFaces collects each character's generated image in first-seen
// order for the assembler's thumbnail overlay. Characters whose image
// never materialized are simply absent.
func cachedFaces(registry *script.CharacterRegistry, faces *facecache.Cache) []types.Artifact {
	var out []types.Artifact
	for _, id := range registry.Identities() {
		if a, ok := faces.Lookup(id.Name, id.Seed); ok {
			out = append(out, a)
		}
	}
	return out
}

func collectTracks(results []types.SegmentArtifacts, backgrounds []types.Artifact) (clips, narrations, bgs []string) {
	for i, r := range results {
		if !r.Clip.Usable() {
			// Dropping the clip drops its audio tracks too, keeping the
			// remaining lists aligned per segment.
			continue
		}
		clips = append(clips, r.Clip.Path)
		if r.Narration.Usable() {
			narrations = append(narrations, r.Narration.Path)
		}
		if backgrounds[i].Usable() {
			bgs = append(bgs, backgrounds[i].Path)
		}
	}
	return clips, narrations, bgs
}

func artifactPaths(artifacts []types.Artifact) []string {
	var out []string
	for _, a := range artifacts {
		if a.Usable() {
			out = append(out, a.Path)
		}
	}
	return out
}

func publishTitle(scriptText string) string {
	line := strings.TrimSpace(scriptText)
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if r := []rune(line); len(r) > 90 {
		line = string(r[:90])
	}
	if line == "" {
		line = "Generated scene video"
	}
	return line
}

// saveState writes the run report next to the run's artifacts. Every run
// gets one, failed runs included, so a crashed or restarted caller can
// still see what happened from the filesystem alone.
func (o *Orchestrator) saveState(state *types.PipelineState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Printf("[pipeline] ⚠️ Failed to marshal state: %v", err)
		return
	}
	path := filepath.Join(o.ws.Root(), "pipeline_state.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[pipeline] ⚠️ Failed to save state: %v", err)
		return
	}
	log.Printf("[pipeline] 💾 State saved: %s", path)
}

func (o *Orchestrator) report(stage types.Stage, message string, percent int) {
	log.Printf("[pipeline] %s", message)
	if o.progress != nil {
		o.progress(stage, message, percent)
	}
}
