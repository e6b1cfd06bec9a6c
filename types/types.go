package types

// ArtifactStatus says whether a generated artifact is real model output,
// a locally synthesized substitute, or absent entirely.
type ArtifactStatus string

const (
	ArtifactReal     ArtifactStatus = "real"
	ArtifactFallback ArtifactStatus = "fallback"
	ArtifactMissing  ArtifactStatus = "missing"
)

// Artifact is a produced media file, referenced by path only.
type Artifact struct {
	Path   string         `json:"path,omitempty"`
	Status ArtifactStatus `json:"status"`
}

// Usable reports whether the artifact points at a file downstream
// assembly can consume.
func (a Artifact) Usable() bool {
	return a.Status != ArtifactMissing && a.Path != ""
}

// CharacterIdentity is the stable (name, prompt, seed) triple that keeps a
// character's appearance consistent across segments. The seed is derived
// deterministically from the name, so the same character always maps to
// the same image given the same prompt.
type CharacterIdentity struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	Seed   uint32 `json:"seed"`
}

// ScriptSegment is one timed unit of the narrative, produced by parsing
// the expansion API's JSON output. Read-only after parsing.
type ScriptSegment struct {
	Index             int                `json:"index"`
	Start             float64            `json:"start"`
	End               float64            `json:"end"`
	Narration         string             `json:"narration"`
	SceneDescription  string             `json:"scene_description"`
	VisualDescription string             `json:"visual_description"`
	AudioDescription  string             `json:"audio_description"`
	ImageDescription  string             `json:"image_description"`
	CharacterFace     *CharacterIdentity `json:"character_face,omitempty"`
}

// Duration returns end - start in seconds. May be non-positive if upstream
// rounding produced equal timestamps; callers substitute a default then.
func (s ScriptSegment) Duration() float64 {
	return s.End - s.Start
}

// SegmentArtifacts holds everything the builder produced for one segment.
type SegmentArtifacts struct {
	Clip      Artifact `json:"clip"`
	Narration Artifact `json:"narration"`
	Image     Artifact `json:"image"`
}

// Stage identifies where the pipeline currently is (or where it stopped).
type Stage string

const (
	StageIdle                Stage = "idle"
	StageExpandingScript     Stage = "expanding_script"
	StageParsingSegments     Stage = "parsing_segments"
	StageGeneratingArtifacts Stage = "generating_artifacts"
	StageAssembling          Stage = "assembling"
	StageDone                Stage = "done"
	StageFailed              Stage = "failed"
)

// PipelineState tracks the full state of one pipeline run. It is saved as
// JSON next to the run's artifacts so every run can be inspected after the
// fact, including failed ones.
type PipelineState struct {
	RunID       string `json:"run_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`

	Stage       Stage `json:"stage"`
	FailedStage Stage `json:"failed_stage,omitempty"`

	ExpandedScript string          `json:"expanded_script,omitempty"`
	Segments       []ScriptSegment `json:"segments,omitempty"`

	Clips            []Artifact `json:"clips,omitempty"`
	Narrations       []Artifact `json:"narrations,omitempty"`
	BackgroundAudios []Artifact `json:"background_audios,omitempty"`
	CharacterImages  []Artifact `json:"character_images,omitempty"`

	FinalVideo string `json:"final_video,omitempty"`
	PublishURL string `json:"publish_url,omitempty"`

	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ArtifactCounts summarizes how many artifacts in a list are real model
// output, so the final report can state "N of M succeeded".
func ArtifactCounts(artifacts []Artifact) (real, total int) {
	for _, a := range artifacts {
		if a.Status == ArtifactReal {
			real++
		}
	}
	return real, len(artifacts)
}
