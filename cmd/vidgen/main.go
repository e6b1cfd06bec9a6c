package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"vidgen-pipeline/assemble"
	"vidgen-pipeline/bgaudio"
	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/imagery"
	"vidgen-pipeline/pipeline"
	"vidgen-pipeline/script"
	"vidgen-pipeline/segment"
	"vidgen-pipeline/speech"
	"vidgen-pipeline/types"
	"vidgen-pipeline/upload"
)

func main() {
	// Load .env (local dev only — CI uses real env vars)
	_ = godotenv.Load()

	var (
		scriptPath = flag.String("script", "", "path to the scene script file (reads stdin if empty)")
		configPath = flag.String("config", "config.yaml", "path to config file")
		duration   = flag.Int("duration", 0, "preferred segment duration in seconds (0 = config default)")
		outPath    = flag.String("out", "", "final video path (default <output>/<run-id>/final_video.mp4)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}

	scriptText, err := readScript(*scriptPath)
	if err != nil {
		log.Fatalf("Failed to read script: %v", err)
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	ws, err := files.NewWorkspace(runDir)
	if err != nil {
		log.Fatalf("Failed to create run dir: %v", err)
	}
	defer ws.Cleanup()

	log.Printf("🎬 Video pipeline starting — Run ID: %s", runID)
	log.Printf("📁 Output dir: %s", runDir)

	orch := pipeline.New(cfg, ws, pipeline.Deps{
		Expander:   script.NewExpander(cfg.Expansion),
		Builder:    segment.NewBuilder(cfg.Video, cfg.Imagery, ws, speech.New(cfg.Speech, ws), imagery.New(cfg.Imagery, cfg.Video, ws)),
		Background: bgaudio.New(ws),
		Assembler:  assemble.New(cfg.Assembly, ws),
		Publisher:  optionalPublisher(cfg),
	})

	state := orch.Run(context.Background(), pipeline.Request{
		Script:          scriptText,
		APIKey:          apiKey,
		SegmentDuration: *duration,
		OutputPath:      *outPath,
	})

	if state.Stage == types.StageFailed {
		log.Printf("❌ Pipeline failed at %s: %s", state.FailedStage, state.Error)
		if state.Suggestion != "" {
			log.Printf("💡 %s", state.Suggestion)
		}
		os.Exit(1)
	}
	log.Printf("✅ Pipeline complete! Video: %s", state.FinalVideo)
	if state.PublishURL != "" {
		log.Printf("📺 Published: %s", state.PublishURL)
	}
}

func optionalPublisher(cfg *config.Config) pipeline.Publisher {
	p := upload.New(cfg.Upload)
	if !p.Enabled() {
		return nil
	}
	return p
}

func readScript(path string) (string, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
