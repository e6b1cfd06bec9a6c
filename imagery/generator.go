// Package imagery generates still character images from (prompt, seed)
// via an HTTP image-synthesis service. The seed is forwarded to the
// service's deterministic generator so identical inputs always yield
// identical images — the basis of character consistency across segments.
package imagery

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/media"
	"vidgen-pipeline/types"
)

type Generator struct {
	cfg        config.ImageryConfig
	videoCfg   config.VideoConfig
	ws         *files.Workspace
	httpClient *http.Client
}

func New(cfg config.ImageryConfig, videoCfg config.VideoConfig, ws *files.Workspace) *Generator {
	return &Generator{
		cfg:        cfg,
		videoCfg:   videoCfg,
		ws:         ws,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate produces a still image for the prompt. The result is Real when
// the image service delivered, Fallback when a locally synthesized
// placeholder had to stand in, and Missing only when even the placeholder
// could not be written.
func (g *Generator) Generate(ctx context.Context, prompt string, seed uint32) types.Artifact {
	label := labelFor(prompt)

	if strings.TrimSpace(prompt) == "" {
		log.Println("[imagery] empty prompt — using placeholder image")
		return g.fallback(ctx, label)
	}

	imageURL := g.requestURL(prompt, seed)
	outFile := g.ws.UniquePath(files.ImagesDir, "character", ".png")

	log.Printf("[imagery] Generating image (seed %d): %q", seed, truncate(prompt, 60))

	var err error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err = g.download(ctx, imageURL, outFile); err == nil {
			return types.Artifact{Path: outFile, Status: types.ArtifactReal}
		}
		log.Printf("[imagery] attempt %d failed: %v", attempt, err)
		select {
		case <-ctx.Done():
			return g.fallback(ctx, label)
		case <-time.After(time.Duration(attempt) * 3 * time.Second):
		}
	}

	log.Printf("[imagery] image service failed after %d attempts — using placeholder", g.cfg.MaxAttempts)
	return g.fallback(ctx, label)
}

// requestURL builds the image service URL. Identical (prompt, seed) pairs
// produce identical URLs, which the service maps to identical images.
func (g *Generator) requestURL(prompt string, seed uint32) string {
	return fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		strings.TrimRight(g.cfg.Endpoint, "/"),
		url.PathEscape(prompt),
		g.cfg.Width, g.cfg.Height,
		g.cfg.Model,
		seed,
	)
}

func (g *Generator) download(ctx context.Context, imageURL, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VidGenPipeline/1.0)")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from image service", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	// A tiny body is an error page, not an image
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}

	return os.WriteFile(outFile, data, 0644)
}

// fallback synthesizes a labelled solid-background frame so the segment
// builder never has to composite a blank visual.
func (g *Generator) fallback(ctx context.Context, label string) types.Artifact {
	outFile := g.ws.UniquePath(files.ImagesDir, "fallback", ".png")
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=black:fontsize=36:x=(w-tw)/2:y=(h-th)/2",
		media.EscapeDrawText(label),
	)
	err := media.Run(ctx,
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=lightblue:s=%dx%d:d=1", g.videoCfg.Width, g.videoCfg.Height),
		"-vf", filter,
		"-frames:v", "1",
		outFile,
	)
	if err != nil {
		log.Printf("[imagery] placeholder synthesis failed: %v", err)
		return types.Artifact{Status: types.ArtifactMissing}
	}
	return types.Artifact{Path: outFile, Status: types.ArtifactFallback}
}

func labelFor(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Character"
	}
	if idx := strings.Index(prompt, ":"); idx > 0 {
		return strings.TrimSpace(prompt[:idx])
	}
	return truncate(prompt, 30)
}

// truncate shortens to n runes, not bytes, so multi-byte prompts are
// never cut mid-character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
