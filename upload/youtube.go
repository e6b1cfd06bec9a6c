// Package upload optionally publishes the finished video to YouTube via
// the Data API v3. A publish failure never loses the run: the local video
// is the primary artifact, the upload is best-effort.
package upload

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vidgen-pipeline/config"
)

type Publisher struct {
	cfg config.UploadConfig
}

func New(cfg config.UploadConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

// Enabled reports whether publishing is both configured on and has the
// required credentials in the environment.
func (p *Publisher) Enabled() bool {
	return p.cfg.Enabled &&
		os.Getenv("YOUTUBE_CLIENT_ID") != "" &&
		os.Getenv("YOUTUBE_CLIENT_SECRET") != "" &&
		os.Getenv("YOUTUBE_REFRESH_TOKEN") != ""
}

// Publish uploads the video and returns its watch URL.
func (p *Publisher) Publish(ctx context.Context, videoFile, title string) (string, error) {
	log.Println("[upload] Authenticating with YouTube API...")

	client, err := p.oauthClient(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                title,
			Description:          "Generated from a scene script.",
			CategoryId:           p.cfg.CategoryID,
			DefaultLanguage:      p.cfg.DefaultLanguage,
			DefaultAudioLanguage: p.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: p.cfg.Visibility,
		},
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] Uploading %q (%.1f MB)...", title, float64(fi.Size())/1024/1024)
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.NotifySubscribers(p.cfg.NotifySubscribers)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id)
	log.Printf("[upload] ✅ Published: %s", url)
	return url, nil
}

func (p *Publisher) oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}
