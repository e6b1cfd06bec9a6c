package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"vidgen-pipeline/config"
)

const defaultExpansionBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Expander calls the script-expansion API: free-text scene script in,
// timestamped JSON segment breakdown out.
type Expander struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewExpander creates an Expander from config.
func NewExpander(cfg config.ExpansionConfig) *Expander {
	return &Expander{
		model:   cfg.Model,
		baseURL: defaultExpansionBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

type expandRequest struct {
	Contents []expandContent `json:"contents"`
}

type expandContent struct {
	Parts []expandPart `json:"parts"`
}

type expandPart struct {
	Text string `json:"text"`
}

type expandResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Expand sends the script to the expansion API and returns the raw
// response text, which should contain the JSON segment array.
func (e *Expander) Expand(ctx context.Context, scriptText, apiKey string, segmentDuration int) (string, error) {
	log.Printf("[expand] Expanding script via %s (target %ds segments)...", e.model, segmentDuration)

	reqBody := expandRequest{
		Contents: []expandContent{{
			Parts: []expandPart{{Text: buildExpansionPrompt(scriptText, segmentDuration)}},
		}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", e.baseURL, e.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("expansion request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed expandResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("parse expansion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("expansion API error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("expansion API returned no candidates")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	log.Printf("[expand] ✅ Received expanded script: %d characters", len(text))
	return text, nil
}

func buildExpansionPrompt(scriptText string, segmentDuration int) string {
	return fmt.Sprintf(
		"Expand the following scene script into a detailed, timestamped breakdown for video generation. "+
			"Divide the script into segments of approximately %d seconds each. "+
			"For each segment, provide:\n"+
			"- Start and end timestamps\n"+
			"- Scene description\n"+
			"- Narration/dialogue\n"+
			"- Background audio/music\n"+
			"- Visual/motion details\n"+
			"- Character face/image description\n\n"+
			"Output as a JSON list, one object per segment, with keys: start, end, scene, narration, audio, visual, image.\n\n"+
			"Script:\n%s",
		segmentDuration, scriptText)
}
