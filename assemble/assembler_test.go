package assemble

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
)

func TestPlanAudio(t *testing.T) {
	cases := []struct {
		name        string
		narrations  []string
		backgrounds []string
		want        AudioPlan
	}{
		{"nothing", nil, nil, PlanNone},
		{"backgrounds only", nil, []string{"bg.wav"}, PlanNone},
		{"narration only", []string{"n.wav"}, nil, PlanNarration},
		{"matched pairs", []string{"n1.wav", "n2.wav"}, []string{"b1.wav", "b2.wav"}, PlanMix},
		{"count mismatch", []string{"n1.wav", "n2.wav"}, []string{"b1.wav"}, PlanNarration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PlanAudio(tc.narrations, tc.backgrounds); got != tc.want {
				t.Fatalf("PlanAudio = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAssembleNoClips(t *testing.T) {
	ws, err := files.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := New(config.AssemblyConfig{FinalVideoName: "final.mp4"}, ws)

	_, err = a.Assemble(context.Background(), nil, nil, nil, nil, "")
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
}

func TestOverlayFilter(t *testing.T) {
	a := New(config.AssemblyConfig{
		ThumbnailWidth:   150,
		ThumbnailSpacing: 160,
		ThumbnailX:       50,
		ThumbnailY:       40,
	}, nil)

	one := a.overlayFilter(1)
	if one != "[1:v]scale=150:-1[char0];[0:v][char0]overlay=x=50:y=40" {
		t.Fatalf("single overlay filter = %q", one)
	}

	two := a.overlayFilter(2)
	if !strings.Contains(two, "[2:v]scale=150:-1[char1]") {
		t.Fatalf("second input not scaled: %q", two)
	}
	if !strings.Contains(two, "overlay=x=50:y=40[tmp0];") {
		t.Fatalf("first overlay should feed a temp label: %q", two)
	}
	if !strings.Contains(two, "[tmp0][char1]overlay=x=210:y=40") {
		t.Fatalf("second thumbnail should sit one spacing further right: %q", two)
	}
	if strings.HasSuffix(two, ";") {
		t.Fatalf("filter must not end with a separator: %q", two)
	}
}
