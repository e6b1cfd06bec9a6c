package imagery

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/types"
)

func testGenerator(t *testing.T, endpoint string) *Generator {
	t.Helper()
	ws, err := files.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := New(config.ImageryConfig{
		Endpoint:    endpoint,
		Model:       "flux",
		Width:       640,
		Height:      360,
		MaxAttempts: 1,
		DefaultSeed: 42,
	}, config.VideoConfig{Width: 640, Height: 360}, ws)
	g.httpClient = &http.Client{Timeout: 5 * time.Second}
	return g
}

func TestRequestURLDeterministic(t *testing.T) {
	g := testGenerator(t, "https://img.example/")

	a := g.requestURL("Elena: a scientist", 1234)
	b := g.requestURL("Elena: a scientist", 1234)
	if a != b {
		t.Fatalf("same inputs gave different URLs:\n%s\n%s", a, b)
	}
	if !strings.Contains(a, "seed=1234") {
		t.Fatalf("seed missing from URL: %s", a)
	}
	if !strings.Contains(a, "width=640&height=360") {
		t.Fatalf("dimensions missing from URL: %s", a)
	}
	if strings.Contains(a, "img.example//") {
		t.Fatalf("trailing endpoint slash not trimmed: %s", a)
	}
	if g.requestURL("Elena: a scientist", 5678) == a {
		t.Fatal("different seeds should give different URLs")
	}
}

func TestGenerateDownloadsImage(t *testing.T) {
	payload := bytes.Repeat([]byte{0x89}, 512)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(payload)
	}))
	defer srv.Close()

	g := testGenerator(t, srv.URL)
	a := g.Generate(context.Background(), "Elena: a scientist", 99)

	if a.Status != types.ArtifactReal {
		t.Fatalf("status = %s, want real", a.Status)
	}
	if !strings.HasPrefix(gotPath, "/prompt/") {
		t.Fatalf("request path = %q", gotPath)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("downloaded image does not match served payload")
	}
}

func TestGenerateRejectsTinyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("err"))
	}))
	defer srv.Close()

	g := testGenerator(t, srv.URL)
	if err := g.download(context.Background(), srv.URL+"/prompt/x", g.ws.UniquePath(files.ImagesDir, "t", ".png")); err == nil {
		t.Fatal("tiny body should be rejected")
	}
}

func TestGenerateRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := testGenerator(t, srv.URL)
	err := g.download(context.Background(), srv.URL+"/prompt/x", g.ws.UniquePath(files.ImagesDir, "t", ".png"))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected HTTP 429 error, got %v", err)
	}
}

func TestLabelFor(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "Character"},
		{"Elena: a scientist in a white coat", "Elena"},
		{"short prompt", "short prompt"},
		{"a very long description without any colon separator at all", "a very long description withou..."},
	}
	for _, tc := range cases {
		if got := labelFor(tc.in); got != tc.want {
			t.Errorf("labelFor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	in := strings.Repeat("é", 40)
	got := truncate(in, 30)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated mid-rune: %q", got)
	}
	if got != strings.Repeat("é", 30)+"..." {
		t.Fatalf("truncate = %q", got)
	}

	if got := truncate("short", 30); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
}
