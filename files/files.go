// Package files manages the on-disk layout of one pipeline run: the output
// root with its videos/, images/, audio/ and temp/ subdirectories, unique
// artifact filenames, and the registry of temp files removed at run end.
package files

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	VideosDir = "videos"
	ImagesDir = "images"
	AudioDir  = "audio"
	TempDir   = "temp"
)

// Workspace is the filesystem scope of a single run. Methods are safe for
// concurrent use by generation workers.
type Workspace struct {
	root string

	mu   sync.Mutex
	temp []string
}

// NewWorkspace creates the output root and its subdirectories.
func NewWorkspace(root string) (*Workspace, error) {
	for _, dir := range []string{root,
		filepath.Join(root, VideosDir),
		filepath.Join(root, ImagesDir),
		filepath.Join(root, AudioDir),
		filepath.Join(root, TempDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return &Workspace{root: root}, nil
}

// Root returns the output root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Dir returns the path of a named subdirectory under the root.
func (w *Workspace) Dir(sub string) string {
	return filepath.Join(w.root, sub)
}

// UniquePath returns a collision-resistant file path under the given
// subdirectory, e.g. videos/segment_3f2a9c41.mp4.
func (w *Workspace) UniquePath(sub, prefix, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return filepath.Join(w.root, sub, fmt.Sprintf("%s_%s%s", prefix, id, ext))
}

// TempPath returns a fixed-name path in the temp area and registers it for
// cleanup. Used for concat manifests and intermediate mux outputs whose
// names do not need to be unique within one run.
func (w *Workspace) TempPath(name string) string {
	p := filepath.Join(w.root, TempDir, name)
	w.RegisterTemp(p)
	return p
}

// RegisterTemp marks a file for deletion when Cleanup runs.
func (w *Workspace) RegisterTemp(path string) {
	w.mu.Lock()
	w.temp = append(w.temp, path)
	w.mu.Unlock()
}

// Cleanup removes every registered temp file. Safe to call more than once;
// missing files are ignored.
func (w *Workspace) Cleanup() {
	w.mu.Lock()
	paths := w.temp
	w.temp = nil
	w.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("[files] could not remove temp file %s: %v", p, err)
		}
	}
}

// CopyFile copies src to dst, used when a final artifact is the unmodified
// intermediate (e.g. a silent video with no audio track to mux). Streams
// rather than buffering; the files involved are full videos.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
