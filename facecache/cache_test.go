package facecache

import (
	"sync"
	"sync/atomic"
	"testing"

	"vidgen-pipeline/types"
)

func TestGetOrGenerateCaches(t *testing.T) {
	c := New()
	var calls int32

	gen := func() types.Artifact {
		atomic.AddInt32(&calls, 1)
		return types.Artifact{Path: "elena.png", Status: types.ArtifactReal}
	}

	first, cached := c.GetOrGenerate("Elena", 123, gen)
	if cached {
		t.Fatal("first call should not be cached")
	}
	second, cached := c.GetOrGenerate("Elena", 123, gen)
	if !cached {
		t.Fatal("second call should be cached")
	}
	if first.Path != second.Path {
		t.Fatalf("paths differ: %q vs %q", first.Path, second.Path)
	}
	if calls != 1 {
		t.Fatalf("generate ran %d times, want 1", calls)
	}
	if c.Len() != 1 {
		t.Fatalf("cache has %d entries, want 1", c.Len())
	}
}

func TestGetOrGenerateDistinctKeys(t *testing.T) {
	c := New()
	gen := func() types.Artifact {
		return types.Artifact{Path: "img.png", Status: types.ArtifactReal}
	}

	c.GetOrGenerate("Elena", 1, gen)
	c.GetOrGenerate("Elena", 2, gen)
	c.GetOrGenerate("Marcus", 1, gen)
	if c.Len() != 3 {
		t.Fatalf("cache has %d entries, want 3", c.Len())
	}
}

func TestGetOrGenerateConcurrent(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})

	gen := func() types.Artifact {
		atomic.AddInt32(&calls, 1)
		<-release
		return types.Artifact{Path: "shared.png", Status: types.ArtifactReal}
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]types.Artifact, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrGenerate("Elena", 42, gen)
		}(i)
	}

	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("generate ran %d times under contention, want 1", calls)
	}
	for i, a := range results {
		if a.Path != "shared.png" {
			t.Fatalf("worker %d got %q", i, a.Path)
		}
	}
}

func TestFallbackNotCached(t *testing.T) {
	c := New()
	var calls int32

	fallbackGen := func() types.Artifact {
		atomic.AddInt32(&calls, 1)
		return types.Artifact{Path: "fallback.png", Status: types.ArtifactFallback}
	}

	a, cached := c.GetOrGenerate("Elena", 7, fallbackGen)
	if cached || a.Status != types.ArtifactFallback {
		t.Fatalf("unexpected first result: %+v cached=%v", a, cached)
	}
	if _, ok := c.Lookup("Elena", 7); ok {
		t.Fatal("fallback result must not be cached")
	}

	// A later attempt gets to retry the real generation.
	realGen := func() types.Artifact {
		atomic.AddInt32(&calls, 1)
		return types.Artifact{Path: "real.png", Status: types.ArtifactReal}
	}
	a, cached = c.GetOrGenerate("Elena", 7, realGen)
	if cached || a.Path != "real.png" {
		t.Fatalf("retry did not generate fresh: %+v cached=%v", a, cached)
	}
	if calls != 2 {
		t.Fatalf("generate ran %d times, want 2", calls)
	}
}
