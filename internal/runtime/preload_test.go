package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabulaverse/fabula/internal/runtime"
	"github.com/fabulaverse/fabula/pkg/adapters/memory"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

func forkGraph(t *testing.T) *memory.Library {
	t.Helper()
	lib, err := memory.NewLibrary(domain.Graph{
		Subject: "history",
		Nodes: map[string]domain.StoryNode{
			"start": {
				ID:          "start",
				Title:       "The Fork",
				Text:        "Which way?",
				ImagePrompt: "prompt-start",
				Payload: domain.ChoiceData{Options: []domain.Choice{
					{Text: "Left", NextNodeID: "a"},
					{Text: "Right", NextNodeID: "b"},
				}},
			},
			"a":   choiceNode("a", "Left it is.", "end"),
			"b":   choiceNode("b", "Right it is.", "end"),
			"end": endNode("end"),
		},
	})
	require.NoError(t, err)
	return lib
}

func TestPreload_FirstCandidateOnly(t *testing.T) {
	gen := &memory.Generator{Fallback: "img"}
	cache := memory.NewCache()
	events := make(chan *domain.PreloadEvent, 8)
	e := runtime.NewEngine(forkGraph(t), cache, gen, runtime.WithHooks(domain.LifecycleHooks{
		OnPreload: func(ctx context.Context, ev *domain.PreloadEvent) { events <- ev },
	}))
	ctx := context.Background()

	_, err := e.LoadSubject(ctx, "history")
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Equal(t, "a", ev.NodeID, "preload must target the first forward option")
		require.NoError(t, ev.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("preload never ran")
	}

	// The preload lands in the persistent cache shortly after the event.
	require.Eventually(t, func() bool {
		_, ok, err := cache.Get(ctx, "history/a")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	// The second candidate is never warmed.
	for _, call := range gen.Calls() {
		require.NotEqual(t, "prompt-b", call, "only the first candidate may be preloaded")
	}

	// Entering the preloaded node is a cache hit: no second generation.
	_, _, err = e.Submit(ctx, domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)
	count := 0
	for _, call := range gen.Calls() {
		if call == "prompt-a" {
			count++
		}
	}
	require.Equal(t, 1, count, "preloaded node must not be generated again")
}

func TestPreload_SkipsCachedTarget(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewCache()
	require.NoError(t, cache.Put(ctx, "history/a", "warm"))

	gen := &memory.Generator{Fallback: "img"}
	events := make(chan *domain.PreloadEvent, 8)
	e := runtime.NewEngine(forkGraph(t), cache, gen, runtime.WithHooks(domain.LifecycleHooks{
		OnPreload: func(ctx context.Context, ev *domain.PreloadEvent) { events <- ev },
	}))

	_, err := e.LoadSubject(ctx, "history")
	require.NoError(t, err)

	select {
	case ev := <-events:
		t.Fatalf("unexpected preload for cached target: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPreload_FailureIsSilent(t *testing.T) {
	gen := &memory.Generator{
		Images: map[string]string{"prompt-start": "scene"},
	}
	events := make(chan *domain.PreloadEvent, 8)
	e := runtime.NewEngine(forkGraph(t), memory.NewCache(), gen, runtime.WithHooks(domain.LifecycleHooks{
		OnPreload: func(ctx context.Context, ev *domain.PreloadEvent) { events <- ev },
	}))
	ctx := context.Background()

	rn, err := e.LoadSubject(ctx, "history")
	require.NoError(t, err)
	require.Equal(t, "scene", rn.Image)

	select {
	case ev := <-events:
		require.Error(t, ev.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("preload never reported")
	}

	// The failed preload leaves no trace; entering the node retries
	// generation for real.
	require.Equal(t, domain.PhaseReady, e.Phase())
	next, err := e.Advance(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, domain.ImageUnavailable, next.Image)
}

// stallGenerator parks GenerateImage calls for one specific prompt
// until release is closed, recording every prompt it serves.
type stallGenerator struct {
	stall   string
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (g *stallGenerator) GenerateImage(ctx context.Context, prompt string, _ ports.AspectRatio) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	g.mu.Unlock()
	if prompt == g.stall {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return "img-" + prompt, nil
}

func (g *stallGenerator) LocateItems(context.Context, string, []string) ([]ports.ItemBox, error) {
	return nil, domain.ErrContentUnavailable
}

func (g *stallGenerator) StyleAvatar(context.Context, string, string) (string, error) {
	return "", domain.ErrContentUnavailable
}

func (g *stallGenerator) count(prompt string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == prompt {
			n++
		}
	}
	return n
}

func TestAdvance_JoinsInflightPreload(t *testing.T) {
	gen := &stallGenerator{stall: "prompt-a", entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := runtime.NewEngine(choiceGraph(t), memory.NewCache(), gen)
	ctx := context.Background()

	_, err := e.LoadSubject(ctx, "history")
	require.NoError(t, err)

	select {
	case <-gen.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("preload never started")
	}

	// Enter the node whose preload is still talking to the service.
	result := make(chan error, 1)
	var advanced *domain.ResolvedNode
	go func() {
		rn, err := e.Advance(ctx, "a")
		advanced = rn
		result <- err
	}()

	// Let the advance reach the join point before the preload finishes.
	time.Sleep(100 * time.Millisecond)
	close(gen.release)

	require.NoError(t, <-result)
	require.Equal(t, "a", advanced.ID)
	require.Equal(t, "img-prompt-a", advanced.Image)
	require.Equal(t, 1, gen.count("prompt-a"), "advance must join the in-flight preload, not regenerate")
	require.Equal(t, domain.PhaseReady, e.Phase())
}
