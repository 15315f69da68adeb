package fabula

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/fabulaverse/fabula/internal/logging"
	"github.com/fabulaverse/fabula/internal/runtime"
	"github.com/fabulaverse/fabula/pkg/adapters/memory"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// Engine is the high-level entry point for the fabula library. It
// wraps the internal runtime and provides the session action surface
// consumed by the presentation layer.
type Engine struct {
	rt        *runtime.Engine
	library   ports.StoryLibrary
	cache     ports.ImageCache
	generator ports.ImageGenerator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	rng       *rand.Rand
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLibrary injects the story library. Required.
func WithLibrary(l ports.StoryLibrary) Option {
	return func(e *Engine) { e.library = l }
}

// WithGenerator injects the remote generation service client. Required.
func WithGenerator(g ports.ImageGenerator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithCache injects the persistent image cache. Defaults to an
// in-memory cache scoped to the process.
func WithCache(c ports.ImageCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRand sets the randomness source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// New initializes a fabula Engine. A story library and a generator are
// required; everything else has sensible defaults.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.library == nil {
		return nil, fmt.Errorf("a story library is required (use WithLibrary)")
	}
	if eng.generator == nil {
		return nil, fmt.Errorf("an image generator is required (use WithGenerator)")
	}
	if eng.cache == nil {
		eng.cache = memory.NewCache()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	rtOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithHooks(eng.hooks),
	}
	if eng.rng != nil {
		rtOpts = append(rtOpts, runtime.WithRand(eng.rng))
	}
	eng.rt = runtime.NewEngine(eng.library, eng.cache, eng.generator, rtOpts...)
	return eng, nil
}

// RegisterPlayer sets the player's display name, substituted for the
// {name} placeholder in narrated text.
func (e *Engine) RegisterPlayer(name string) { e.rt.SetPlayerName(name) }

// CaptureAvatar produces a stylized avatar from the player's photo and
// keeps it in the session. Failures are returned to the caller, which
// must tolerate them; they never affect progression state.
func (e *Engine) CaptureAvatar(ctx context.Context, photo, stylePrompt string) (string, error) {
	return e.rt.StyleAvatar(ctx, photo, stylePrompt)
}

// WelcomeImage generates the subject-hub illustration, returning the
// unavailable sentinel on any failure.
func (e *Engine) WelcomeImage(ctx context.Context) string { return e.rt.WelcomeImage(ctx) }

// Subjects lists the available subject ids.
func (e *Engine) Subjects() []string { return e.rt.Subjects() }

// SelectSubject loads the subject's graph, resets the score and
// resolves the start node.
func (e *Engine) SelectSubject(ctx context.Context, subject string) (*domain.ResolvedNode, error) {
	return e.rt.LoadSubject(ctx, subject)
}

// Advance transitions to nextNodeID and resolves it.
func (e *Engine) Advance(ctx context.Context, nextNodeID string) (*domain.ResolvedNode, error) {
	return e.rt.Advance(ctx, nextNodeID)
}

// Submit applies player input to the current interaction. The resolved
// node is non-nil when the outcome transitioned to a new node.
func (e *Engine) Submit(ctx context.Context, ans domain.Answer) (domain.Outcome, *domain.ResolvedNode, error) {
	return e.rt.Submit(ctx, ans)
}

// MathState exposes the current math problem with its shuffled answer
// options for presentation.
func (e *Engine) MathState() (domain.MathProblem, int, []int, error) { return e.rt.MathState() }

// RestartSubject restarts the current subject from its start node with
// score reset to zero.
func (e *Engine) RestartSubject(ctx context.Context) (*domain.ResolvedNode, error) {
	return e.rt.RestartSubject(ctx)
}

// RestartToWelcome clears all session state including player identity.
func (e *Engine) RestartToWelcome() { e.rt.RestartToWelcome() }

// BackToSubjectSelection unloads the current graph but keeps the
// player identity.
func (e *Engine) BackToSubjectSelection() { e.rt.Unload() }

// Snapshot returns the session view for presentation.
func (e *Engine) Snapshot() domain.Snapshot { return e.rt.Snapshot() }

// Resolved returns the current resolved node, nil before the first
// resolution.
func (e *Engine) Resolved() *domain.ResolvedNode { return e.rt.Resolved() }

// Score returns the accumulated score.
func (e *Engine) Score() int { return e.rt.Score() }

// ClearCache wipes the persistent image cache so every scene is drawn
// fresh on the next adventure.
func (e *Engine) ClearCache(ctx context.Context) error { return e.rt.ClearCache(ctx) }
