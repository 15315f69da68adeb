package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/fabulaverse/fabula/internal/logging"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// Engine is the story progression core. It owns the current node, the
// loaded graph, the resolved content for the active node and the
// preload discipline. All exported methods are safe for concurrent
// use, but the engine enforces at most one active full-node resolution
// at a time: Advance and Submit fail with domain.ErrBusy while a
// resolution or transition is in flight.
type Engine struct {
	library   ports.StoryLibrary
	cache     ports.ImageCache
	generator ports.ImageGenerator
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	rng       *rand.Rand

	mu         sync.Mutex
	phase      domain.Phase
	subject    string
	graph      domain.Graph
	hasGraph   bool
	nodeID     string
	resolved   *domain.ResolvedNode
	score      int
	playerName string
	avatar     string

	// generation tags in-flight resolutions so completions arriving
	// after a newer loadSubject/restart are discarded.
	generation uint64
	warmed     bool
	// images is the session view of the cache: warmed entries, this
	// session's results, and unavailable sentinels (never persisted).
	images map[string]string
	// inflight holds one done channel per key being preloaded, closed
	// when the preload finishes. Resolutions join it instead of issuing
	// a duplicate generation for the same key.
	inflight map[string]chan struct{}

	mathIndex    int
	mathOptions  []int
	lastFeedback int
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithRand sets the randomness source used for distractors, shuffles
// and feedback selection. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// NewEngine creates an idle engine wired to its collaborators.
func NewEngine(library ports.StoryLibrary, cache ports.ImageCache, generator ports.ImageGenerator, opts ...Option) *Engine {
	e := &Engine{
		library:      library,
		cache:        cache,
		generator:    generator,
		logger:       logging.NewNop(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		phase:        domain.PhaseIdle,
		nodeID:       domain.StartNodeID,
		images:       make(map[string]string),
		inflight:     make(map[string]chan struct{}),
		lastFeedback: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subjects lists the available subject ids.
func (e *Engine) Subjects() []string { return e.library.Subjects() }

// SetPlayerName registers the player's display name, substituted for
// the {name} placeholder at resolution time.
func (e *Engine) SetPlayerName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playerName = strings.TrimSpace(name)
}

// PlayerName returns the registered display name.
func (e *Engine) PlayerName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playerName
}

// Snapshot returns a read-only view of the session for presentation.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Snapshot{
		Phase:      e.phase,
		Subject:    e.subject,
		NodeID:     e.nodeID,
		Score:      e.score,
		PlayerName: e.playerName,
		Avatar:     e.avatar,
	}
}

// Resolved returns the current resolved node, or nil before the first
// resolution. Callers must treat it as read-only.
func (e *Engine) Resolved() *domain.ResolvedNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolved
}

// Score returns the accumulated score for the current subject run.
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Phase returns the state machine position.
func (e *Engine) Phase() domain.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// LoadSubject loads a subject graph and resolves its start node. On
// domain.ErrSubjectNotFound the previous session state is untouched.
func (e *Engine) LoadSubject(ctx context.Context, subject string) (*domain.ResolvedNode, error) {
	e.mu.Lock()
	if e.phase == domain.PhaseResolving || e.phase == domain.PhaseTransitioning {
		e.mu.Unlock()
		return nil, domain.ErrBusy
	}
	graph, err := e.library.Graph(subject)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.generation++
	gen := e.generation
	e.subject = subject
	e.graph = graph
	e.hasGraph = true
	e.nodeID = domain.StartNodeID
	e.score = 0
	e.resolved = nil
	e.mu.Unlock()

	e.warm(ctx)
	return e.resolveInto(ctx, gen, domain.StartNodeID)
}

// Advance moves to nextNodeID and resolves it. The target must exist
// in the loaded graph; an unknown id is an authoring bug and fatal for
// the session (only restarts recover).
func (e *Engine) Advance(ctx context.Context, nextNodeID string) (*domain.ResolvedNode, error) {
	e.mu.Lock()
	if !e.hasGraph {
		e.mu.Unlock()
		return nil, domain.ErrNoGraphLoaded
	}
	switch e.phase {
	case domain.PhaseReady:
	case domain.PhaseTerminal:
		e.mu.Unlock()
		return nil, domain.ErrTerminal
	default:
		e.mu.Unlock()
		return nil, domain.ErrBusy
	}
	if _, ok := e.graph.Node(nextNodeID); !ok {
		e.phase = domain.PhaseIdle
		e.resolved = nil
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nextNodeID)
	}
	e.phase = domain.PhaseTransitioning
	gen := e.generation
	e.mu.Unlock()

	return e.resolveInto(ctx, gen, nextNodeID)
}

// Submit applies player input to the current node's interaction. When
// the outcome carries a transition the engine advances and returns the
// newly resolved node; otherwise the player stays on the current node
// and only the outcome (with its retry feedback) is returned.
func (e *Engine) Submit(ctx context.Context, ans domain.Answer) (domain.Outcome, *domain.ResolvedNode, error) {
	none := domain.Outcome{PieceRevealed: -1}

	e.mu.Lock()
	if !e.hasGraph {
		e.mu.Unlock()
		return none, nil, domain.ErrNoGraphLoaded
	}
	switch e.phase {
	case domain.PhaseReady:
	case domain.PhaseTerminal:
		e.mu.Unlock()
		return none, nil, domain.ErrTerminal
	default:
		e.mu.Unlock()
		return none, nil, domain.ErrBusy
	}
	rn := e.resolved

	var outcome domain.Outcome
	var err error
	switch p := rn.Payload.(type) {
	case domain.ChoiceData:
		a, ok := ans.(domain.ChoiceAnswer)
		if !ok {
			err = domain.ErrInputInvalid
			break
		}
		outcome, err = resolveChoice(p.Options, a.Index)
	case domain.VoiceChoiceData:
		// Button fallback keeps Choice semantics when speech input is
		// unsupported.
		switch a := ans.(type) {
		case domain.VoiceAnswer:
			outcome, err = resolveVoice(p, a.Transcript)
		case domain.ChoiceAnswer:
			outcome, err = resolveChoice(p.Options, a.Index)
		default:
			err = domain.ErrInputInvalid
		}
	case domain.FillInTheBlankData:
		a, ok := ans.(domain.BlankAnswer)
		if !ok {
			err = domain.ErrInputInvalid
			break
		}
		outcome, err = resolveBlank(p, a.Text, e.rng, &e.lastFeedback)
	case domain.FindTheItemData:
		a, ok := ans.(domain.TapAnswer)
		if !ok {
			err = domain.ErrInputInvalid
			break
		}
		outcome = resolveTap(rn.ItemLocations, p.NextNodeID, a.X, a.Y)
	case domain.DragAndDropMathData:
		a, ok := ans.(domain.MathAnswer)
		if !ok {
			err = domain.ErrInputInvalid
			break
		}
		outcome, err = resolveMath(p, e.mathIndex, a.Value)
		if err == nil && outcome.Correct {
			outcome.PieceRevealed = e.mathIndex
			if outcome.NextNodeID == "" {
				e.mathIndex++
				e.mathOptions = answerOptions(p.Problems[e.mathIndex].CorrectAnswer, e.rng)
			}
		}
	default:
		err = domain.ErrInputInvalid
	}
	if err != nil {
		e.mu.Unlock()
		return none, nil, err
	}

	var total int
	if outcome.ScoreDelta > 0 {
		e.score += outcome.ScoreDelta
		total = e.score
	}
	subject, nodeID := e.subject, e.nodeID
	var gen uint64
	if outcome.NextNodeID != "" {
		if _, ok := e.graph.Node(outcome.NextNodeID); !ok {
			e.phase = domain.PhaseIdle
			e.resolved = nil
			e.mu.Unlock()
			return outcome, nil, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, outcome.NextNodeID)
		}
		// The transition is claimed before the lock drops so a second
		// Submit for the same node observes Transitioning, not Ready.
		e.phase = domain.PhaseTransitioning
		gen = e.generation
	}
	e.mu.Unlock()

	if outcome.ScoreDelta > 0 {
		e.emitScore(ctx, subject, nodeID, outcome.ScoreDelta, total)
	}
	if outcome.NextNodeID == "" {
		return outcome, nil, nil
	}
	next, err := e.resolveInto(ctx, gen, outcome.NextNodeID)
	if err != nil {
		return outcome, nil, err
	}
	return outcome, next, nil
}

// MathState returns the current math problem, its index and the
// shuffled answer options (one correct value plus two distractors).
func (e *Engine) MathState() (domain.MathProblem, int, []int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolved == nil {
		return domain.MathProblem{}, 0, nil, domain.ErrNoGraphLoaded
	}
	p, ok := e.resolved.Payload.(domain.DragAndDropMathData)
	if !ok {
		return domain.MathProblem{}, 0, nil, fmt.Errorf("%w: current node is not a math interaction", domain.ErrInputInvalid)
	}
	opts := make([]int, len(e.mathOptions))
	copy(opts, e.mathOptions)
	return p.Problems[e.mathIndex], e.mathIndex, opts, nil
}

// RestartSubject re-resolves the start node of the loaded graph and
// resets the score. Allowed from any state; a resolution already in
// flight is superseded and its completion discarded.
func (e *Engine) RestartSubject(ctx context.Context) (*domain.ResolvedNode, error) {
	e.mu.Lock()
	if !e.hasGraph {
		e.mu.Unlock()
		return nil, domain.ErrNoGraphLoaded
	}
	e.generation++
	gen := e.generation
	e.nodeID = domain.StartNodeID
	e.score = 0
	e.resolved = nil
	e.mu.Unlock()

	return e.resolveInto(ctx, gen, domain.StartNodeID)
}

// RestartToWelcome clears all session state, including the player
// identity, and returns the engine to Idle.
func (e *Engine) RestartToWelcome() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.hasGraph = false
	e.graph = domain.Graph{}
	e.subject = ""
	e.nodeID = domain.StartNodeID
	e.resolved = nil
	e.score = 0
	e.playerName = ""
	e.avatar = ""
	e.phase = domain.PhaseIdle
	e.mathIndex = 0
	e.mathOptions = nil
	e.lastFeedback = -1
}

// Unload drops the loaded graph and returns to Idle while keeping the
// player identity, for the back-to-subject-selection action.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.hasGraph = false
	e.graph = domain.Graph{}
	e.subject = ""
	e.nodeID = domain.StartNodeID
	e.resolved = nil
	e.phase = domain.PhaseIdle
	e.mathIndex = 0
	e.mathOptions = nil
}

// StyleAvatar produces a stylized avatar from the player's photo and
// stores it in the session on success. Failures propagate to the
// caller and never touch engine state.
func (e *Engine) StyleAvatar(ctx context.Context, photo, stylePrompt string) (string, error) {
	img, err := e.generator.StyleAvatar(ctx, photo, stylePrompt)
	if err != nil {
		return "", fmt.Errorf("style avatar: %w", err)
	}
	e.mu.Lock()
	e.avatar = img
	e.mu.Unlock()
	return img, nil
}

// WelcomeImage generates the subject-hub illustration. Best effort:
// any failure yields the unavailable sentinel so the caller keeps its
// static placeholder.
func (e *Engine) WelcomeImage(ctx context.Context) string {
	img, err := e.generator.GenerateImage(ctx, welcomePrompt, ports.AspectWide)
	if err != nil {
		e.logger.Warn("welcome image generation failed", "error", err)
		return domain.ImageUnavailable
	}
	return img
}

// ClearCache wipes the persistent image cache and the session view of
// it. New images are generated on the next visit.
func (e *Engine) ClearCache(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	e.mu.Lock()
	e.images = make(map[string]string)
	e.mu.Unlock()
	return nil
}

// warm bulk-loads the persistent cache into the session view, once.
func (e *Engine) warm(ctx context.Context) {
	e.mu.Lock()
	if e.warmed {
		e.mu.Unlock()
		return
	}
	e.warmed = true
	e.mu.Unlock()

	all, err := e.cache.GetAll(ctx)
	if err != nil {
		e.logger.Warn("cache warmup failed", "error", err)
		return
	}
	e.mu.Lock()
	for k, v := range all {
		if _, ok := e.images[k]; !ok {
			e.images[k] = v
		}
	}
	e.mu.Unlock()
}

func (e *Engine) personalize(text string) string {
	name := e.PlayerName()
	if name == "" {
		return text
	}
	return strings.ReplaceAll(text, "{name}", name)
}

func cacheKey(subject, nodeID string) string {
	return subject + "/" + nodeID
}

// welcomePrompt paints the subject-selection hub.
const welcomePrompt = "A futuristic and vibrant digital landscape, representing a 'cyberspace' or " +
	"'metaverse' hub. In the center, there's a child explorer looking at several glowing portals, " +
	"each portal hinting at a different subject like history (ancient scrolls and pyramids), " +
	"geography (floating globes), math (glowing numbers), and science (DNA strands and atoms). " +
	"The style should be a colorful, exciting children's storybook illustration with a high-tech feel."
