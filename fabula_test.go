package fabula_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fabula "github.com/fabulaverse/fabula"
	"github.com/fabulaverse/fabula/pkg/adapters/memory"
	"github.com/fabulaverse/fabula/pkg/domain"
)

func storyLibrary(t *testing.T) *memory.Library {
	t.Helper()
	lib, err := memory.NewLibrary(domain.Graph{
		Subject: "history",
		Nodes: map[string]domain.StoryNode{
			"start": {
				ID: "start", Title: "The Gate", Text: "Hello, {name}!", ImagePrompt: "prompt-start",
				Payload: domain.ChoiceData{Options: []domain.Choice{
					{Text: "Onward", NextNodeID: "end"},
				}},
			},
			"end": {ID: "end", Title: "The End", Text: "Done.", ImagePrompt: "prompt-end", Payload: domain.EndData{}},
		},
	})
	require.NoError(t, err)
	return lib
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := fabula.New()
	assert.Error(t, err, "a library is required")

	_, err = fabula.New(fabula.WithLibrary(storyLibrary(t)))
	assert.Error(t, err, "a generator is required")

	_, err = fabula.New(
		fabula.WithLibrary(storyLibrary(t)),
		fabula.WithGenerator(&memory.Generator{Fallback: "img"}),
	)
	assert.NoError(t, err, "cache and logger have defaults")
}

func TestEngine_FullRun(t *testing.T) {
	gen := &memory.Generator{Fallback: "img", Avatar: "styled-avatar"}
	engine, err := fabula.New(
		fabula.WithLibrary(storyLibrary(t)),
		fabula.WithGenerator(gen),
	)
	require.NoError(t, err)
	ctx := context.Background()

	engine.RegisterPlayer("Bia")
	assert.Equal(t, []string{"history"}, engine.Subjects())

	avatar, err := engine.CaptureAvatar(ctx, "photo-data", "storybook explorer")
	require.NoError(t, err)
	assert.Equal(t, "styled-avatar", avatar)

	assert.Equal(t, "img", engine.WelcomeImage(ctx))

	rn, err := engine.SelectSubject(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bia!", rn.Text)

	out, next, err := engine.Submit(ctx, domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)
	assert.True(t, out.Correct)
	require.NotNil(t, next)
	assert.Equal(t, "end", next.ID)
	assert.Equal(t, 10, engine.Score())
	assert.Equal(t, domain.PhaseTerminal, engine.Snapshot().Phase)

	// Back to the subject hub keeps the player identity.
	engine.BackToSubjectSelection()
	snap := engine.Snapshot()
	assert.Equal(t, domain.PhaseIdle, snap.Phase)
	assert.Equal(t, "Bia", snap.PlayerName)
	assert.Equal(t, "styled-avatar", snap.Avatar)

	// The welcome restart wipes identity too.
	engine.RestartToWelcome()
	snap = engine.Snapshot()
	assert.Empty(t, snap.PlayerName)
	assert.Empty(t, snap.Avatar)
	assert.Zero(t, snap.Score)
}

func TestEngine_AvatarFailureKeepsSession(t *testing.T) {
	gen := &memory.Generator{Fallback: "img", AvatarErr: domain.ErrRateLimited}
	engine, err := fabula.New(
		fabula.WithLibrary(storyLibrary(t)),
		fabula.WithGenerator(gen),
	)
	require.NoError(t, err)

	engine.RegisterPlayer("Bia")
	_, err = engine.CaptureAvatar(context.Background(), "photo-data", "style")
	require.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.Empty(t, engine.Snapshot().Avatar)
	assert.Equal(t, "Bia", engine.Snapshot().PlayerName)
}

func TestEngine_ClearCache(t *testing.T) {
	cache := memory.NewCache()
	gen := &memory.Generator{Fallback: "img"}
	engine, err := fabula.New(
		fabula.WithLibrary(storyLibrary(t)),
		fabula.WithGenerator(gen),
		fabula.WithCache(cache),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.SelectSubject(ctx, "history")
	require.NoError(t, err)
	// Wait for the background preload so no writer races the clear.
	require.Eventually(t, func() bool { return cache.Len() == 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, engine.ClearCache(ctx))
	assert.Zero(t, cache.Len())
}
