// ABOUTME: Tests for the intent router
// ABOUTME: Covers independent multi-registration matching and context filtering

package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_AllMatchingHandlersFire(t *testing.T) {
	r := New(nil)

	var linkHits, helpHits int
	require.NoError(t, r.Hear(`<(.*?)\|`, AllContexts, func(ctx context.Context, msg *Message) {
		linkHits++
	}))
	require.NoError(t, r.Hear(`help`, AllContexts, func(ctx context.Context, msg *Message) {
		helpHits++
	}))

	// Matches both registrations; both must fire.
	n := r.Dispatch(context.Background(), &Message{
		Text:    "help me with <http://foo.com/x|this>",
		Context: Ambient,
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, linkHits)
	assert.Equal(t, 1, helpHits)
}

func TestDispatch_ContextFiltering(t *testing.T) {
	r := New(nil)

	var hits int
	require.NoError(t, r.Hear(`blacklist`, []MessageContext{DirectMessage}, func(ctx context.Context, msg *Message) {
		hits++
	}))

	assert.Equal(t, 0, r.Dispatch(context.Background(), &Message{Text: "blacklist", Context: Ambient}))
	assert.Equal(t, 1, r.Dispatch(context.Background(), &Message{Text: "blacklist", Context: DirectMessage}))
	assert.Equal(t, 1, hits)
}

func TestDispatch_NoMatch(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Hear(`help`, AllContexts, func(ctx context.Context, msg *Message) {
		t.Fatal("handler should not fire")
	}))

	assert.Equal(t, 0, r.Dispatch(context.Background(), &Message{Text: "nothing relevant", Context: Ambient}))
}

func TestHear_InvalidPattern(t *testing.T) {
	r := New(nil)
	assert.Error(t, r.Hear(`<(.*?\|`, AllContexts, func(ctx context.Context, msg *Message) {}))
}
