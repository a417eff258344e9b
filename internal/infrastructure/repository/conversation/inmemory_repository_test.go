package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &chat.Record{
		ID:       "s1",
		Mode:     transcript.ModeAgent,
		Messages: transcript.Transcript{{ID: "u1", Role: transcript.RoleUser, Content: "hi"}},
	}
	require.NoError(t, repo.Save(ctx, rec))

	rec.Messages[0].Content = "mutated after save"

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Messages[0].Content)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "s1"), chat.ErrSessionNotFound)
}
