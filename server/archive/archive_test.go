package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/wave/server/diary"
	"go.uber.org/zap"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "drafts.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	first, err := a.Save(ctx, diary.Draft{Title: "첫날", Emotion: diary.Happy, Content: "좋았다", Provider: "openai"}, 2)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	clock = clock.Add(time.Hour)
	_, err = a.Save(ctx, diary.Fallback([]string{"피곤하다"}), 1)
	require.NoError(t, err)

	entries, err := a.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, diary.Tired, entries[0].Emotion)
	assert.Equal(t, diary.FallbackProvider, entries[0].Provider)
	assert.Equal(t, "첫날", entries[1].Title)
	assert.Equal(t, 2, entries[1].MessageCount)
	assert.True(t, entries[1].CreatedAt.Equal(first.CreatedAt))
}

func TestListLimit(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	for i := 0; i < 3; i++ {
		_, err := a.Save(ctx, diary.Placeholder, 0)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"explicit", 2, 2},
		{"zero uses default", 0, 3},
		{"over max is capped", 1000, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := a.List(ctx, tt.limit)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestListEmpty(t *testing.T) {
	entries, err := openTemp(t).List(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReopenKeepsDrafts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drafts.db")

	a, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	_, err = a.Save(ctx, diary.Placeholder, 0)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	entries, err := b.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
