package files

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	key, err := s.Save(ctx, "Consent Form.PDF", strings.NewReader("content"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "2024/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content", string(data))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "deleting twice")
	_, err = s.Open(ctx, key)
	assert.Error(t, err)
}

func TestStore_invalidKeys(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, key := range []string{"", "../etc/passwd", "/abs", "a/../../b", "a//b"} {
		t.Run(key, func(t *testing.T) {
			_, err := s.Open(context.Background(), key)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestStore_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(t.TempDir()).Save(ctx, "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
