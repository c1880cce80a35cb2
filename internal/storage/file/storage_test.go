package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadDelete(t *testing.T) {
	s := NewStorage(t.TempDir())
	ctx := context.Background()

	path, err := s.Save(ctx, "memes", "meme_20260824_123045_abcd1234_raw.png", strings.NewReader("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, "memes", filepath.Base(filepath.Dir(path)))

	r, err := s.Load(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "png bytes", string(data))

	require.NoError(t, s.Delete(ctx, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSave_CreatesSubdir(t *testing.T) {
	base := t.TempDir()
	s := NewStorage(base)

	_, err := s.Save(context.Background(), "nested", "a.png", strings.NewReader("x"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(base, "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
