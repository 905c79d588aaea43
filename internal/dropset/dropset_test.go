package dropset

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

const (
	a = "1111111111111111111111111111111111111111"
	b = "2222222222222222222222222222222222222222"
)

func TestWriteIsSortedOneIdPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	require.NoError(t, Write(path, git.NewHashSet(plumbing.NewHash(b), plumbing.NewHash(a))))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, a+"\n"+b+"\n", string(content))

	set, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, git.NewHashSet(plumbing.NewHash(a), plumbing.NewHash(b)), set)
}

func TestWriteEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Write(path, git.NewHashSet()))

	set, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestReadSkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("# picked by hand\n\n  "+a+"  \n"+"2222222222222222222222222222222222222222\r\n"), 0o644))

	set, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestReadRejectsMalformedIds(t *testing.T) {
	for _, line := range []string{"abc123", "zz" + a[2:], "0000000000000000000000000000000000000000"} {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o644))

		_, err := Read(path)
		assert.True(t, stderrors.Is(err, errors.ErrValidation), line)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, stderrors.Is(err, errors.ErrFileSystem))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Write(path, git.NewHashSet(plumbing.NewHash(a))))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, Remove(path))
}
