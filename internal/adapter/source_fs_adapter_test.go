package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "irmut.dev/pkg/irmut/internal/model"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.ir":          "module a\n",
		"b.txt":         "not ir\n",
		"sub/c.ir":      "module c\n",
		"sub/deep/d.ir": "module d\n",
	})

	fs := NewLocalSourceFSAdapter()

	t.Run("recursive pattern finds nested files", func(t *testing.T) {
		files, err := fs.Scan([]m.Path{m.Path(root + "/...")}, nil)
		require.NoError(t, err)
		assert.Len(t, files, 3)
	})

	t.Run("plain directory stays shallow", func(t *testing.T) {
		files, err := fs.Scan([]m.Path{m.Path(root)}, nil)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a.ir", filepath.Base(string(files[0].Path)))
	})

	t.Run("explicit file is taken as-is", func(t *testing.T) {
		files, err := fs.Scan([]m.Path{m.Path(filepath.Join(root, "b.txt"))}, nil)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("exclude filters by regex", func(t *testing.T) {
		files, err := fs.Scan([]m.Path{m.Path(root + "/...")}, []string{`sub/`})
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("bad exclude pattern errors", func(t *testing.T) {
		_, err := fs.Scan([]m.Path{m.Path(root)}, []string{"("})
		assert.Error(t, err)
	})

	t.Run("missing path errors", func(t *testing.T) {
		_, err := fs.Scan([]m.Path{m.Path(filepath.Join(root, "nope"))}, nil)
		assert.Error(t, err)
	})
}

func TestHashFile(t *testing.T) {
	root := writeTree(t, map[string]string{"a.ir": "module a\n", "b.ir": "module b\n"})

	fs := NewLocalSourceFSAdapter()

	ha1, err := fs.HashFile(m.Path(filepath.Join(root, "a.ir")))
	require.NoError(t, err)

	ha2, err := fs.HashFile(m.Path(filepath.Join(root, "a.ir")))
	require.NoError(t, err)

	hb, err := fs.HashFile(m.Path(filepath.Join(root, "b.ir")))
	require.NoError(t, err)

	assert.Equal(t, ha1, ha2, "hash must be stable")
	assert.NotEqual(t, ha1, hb, "different content must hash differently")
}

func TestWriteFileCreatesParents(t *testing.T) {
	root := t.TempDir()
	fs := NewLocalSourceFSAdapter()

	path := m.Path(filepath.Join(root, "deep", "nested", "out.ir"))
	require.NoError(t, fs.WriteFile(path, []byte("module x\n"), 0o644))

	content, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "module x\n", string(content))
}
