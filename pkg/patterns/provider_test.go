package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, err := Parse([]byte(`{"patterns": ["ERROR", "fail(ed)?"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"ERROR", "fail(ed)?"}, doc.Patterns)
	})

	t.Run("extra fields are ignored", func(t *testing.T) {
		doc, err := Parse([]byte(`{"patterns": ["x"], "comment": "ops"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, doc.Patterns)
	})

	t.Run("missing patterns key", func(t *testing.T) {
		_, err := Parse([]byte(`{"rules": ["x"]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "patterns")
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := Parse([]byte(`{"patterns": []}`))
		assert.Error(t, err)
	})

	t.Run("non-string entries", func(t *testing.T) {
		_, err := Parse([]byte(`{"patterns": ["ok", 42]}`))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Parse([]byte(`patterns: [x]`))
		assert.Error(t, err)
	})
}

func TestFileProvider(t *testing.T) {
	t.Run("reads patterns in order", func(t *testing.T) {
		path := writeFile(t, `{"patterns": ["b", "a", "c"]}`)

		p := NewFileProvider(path)
		assert.Equal(t, path, p.Path())

		got, err := p.Patterns()
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, got)
	})

	t.Run("missing file", func(t *testing.T) {
		p := NewFileProvider(filepath.Join(t.TempDir(), "nope.json"))
		_, err := p.Patterns()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read pattern file")
	})

	t.Run("invalid document names the file", func(t *testing.T) {
		path := writeFile(t, `{"patterns": "ERROR"}`)
		_, err := NewFileProvider(path).Patterns()
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("default path", func(t *testing.T) {
		assert.Equal(t, DefaultPath, NewFileProvider("").Path())
	})
}

func TestStaticProvider(t *testing.T) {
	src := StaticProvider{"x", "y"}
	got, err := src.Patterns()
	require.NoError(t, err)
	got[0] = "changed"
	assert.Equal(t, "x", src[0])
}
