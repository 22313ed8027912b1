package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestTailLogLastLines(t *testing.T) {
	path := writeLines(t, "one\ntwo\nthree\nfour\n")

	text, err := TailLog(path, 2, 4000)
	require.NoError(t, err)
	assert.Equal(t, "three\nfour", text)
}

func TestTailLogFewerLinesThanRequested(t *testing.T) {
	path := writeLines(t, "only\n")

	text, err := TailLog(path, 30, 4000)
	require.NoError(t, err)
	assert.Equal(t, "only", text)
}

func TestTailLogEmptyFile(t *testing.T) {
	path := writeLines(t, "")

	text, err := TailLog(path, 5, 4000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTailLogByteBudget(t *testing.T) {
	long := strings.Repeat("x", 100)
	content := ""
	for i := 0; i < 50; i++ {
		content += long + "\n"
	}
	content += "last line\n"
	path := writeLines(t, content)

	text, err := TailLog(path, 100, 500)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), 500)
	assert.True(t, strings.HasSuffix(text, "last line"))
	// The partial line at the budget cut is dropped, so every kept line is whole
	for _, line := range strings.Split(text, "\n") {
		if line != "last line" {
			assert.Equal(t, long, line)
		}
	}
}

func TestTailLogMissingFile(t *testing.T) {
	_, err := TailLog(filepath.Join(t.TempDir(), "missing.log"), 5, 4000)
	require.Error(t, err)
}
