package checkpoint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMissingFileIsZero(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "processed_uids.txt"), discardLogger())
	assert.Equal(t, Watermark(0), s.Load())
}

func TestSaveWritesExactDecimal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_uids.txt")
	s := NewStore(path, discardLogger())

	require.NoError(t, s.Save(102))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "102", string(raw))
	assert.Equal(t, Watermark(102), s.Load())
}

func TestLoadGarbage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Watermark
	}{
		{"empty", "", 0},
		{"text", "not a number", 0},
		{"negative", "-5", 0},
		{"whitespace", "  42 \n", 42},
		{"legacy one uid per line", "17\n9\n\n230\nbogus\n5\n", 230},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "processed_uids.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			assert.Equal(t, tt.want, NewStore(path, discardLogger()).Load())
		})
	}
}
