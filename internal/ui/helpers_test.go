package ui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFileMentions(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "chart.png")
	require.NoError(t, os.WriteFile(existing, []byte("png"), 0o600))

	clean, files := ExtractFileMentions("look at @" + existing + " please")
	assert.Equal(t, "look at please", clean)
	assert.Equal(t, []string{existing}, files)

	// Mentions of files that do not exist are stripped but not attached.
	clean, files = ExtractFileMentions("see @/no/such/file here")
	assert.Equal(t, "see here", clean)
	assert.Empty(t, files)
}

func TestGetAtPosition(t *testing.T) {
	prefix, start, found := GetAtPosition("hello @cha", 10)
	require.True(t, found)
	assert.Equal(t, "cha", prefix)
	assert.Equal(t, 6, start)

	_, _, found = GetAtPosition("no mention here", 10)
	assert.False(t, found)

	// A space between @ and the cursor ends the mention.
	_, _, found = GetAtPosition("@done now", 8)
	assert.False(t, found)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncateRunes("héllo", 10))
	assert.Equal(t, "hél…", TruncateRunes("héllo!", 4))
	assert.Equal(t, "", TruncateRunes("anything", 0))
}

func TestWrappedLineCount(t *testing.T) {
	assert.Equal(t, 1, WrappedLineCount("short", 20))
	assert.Equal(t, 2, WrappedLineCount("a\nb", 20))
	assert.Equal(t, 3, WrappedLineCount("0123456789012345678901234", 10))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", RelativeTime(now.Add(-30*time.Second)))
	assert.Equal(t, "5 mins ago", RelativeTime(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hr ago", RelativeTime(now.Add(-70*time.Minute)))
	assert.Equal(t, "2 days ago", RelativeTime(now.Add(-49*time.Hour)))
}
