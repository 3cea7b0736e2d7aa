package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeEscapesReservedChars(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("hello"))
	assert.Equal(t, "a\\.b\\-c", Sanitize("a.b-c"))
	assert.Equal(t, "\\(1\\+2\\)\\=3", Sanitize("(1+2)=3"))
	assert.Equal(t, "\\\\path\\_name", Sanitize("\\path_name"))
}

func TestSplitMessageShortText(t *testing.T) {
	parts := splitMessage("short", 100)
	assert.Equal(t, []string{"short"}, parts)
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("line one\n", 10)
	parts := splitMessage(text, 30)
	assert.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 30)
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("x", 95)
	parts := splitMessage(text, 30)
	assert.Len(t, parts, 4)
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "—", formatList("", nil))
	assert.Equal(t, "@one\n@two", formatList("@", []string{"one", "two"}))
	assert.Equal(t, "a\\.example\\.com", formatList("", []string{"a.example.com"}))
}
