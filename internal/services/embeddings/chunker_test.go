package embeddings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk("", 1000, 200))
}

func TestChunk_ShorterThanSize(t *testing.T) {
	chunks := Chunk("short resume", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short resume", chunks[0])
}

func TestChunk_OverlapWindows(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 5)
	chunks := Chunk(text, 10, 4)

	// step = 6: [0:10], [6:16], [12:22], [18:25], [24:25]
	require.Len(t, chunks, 5)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0])
	assert.Equal(t, "aaaabbbbbb", chunks[1])
	assert.Equal(t, "c", chunks[4])

	// Consecutive chunks share the configured overlap
	assert.Equal(t, chunks[0][6:], chunks[1][:4])
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("resume content with skills and experience ", 100)

	first := Chunk(text, 1000, 200)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Chunk(text, 1000, 200))
	}
}

func TestChunk_CoversAllText(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Chunk(text, 1000, 200)

	// step = 800: [0:1000], [800:1800], [1600:2500]
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 900)
}

func TestChunk_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("résumé ", 50)
	chunks := Chunk(text, 20, 5)

	for _, chunk := range chunks {
		// No chunk splits a rune in half
		assert.True(t, strings.ToValidUTF8(chunk, "?") == chunk)
	}
}

func TestChunk_InvalidOverlapIgnored(t *testing.T) {
	text := strings.Repeat("x", 30)
	chunks := Chunk(text, 10, 10)

	// Overlap >= size degrades to no overlap rather than looping forever
	require.Len(t, chunks, 3)
}
