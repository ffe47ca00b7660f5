package input

import (
	"strings"
	"testing"

	"github.com/jopamo/txed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrecedence(t *testing.T) {
	assert.Equal(t, ModeStdinText, Resolve(true, true, true, true))
	assert.Equal(t, ModeSearchToolJSON, Resolve(true, true, false, true))
	assert.Equal(t, ModeStdinPathsNul, Resolve(true, true, false, false))
	assert.Equal(t, ModeStdinPathsNewline, Resolve(true, false, false, false))
	assert.Equal(t, ModeAuto, Resolve(false, false, false, false))
}

func TestNormalizeAutoUsesArgs(t *testing.T) {
	items, err := Normalize(ModeAuto, []string{"a.txt", "b.txt"}, strings.NewReader(""), false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.InputPath, items[0].Kind)
	assert.Equal(t, "a.txt", items[0].Path)
}

func TestNormalizeAutoFallsBackToStdinWhenPiped(t *testing.T) {
	items, err := Normalize(ModeAuto, nil, strings.NewReader("a.txt\nb.txt\n"), true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b.txt", items[1].Path)
}

func TestNormalizeAutoEmptyWhenNoArgsAndNoPipe(t *testing.T) {
	items, err := Normalize(ModeAuto, nil, strings.NewReader(""), false)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNormalizeStdinPathsNewlineTrimsBlankLines(t *testing.T) {
	items, err := Normalize(ModeStdinPathsNewline, nil, strings.NewReader("a.txt\n\n  \nb.txt\r\n"), false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].Path)
	assert.Equal(t, "b.txt", items[1].Path)
}

func TestNormalizeStdinPathsNul(t *testing.T) {
	stream := "a.txt\x00b.txt\x00"
	items, err := Normalize(ModeStdinPathsNul, nil, strings.NewReader(stream), false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].Path)
	assert.Equal(t, "b.txt", items[1].Path)
}

func TestNormalizeStdinText(t *testing.T) {
	items, err := Normalize(ModeStdinText, nil, strings.NewReader("hello world"), false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.InputStdinText, items[0].Kind)
	assert.Equal(t, "<stdin>", items[0].Path)
	assert.Equal(t, "hello world", string(items[0].StdinText))
}

func TestNormalizeSearchToolJSON(t *testing.T) {
	stream := `{"type":"match","data":{"path":{"text":"a.txt"},"absolute_offset":0,"submatches":[{"start":0,"end":3}]}}` + "\n"
	items, err := Normalize(ModeSearchToolJSON, nil, strings.NewReader(stream), false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.InputSearchMatches, items[0].Kind)
	assert.Equal(t, "a.txt", items[0].Path)
	require.Len(t, items[0].SearchRanges, 1)
	assert.Equal(t, 0, items[0].SearchRanges[0].Start)
	assert.Equal(t, 3, items[0].SearchRanges[0].End)
}
