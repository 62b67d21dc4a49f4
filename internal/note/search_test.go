package note

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadowPlainModeKeepsTextVerbatim(t *testing.T) {
	assert.Equal(t, "hello #tag1 world", shadow("hello #tag1 World", ModePlain))
}

func TestShadowStripsEmbeddedImages(t *testing.T) {
	content := strings.Join([]string{
		"Before image.",
		"![diagram](data:image/png;base64,iVBORw0KGgoAAAANSUhEUg==)",
		`<img alt="x" src="data:image/jpeg;base64,AAAA">`,
		"raw blob data:image/gif;base64,R0lGODlh trailing",
		"After image.",
	}, "\n")
	got := shadow(content, ModePlain)
	assert.Contains(t, got, "before image.")
	assert.Contains(t, got, "after image.")
	assert.NotContains(t, got, "base64")
	assert.NotContains(t, got, "ivborw0kggo")
}

func TestShadowFlattensMarkdown(t *testing.T) {
	content := strings.Join([]string{
		"# Heading",
		"",
		"Some *emphasized* text with [a link](https://example.com/page).",
		"",
		"```",
		"code body",
		"```",
		"",
		"![shipped photo](data:image/png;base64,QUJD)",
	}, "\n")
	got := shadow(content, ModeMarkdown)
	assert.Contains(t, got, "heading")
	assert.Contains(t, got, "emphasized")
	assert.Contains(t, got, "a link")
	assert.Contains(t, got, "code body")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "shipped photo")
	assert.NotContains(t, got, "qujd")
}

func TestExtractTags(t *testing.T) {
	tags := extractTags("Plan #Trip with #trip and #food-2024, ignore#inline")
	assert.Equal(t, []string{"food-2024", "trip"}, tags)
	assert.Empty(t, extractTags("no tags here"))
}

func TestMergeTagsUnion(t *testing.T) {
	got := mergeTags([]string{"Manual", "both"}, []string{"both", "auto"})
	assert.Equal(t, []string{"auto", "both", "manual"}, got)
	assert.Equal(t, got, mergeTags(got, []string{"auto"}))
}

func TestAutoTitle(t *testing.T) {
	assert.Equal(t, "First line", autoTitle("\n\n  First line  \nsecond"))
	assert.Equal(t, "Heading", autoTitle("## Heading\nbody"))
	assert.Equal(t, "", autoTitle("   \n\n"))
	long := strings.Repeat("x", 100)
	assert.Len(t, autoTitle(long), maxTitleRunes)
}
