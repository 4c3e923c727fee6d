package notion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocksFromMarkdown(t *testing.T) {
	md := strings.Join([]string{
		"# Weekly plan",
		"",
		"Some intro text",
		"- milk",
		"* eggs",
		"1. first",
		"[ ] call mum",
		"- [x] pay rent",
		"> remember",
		"---",
		"```go",
		"fmt.Println(1)",
		"```",
	}, "\n")

	blocks := BlocksFromMarkdown(md)
	types := make([]string, 0, len(blocks))
	for _, b := range blocks {
		types = append(types, b.Type)
	}
	assert.Equal(t, []string{
		"heading_1", "paragraph", "bulleted_list_item", "bulleted_list_item", "numbered_list_item",
		"to_do", "to_do", "quote", "divider", "code",
	}, types)

	assert.False(t, *blocks[5].ToDo.Checked)
	assert.Equal(t, "call mum", blocks[5].ToDo.RichText[0].Text.Content)
	assert.True(t, *blocks[6].ToDo.Checked)
	assert.Equal(t, "pay rent", blocks[6].ToDo.RichText[0].Text.Content)
	assert.Equal(t, "go", blocks[9].Code.Language)
	assert.Equal(t, "fmt.Println(1)", blocks[9].Code.RichText[0].Text.Content)
}

func TestBlocksFromMarkdownSplitsLongText(t *testing.T) {
	long := strings.Repeat("é", maxRichTextLength+10)
	blocks := BlocksFromMarkdown(long)
	require.Len(t, blocks, 1)
	rt := blocks[0].Paragraph.RichText
	require.Len(t, rt, 2)
	assert.Equal(t, maxRichTextLength, utf8.RuneCountInString(rt[0].Text.Content))
	assert.Equal(t, 10, utf8.RuneCountInString(rt[1].Text.Content))
}

func TestBlockTextRoundTrip(t *testing.T) {
	for _, line := range []string{"# Title", "## Sub", "> quoted", "---", "plain"} {
		blocks := BlocksFromMarkdown(line)
		require.Len(t, blocks, 1)
		assert.Equal(t, line, BlockText(blocks[0]))
	}
}
