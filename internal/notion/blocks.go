// In file: internal/notion/blocks.go
package notion

import (
	"strings"
	"unicode/utf8"
)

// BlocksFromMarkdown converts a small markdown subset into Notion blocks. Supported:
// "# ", "## ", "### " headings, "- "/"* " bullets, "1. " numbered items, "[ ] "/"[x] " to-dos,
// "> " quotes, "---" dividers and fenced code. Anything else becomes a paragraph.
func BlocksFromMarkdown(text string) []Block {
	var blocks []Block
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			if lang == "" {
				lang = "plain text"
			}
			blocks = append(blocks, Block{Type: "code", Code: &TextBlock{RichText: richText(strings.Join(code, "\n")), Language: lang}})
			continue
		}

		blocks = append(blocks, lineBlock(trimmed))
	}
	return blocks
}

func lineBlock(line string) Block {
	switch {
	case line == "---" || line == "***":
		return Block{Type: "divider", Divider: &struct{}{}}
	case strings.HasPrefix(line, "### "):
		return Block{Type: "heading_3", Heading3: textBlock(line[4:])}
	case strings.HasPrefix(line, "## "):
		return Block{Type: "heading_2", Heading2: textBlock(line[3:])}
	case strings.HasPrefix(line, "# "):
		return Block{Type: "heading_1", Heading1: textBlock(line[2:])}
	case strings.HasPrefix(line, "[ ] "), strings.HasPrefix(line, "- [ ] "):
		checked := false
		return Block{Type: "to_do", ToDo: &TextBlock{RichText: richText(afterMarker(line, "] ")), Checked: &checked}}
	case strings.HasPrefix(line, "[x] "), strings.HasPrefix(line, "[X] "),
		strings.HasPrefix(line, "- [x] "), strings.HasPrefix(line, "- [X] "):
		checked := true
		return Block{Type: "to_do", ToDo: &TextBlock{RichText: richText(afterMarker(line, "] ")), Checked: &checked}}
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return Block{Type: "bulleted_list_item", BulletedListItem: textBlock(line[2:])}
	case strings.HasPrefix(line, "> "):
		return Block{Type: "quote", Quote: textBlock(line[2:])}
	}
	if rest, ok := numberedItem(line); ok {
		return Block{Type: "numbered_list_item", NumberedListItem: textBlock(rest)}
	}
	return Block{Type: "paragraph", Paragraph: textBlock(line)}
}

func afterMarker(line, marker string) string {
	idx := strings.Index(line, marker)
	return line[idx+len(marker):]
}

// numberedItem recognises "12. text".
func numberedItem(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != '.' || line[i+1] != ' ' {
		return "", false
	}
	return line[i+2:], true
}

func textBlock(s string) *TextBlock {
	return &TextBlock{RichText: richText(s)}
}

func richText(s string) []RichText {
	chunks := splitText(s, maxRichTextLength)
	out := make([]RichText, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, RichText{Type: "text", Text: &TextObj{Content: c}})
	}
	return out
}

// splitText cuts s into pieces of at most limit runes. It always returns at least one piece.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// BlockText renders one block as a line of plain text, or "" for blocks without text.
func BlockText(b Block) string {
	if b.Type == "divider" {
		return "---"
	}
	tb := b.text()
	if tb == nil {
		return ""
	}
	text := joinPlainText(tb.RichText)
	switch b.Type {
	case "heading_1":
		return "# " + text
	case "heading_2":
		return "## " + text
	case "heading_3":
		return "### " + text
	case "bulleted_list_item", "numbered_list_item":
		return "• " + text
	case "to_do":
		if tb.Checked != nil && *tb.Checked {
			return "☑ " + text
		}
		return "☐ " + text
	case "quote":
		return "> " + text
	case "code":
		return "```\n" + text + "\n```"
	}
	return text
}
