package note

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var (
	mdDataImageRe  = regexp.MustCompile(`!\[[^\]]*\]\(data:[^)]*\)`)
	htmlDataImgRe  = regexp.MustCompile(`<img[^>]*src="data:[^"]*"[^>]*>`)
	bareDataURIRe  = regexp.MustCompile(`data:[\w/+.-]+;base64,[A-Za-z0-9+/=]+`)
	shadowMarkdown = goldmark.New()
)

// shadow derives the searchable copy of a note body: embedded base64 images
// stripped, markdown-mode notes flattened to plain text, lowercased. Must
// never be fed an encrypted note's ciphertext.
func shadow(content string, mode Mode) string {
	content = stripEmbeddedImages(content)
	if mode == ModeMarkdown {
		content = flattenMarkdown(content)
	}
	return strings.ToLower(content)
}

func stripEmbeddedImages(content string) string {
	content = mdDataImageRe.ReplaceAllString(content, "")
	content = htmlDataImgRe.ReplaceAllString(content, "")
	return bareDataURIRe.ReplaceAllString(content, "")
}

// flattenMarkdown walks the goldmark AST and keeps only text content,
// dropping image nodes outright.
func flattenMarkdown(content string) string {
	src := []byte(content)
	root := shadowMarkdown.Parser().Parse(gmtext.NewReader(src))
	var b strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.AutoLink:
			b.Write(t.URL(src))
		case *ast.FencedCodeBlock:
			writeCodeLines(&b, src, t)
		case *ast.CodeBlock:
			writeCodeLines(&b, src, t)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(b.String(), "\n")
}

func writeCodeLines(b *strings.Builder, src []byte, n interface{ Lines() *gmtext.Segments }) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}
