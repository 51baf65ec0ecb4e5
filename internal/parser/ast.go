package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock represents a parsed code block from markdown content.
type CodeBlock struct {
	// Hint is the raw paragraph immediately preceding the code block.
	Hint string
	// Lang is the language identifier of the code block (e.g., "go", "diff").
	Lang string
	// Content is the raw text inside the code block.
	Content string
}

// document is a markdown reply split into its fenced code blocks and the
// prose around them.
type document struct {
	Blocks []CodeBlock
	// Prose holds the text of top-level blocks that are neither code
	// blocks nor path hints of a code block.
	Prose []string
}

// parseDocument walks the top level of a markdown AST. A paragraph directly
// followed by a fenced code block is recorded as that block's hint instead
// of prose.
func parseDocument(source []byte) document {
	var doc document
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if fenced, ok := node.(*ast.FencedCodeBlock); ok {
			doc.Blocks = append(doc.Blocks, codeBlockOf(fenced, source))
			continue
		}
		if _, ok := node.(*ast.Paragraph); ok {
			if _, next := node.NextSibling().(*ast.FencedCodeBlock); next && pathFromHint(blockText(node, source)) != "" {
				continue
			}
		}
		if t := blockText(node, source); t != "" {
			doc.Prose = append(doc.Prose, t)
		}
	}
	return doc
}

func codeBlockOf(fenced *ast.FencedCodeBlock, source []byte) CodeBlock {
	var block CodeBlock
	if fenced.Info != nil {
		block.Lang = string(fenced.Language(source))
	}

	var content bytes.Buffer
	lines := fenced.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		content.Write(line.Value(source))
	}
	block.Content = content.String()

	if prev := fenced.PreviousSibling(); prev != nil {
		if p, ok := prev.(*ast.Paragraph); ok {
			block.Hint = blockText(p, source)
		}
	}
	return block
}

// blockText returns the raw source lines of a block node and its block
// descendants, so inline markup such as backticks is preserved.
func blockText(n ast.Node, source []byte) string {
	var lines []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		segs := c.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			lines = append(lines, strings.TrimRight(string(seg.Value(source)), "\r\n"))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
