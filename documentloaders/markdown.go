package documentloaders

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/sourceqa/schema"
)

const frontMatterSeparator = "---"

// Markdown loads a Markdown file as one plain text document. YAML front
// matter becomes metadata; markup is dropped and blocks are separated by
// blank lines. The first heading is stored as "title" unless the front
// matter sets one.
type Markdown struct {
	path string
	opts options
	md   goldmark.Markdown
}

var _ Loader = (*Markdown)(nil)

func NewMarkdown(path string, opts ...Option) *Markdown {
	return &Markdown{path: path, opts: applyOptions(opts...), md: goldmark.New()}
}

func (l *Markdown) Load(ctx context.Context) ([]schema.Document, error) {
	if l.path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}

	body, frontMatter := splitFrontMatter(normalizeText(string(raw)))
	metadata := make(map[string]any, len(frontMatter)+2)
	if frontMatter != "" {
		if err := yaml.Unmarshal([]byte(frontMatter), &metadata); err != nil {
			l.opts.logger.WarnContext(ctx, "Ignoring invalid front matter", "path", l.path, "error", err)
			metadata = make(map[string]any, 2)
		}
	}

	content, title := l.plainText([]byte(body))
	if strings.TrimSpace(content) == "" {
		return []schema.Document{}, nil
	}
	if _, ok := metadata["title"]; !ok && title != "" {
		metadata["title"] = title
	}
	metadata[schema.SourceKey] = l.opts.sourceFor(l.path)

	return []schema.Document{schema.NewDocument(content, metadata)}, nil
}

// splitFrontMatter separates a leading "---" delimited block from the body.
func splitFrontMatter(s string) (body, frontMatter string) {
	if !strings.HasPrefix(s, frontMatterSeparator+"\n") {
		return s, ""
	}
	rest := s[len(frontMatterSeparator)+1:]
	if strings.HasPrefix(rest, frontMatterSeparator+"\n") || rest == frontMatterSeparator {
		return strings.TrimPrefix(rest[len(frontMatterSeparator):], "\n"), ""
	}
	end := strings.Index(rest, "\n"+frontMatterSeparator+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+frontMatterSeparator) {
			return "", rest[:len(rest)-len(frontMatterSeparator)-1]
		}
		return s, ""
	}
	return rest[end+len(frontMatterSeparator)+2:], rest[:end]
}

// plainText renders the text content of the Markdown AST and returns the
// first heading.
func (l *Markdown) plainText(src []byte) (string, string) {
	doc := l.md.Parser().Parse(text.NewReader(src))

	var (
		buf   bytes.Buffer
		title string
	)
	endBlock := func() {
		if buf.Len() == 0 {
			return
		}
		trimmed := bytes.TrimRight(buf.Bytes(), " \n")
		buf.Truncate(len(trimmed))
		buf.WriteString("\n\n")
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				endBlock()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if title == "" {
				title = headingText(node, src)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := range lines.Len() {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String()), title
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
