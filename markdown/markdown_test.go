package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, input string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, input); err != nil {
		t.Fatalf("RenderMarkdown(%q): %v", input, err)
	}
	return buf.String()
}

func TestRenderMarkdownInline(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"_italic_", "<em>italic</em>"},
		{"**bold *italic* text**", "<strong>bold <em>italic</em> text</strong>"},
		{"use `go test`", "<code>go test</code>"},
		{"~~gone~~", "<del>gone</del>"},
	}
	for _, tt := range tests {
		got := render(t, tt.input)
		if !strings.Contains(got, tt.expected) {
			t.Errorf("RenderMarkdown(%q) = %q, want it to contain %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMarkdownCodeBlockWithLanguage(t *testing.T) {
	got := render(t, "```go\nfmt.Println(\"<hi>\")\n```")
	for _, want := range []string{
		`<div class="code-block-wrapper">`,
		`<span class="code-lang code-lang-go">go</span>`,
		`<code class="language-go">`,
		`fmt.Println(&quot;&lt;hi&gt;&quot;)`,
		`</code></pre></div>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("code block = %q, missing %q", got, want)
		}
	}
}

func TestRenderMarkdownCodeBlockWithoutLanguage(t *testing.T) {
	got := render(t, "```\ncode here\n```")
	if !strings.Contains(got, `<pre class="code-block"><code>code here`) {
		t.Errorf("code block = %q", got)
	}
	if strings.Contains(got, "code-block-wrapper") {
		t.Errorf("code block without language should not have a badge: %q", got)
	}
}

func TestRenderMarkdownHeadingsHaveIDs(t *testing.T) {
	got := render(t, "# Title\n\n## Getting Started")
	if !strings.Contains(got, `<h1 id="title">Title</h1>`) {
		t.Errorf("h1 = %q", got)
	}
	if !strings.Contains(got, `<h2 id="getting-started">Getting Started</h2>`) {
		t.Errorf("h2 = %q", got)
	}
}

func TestRenderMarkdownLinks(t *testing.T) {
	got := render(t, "[docs](https://go.dev/doc/) and [about](/about/)")
	if !strings.Contains(got, `<a href="https://go.dev/doc/" target="_blank" rel="noopener noreferrer">docs</a>`) {
		t.Errorf("external link = %q", got)
	}
	if !strings.Contains(got, `<a href="/about/">about</a>`) {
		t.Errorf("internal link = %q", got)
	}
}

func TestRenderMarkdownDropsUnsafe(t *testing.T) {
	got := render(t, "<script>alert(1)</script>\n\n[x](javascript:alert(1))")
	if strings.Contains(got, "<script>") {
		t.Errorf("raw html should be omitted: %q", got)
	}
	if strings.Contains(got, "javascript:") {
		t.Errorf("unsafe link should be dropped: %q", got)
	}
}

func TestRenderMarkdownImages(t *testing.T) {
	got := render(t, "![one](/a.png)\n\n![two](/b.png)")
	if !strings.Contains(got, `loading="eager"`) || !strings.Contains(got, `loading="lazy"`) {
		t.Errorf("image loading attributes = %q", got)
	}
	if strings.Count(got, `decoding="async"`) != 2 {
		t.Errorf("decoding attribute count in %q", got)
	}
}

func TestRenderMarkdownLists(t *testing.T) {
	got := render(t, "- one\n- two\n\n1. first\n2. second")
	if !strings.Contains(got, "<ul>") || !strings.Contains(got, "<li>one</li>") {
		t.Errorf("unordered list = %q", got)
	}
	if !strings.Contains(got, "<ol>") || !strings.Contains(got, "<li>second</li>") {
		t.Errorf("ordered list = %q", got)
	}
}

func TestRenderMarkdownTable(t *testing.T) {
	got := render(t, "| a | b |\n|---|---|\n| 1 | 2 |")
	for _, want := range []string{"<table>", "<th>a</th>", "<td>2</td>"} {
		if !strings.Contains(got, want) {
			t.Errorf("table = %q, missing %q", got, want)
		}
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("hello **world**").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "<p>hello <strong>world</strong></p>") {
		t.Errorf("component output = %q", buf.String())
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"# Heading\n\nFirst **bold** paragraph\ncontinues.\n\nSecond.", "First bold paragraph continues."},
		{"", ""},
		{"```\ncode\n```", ""},
	}
	for _, tt := range tests {
		if got := Excerpt(tt.input); got != tt.expected {
			t.Errorf("Excerpt(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
