// ABOUTME: Converts CommonMark answers from the backend into Slack mrkdwn
// ABOUTME: Parses with goldmark and re-renders the AST using Slack's markup rules

// Package mrkdwn renders Markdown as Slack mrkdwn.
//
// Slack does not understand CommonMark: bold is *x*, italics are _x_, links
// are <url|label> and there are no headings. Backend answers are written in
// CommonMark, so they are converted before being posted.
package mrkdwn

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
)

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

const listIndent = "    "

// Convert renders src as Slack mrkdwn. If rendering produces nothing for a
// non-blank input, src is returned unchanged.
func Convert(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	r := &renderer{src: source}
	out := strings.TrimSpace(r.blocks(doc, "\n\n"))
	if out == "" && strings.TrimSpace(src) != "" {
		return src
	}
	return out
}

type renderer struct {
	src []byte
}

func (r *renderer) blocks(parent ast.Node, sep string) string {
	var parts []string
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *renderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return r.inlines(n)
	case *ast.Heading:
		return "*" + r.inlines(n) + "*"
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		code := escaper.Replace(r.lines(n))
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		return "```\n" + code + "```"
	case *ast.HTMLBlock:
		return escaper.Replace(strings.TrimRight(r.lines(n), "\n"))
	case *ast.Blockquote:
		inner := r.blocks(n, "\n\n")
		return "> " + strings.ReplaceAll(inner, "\n", "\n> ")
	case *ast.List:
		return r.list(n)
	case *ast.ThematicBreak:
		return "──────────"
	default:
		return r.blocks(n, "\n\n")
	}
}

func (r *renderer) list(n *ast.List) string {
	sep := "\n"
	if !n.IsTight {
		sep = "\n\n"
	}

	var items []string
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "• "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		body := r.blocks(c, sep)
		items = append(items, marker+strings.ReplaceAll(body, "\n", "\n"+listIndent))
	}
	return strings.Join(items, sep)
}

func (r *renderer) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.src))
	}
	return b.String()
}

func (r *renderer) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(&b, c)
	}
	return b.String()
}

func (r *renderer) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.WriteString(escaper.Replace(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte('\n')
		}
	case *ast.String:
		b.WriteString(escaper.Replace(string(n.Value)))
	case *ast.CodeSpan:
		b.WriteString("`" + r.inlines(n) + "`")
	case *ast.Emphasis:
		mark := "_"
		if n.Level >= 2 {
			mark = "*"
		}
		b.WriteString(mark + r.inlines(n) + mark)
	case *extast.Strikethrough:
		b.WriteString("~" + r.inlines(n) + "~")
	case *ast.Link:
		b.WriteString(link(string(n.Destination), r.inlines(n)))
	case *ast.Image:
		b.WriteString(link(string(n.Destination), r.inlines(n)))
	case *ast.AutoLink:
		url := string(n.URL(r.src))
		if n.AutoLinkType == ast.AutoLinkEmail {
			b.WriteString("<mailto:" + url + "|" + url + ">")
			return
		}
		b.WriteString("<" + url + ">")
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.WriteString(escaper.Replace(string(seg.Value(r.src))))
		}
	default:
		b.WriteString(r.inlines(n))
	}
}

func link(dest, label string) string {
	if label == "" || label == dest {
		return "<" + dest + ">"
	}
	return "<" + dest + "|" + label + ">"
}
