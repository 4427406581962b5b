// Package sanitize 富文本白名单过滤，用于文章正文入库前
package sanitize

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Hr: true, atom.Span: true, atom.Div: true,
	atom.B: true, atom.Strong: true, atom.I: true, atom.Em: true, atom.U: true, atom.S: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Blockquote: true,
	atom.Code: true, atom.Pre: true, atom.A: true, atom.Img: true,
	atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tr: true, atom.Th: true, atom.Td: true,
	atom.Figure: true, atom.Figcaption: true,
}

var allowedAttrs = map[atom.Atom]map[string]bool{
	atom.A:   {"href": true, "title": true, "target": true},
	atom.Img: {"src": true, "alt": true, "title": true, "width": true, "height": true},
	atom.Td:  {"colspan": true, "rowspan": true},
	atom.Th:  {"colspan": true, "rowspan": true},
}

// 这些标签连同内容一起丢弃
var droppedWithContent = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Noscript: true, atom.Template: true,
}

// HTML 按白名单重写片段；未知标签去壳保留文本
func HTML(in string) string {
	z := xhtml.NewTokenizer(strings.NewReader(in))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			// io.EOF 或解析错误都在此结束
			return b.String()
		case xhtml.TextToken:
			if skip == 0 {
				b.WriteString(html.EscapeString(string(z.Text())))
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			tok := z.Token()
			if droppedWithContent[tok.DataAtom] {
				if tt == xhtml.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.DataAtom] {
				continue
			}
			writeStart(&b, tok, tt == xhtml.SelfClosingTagToken)
		case xhtml.EndTagToken:
			tok := z.Token()
			if droppedWithContent[tok.DataAtom] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.DataAtom] || isVoid(tok.DataAtom) {
				continue
			}
			b.WriteString("</" + tok.Data + ">")
		}
	}
}

func writeStart(b *strings.Builder, tok xhtml.Token, selfClosing bool) {
	b.WriteString("<" + tok.Data)
	attrs := allowedAttrs[tok.DataAtom]
	for _, a := range tok.Attr {
		key := strings.ToLower(a.Key)
		if !attrs[key] {
			continue
		}
		if (key == "href" || key == "src") && !safeURL(a.Val) {
			continue
		}
		b.WriteString(" " + key + `="` + html.EscapeString(a.Val) + `"`)
	}
	if tok.DataAtom == atom.A {
		b.WriteString(` rel="noopener noreferrer"`)
	}
	if selfClosing && isVoid(tok.DataAtom) {
		b.WriteString(" />")
		return
	}
	b.WriteString(">")
}

func isVoid(a atom.Atom) bool { return a == atom.Br || a == atom.Hr || a == atom.Img }

func safeURL(raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return false
	}
	if i := strings.IndexByte(u, ':'); i >= 0 {
		// 只有在第一个 / ? # 之前出现的冒号才算 scheme
		if j := strings.IndexAny(u, "/?#"); j == -1 || i < j {
			scheme := u[:i]
			return scheme == "http" || scheme == "https" || scheme == "mailto"
		}
	}
	return true
}
