package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PageSnapshot is the agent-facing view of a page: cleaned HTML with the
// noise stripped, plus metadata for the prompt header.
type PageSnapshot struct {
	URL       string
	Title     string
	Content   string
	Truncated bool
}

// buildSnapshot parses rawHTML and reduces it to the semantic skeleton the
// model can reason about. Scripts, styles and presentation-only markup are
// dropped; interactive elements keep the attributes needed to target them.
func buildSnapshot(rawHTML string, maxLength int) (*PageSnapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	w := &snapshotWriter{limit: maxLength}
	w.walk(doc)

	return &PageSnapshot{
		Title:     findTitle(doc),
		Content:   w.buf.String(),
		Truncated: w.truncated,
	}, nil
}

type snapshotWriter struct {
	buf       strings.Builder
	written   int
	limit     int
	truncated bool
}

func (w *snapshotWriter) walk(n *html.Node) {
	if w.truncated {
		return
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		w.writeText(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skipTag(tag) {
			return
		}
		w.writeOpen(tag, n.Attr)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		if !voidTag(tag) {
			w.write("</" + tag + ">")
		}
		if blockTag(tag) {
			w.write("\n")
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *snapshotWriter) writeText(s string) {
	text := strings.TrimSpace(s)
	if text == "" {
		return
	}
	if w.written+len(text) > w.limit {
		remaining := w.limit - w.written
		if remaining > 0 {
			w.buf.WriteString(text[:remaining])
		}
		w.buf.WriteString("...")
		w.written = w.limit
		w.truncated = true
		return
	}
	w.buf.WriteString(text)
	w.written += len(text)
}

func (w *snapshotWriter) writeOpen(tag string, attrs []html.Attribute) {
	w.write("<" + tag)
	for _, a := range attrs {
		if keepAttr(tag, strings.ToLower(a.Key)) {
			w.write(fmt.Sprintf(" %s=%q", a.Key, a.Val))
		}
	}
	w.write(">")
}

func (w *snapshotWriter) write(s string) {
	if w.truncated {
		return
	}
	w.buf.WriteString(s)
	w.written += len(s)
	if w.written >= w.limit {
		w.truncated = true
	}
}

// skipTag lists elements removed wholesale, content included.
func skipTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "svg", "embed", "object", "link", "meta":
		return true
	}
	return false
}

func voidTag(tag string) bool {
	switch tag {
	case "br", "hr", "img", "input", "area", "base", "col", "source", "track", "wbr":
		return true
	}
	return false
}

func blockTag(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer", "nav", "main",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "form", "blockquote", "pre":
		return true
	}
	return false
}

// keepAttr preserves attributes the model needs to build selectors.
func keepAttr(tag, attr string) bool {
	switch attr {
	case "id", "class", "role", "aria-label", "title":
		return true
	}
	if strings.HasPrefix(attr, "data-") {
		return true
	}
	switch tag {
	case "a":
		return attr == "href"
	case "img":
		return attr == "src" || attr == "alt"
	case "input", "textarea", "select":
		return attr == "name" || attr == "type" || attr == "placeholder" || attr == "value"
	case "button":
		return attr == "type" || attr == "name"
	case "form":
		return attr == "action" || attr == "method"
	}
	return false
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
