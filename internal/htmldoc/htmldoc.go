// Package htmldoc decomposes a contract-template HTML document into its
// structural zones and recomposes a complete document from them. Zones that
// are never shown to the editor (style blocks, head metadata, root
// attributes) are carried verbatim so that recomposition is lossless.
package htmldoc

import (
	"fmt"
	stdhtml "html"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultRootAttrs is used when the source document has no <html> tag or an
// <html> tag without attributes.
const DefaultRootAttrs = `lang="en"`

// Structure holds the zones of a decomposed contract document. Body is the
// only zone the editor ever sees; the rest are kept verbatim for Compose.
type Structure struct {
	Body        string `json:"body"`
	StyleBlocks string `json:"style_blocks"`
	HeadExtras  string `json:"head_extras"`
	RootAttrs   string `json:"root_attrs"`
}

var (
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	headRe    = regexp.MustCompile(`(?is)<head\b[^>]*>(.*?)</head>`)
	titleRe   = regexp.MustCompile(`(?is)<title\b[^>]*>.*?</title>`)
	htmlTagRe = regexp.MustCompile(`(?is)<html\b([^>]*)>`)
	bodyRe    = regexp.MustCompile(`(?is)<body\b[^>]*>(.*?)</body>`)
)

// Parse splits rawHTML into its structural zones. It never fails: malformed
// or partial documents degrade to best-effort extraction with empty-string
// defaults. Style blocks are collected from the whole document in document
// order, wherever they appear.
func Parse(rawHTML string) Structure {
	s := Structure{RootAttrs: DefaultRootAttrs}

	if blocks := styleRe.FindAllString(rawHTML, -1); len(blocks) > 0 {
		s.StyleBlocks = strings.Join(blocks, "\n")
	}

	if m := headRe.FindStringSubmatch(rawHTML); m != nil {
		// Styles are already captured; the title is regenerated at
		// compose time from the template subject.
		head := styleRe.ReplaceAllString(m[1], "")
		head = titleRe.ReplaceAllString(head, "")
		s.HeadExtras = strings.TrimSpace(head)
	}

	if m := htmlTagRe.FindStringSubmatch(rawHTML); m != nil {
		if attrs := strings.TrimSpace(m[1]); attrs != "" {
			s.RootAttrs = attrs
		}
	}

	if m := bodyRe.FindStringSubmatch(rawHTML); m != nil {
		s.Body = strings.TrimSpace(styleRe.ReplaceAllString(m[1], ""))
	} else {
		// No <body> tag: the entire input is the editable body.
		s.Body = strings.TrimSpace(styleRe.ReplaceAllString(rawHTML, ""))
	}

	return s
}

// Compose reassembles a complete HTML document from an edited body and the
// zones captured at parse time. StyleBlocks and HeadExtras are emitted
// verbatim; the title is rebuilt from subject.
func Compose(body, subject string, s Structure) string {
	rootAttrs := strings.TrimSpace(s.RootAttrs)
	if rootAttrs == "" {
		rootAttrs = DefaultRootAttrs
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html ")
	b.WriteString(rootAttrs)
	b.WriteString(">\n<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("<title>")
	b.WriteString(stdhtml.EscapeString(subject))
	b.WriteString("</title>\n")
	if s.HeadExtras != "" {
		b.WriteString(s.HeadExtras)
		b.WriteString("\n")
	}
	if s.StyleBlocks != "" {
		b.WriteString(s.StyleBlocks)
		b.WriteString("\n")
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// CheckWellFormed parses doc with a tolerant HTML5 parser and verifies that
// a renderable body with actual content comes out the other side. The parser
// repairs most damage silently, so the check is for documents broken badly
// enough that the upstream PDF renderer would produce a blank contract.
func CheckWellFormed(doc string) error {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}

	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)

	if body == nil {
		return fmt.Errorf("document has no body")
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return nil
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return nil
		}
	}
	return fmt.Errorf("document body is empty")
}
