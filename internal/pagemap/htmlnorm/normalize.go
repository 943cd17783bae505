// Package htmlnorm parses raw HTML with a forgiving tree builder, enforces
// the size/node-count guards, and removes effectively-invisible content
// before any other stage sees the tree.
//
// Traversal style (switch on n.Type/n.Data, explicit recursion-depth guard)
// is grounded on theRebelliousNerd-codenerd's internal/tools/research/web_fetch.go,
// the pack's one directly-imported user of golang.org/x/net/html.
package htmlnorm

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	pmerrors "github.com/Retio-ai/Retio-pagemap/internal/pagemap/errors"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/sanitize"
)

// maxTraversalDepth guards against pathological trees during recursive
// walks, the same defensive bound web_fetch.go's extractText applies.
const maxTraversalDepth = 500

// Document is the normalized DOM plus the bits later stages need without
// re-walking the tree from scratch.
type Document struct {
	Root               *html.Node
	NodeCount          int
	Lang               string
	RemovedHiddenCount int
}

var (
	styleDisplayNone     = regexp.MustCompile(`(?i)display\s*:\s*none\b`)
	styleVisibilityHide  = regexp.MustCompile(`(?i)visibility\s*:\s*hidden\b`)
	styleOpacityZero     = regexp.MustCompile(`(?i)opacity\s*:\s*([\d.]+)`)
	styleFontSizeZero    = regexp.MustCompile(`(?i)font-size\s*:\s*([\d.]+)\s*(px|em|rem|%)?`)
	styleOffscreen       = regexp.MustCompile(`(?i)(?:position\s*:\s*absolute)|(?:(?:left|top|text-indent)\s*:\s*-\d{4,}px)`)
)

// Normalize parses htmlBytes, enforces the size and node-count guards, and
// strips hidden content.
func Normalize(htmlBytes []byte, cfg config.Config) (*Document, error) {
	if int64(len(htmlBytes)) > cfg.MaxHTMLBytes {
		return nil, pmerrors.ResourceExhausted(pmerrors.ReasonHTMLSize, "html input exceeds max_html_bytes")
	}

	root, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, pmerrors.MalformedHTML(sanitize.ScrubSecretDetail(err.Error()))
	}

	nodeCount, lang := walkCount(root, 0)
	if nodeCount > cfg.MaxDOMNodes {
		return nil, pmerrors.ResourceExhausted(pmerrors.ReasonDOMNodes, "dom exceeds max_dom_nodes")
	}

	doc := &Document{Root: root, NodeCount: nodeCount, Lang: lang}
	doc.RemovedHiddenCount = removeHidden(root, 0)
	return doc, nil
}

// walkCount counts element nodes and captures the <html lang> attribute.
func walkCount(n *html.Node, depth int) (count int, lang string) {
	if depth > maxTraversalDepth {
		return 0, ""
	}
	if n.Type == html.ElementNode {
		count = 1
		if n.Data == "html" {
			lang = attr(n, "lang")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cCount, cLang := walkCount(c, depth+1)
		count += cCount
		if lang == "" {
			lang = cLang
		}
	}
	return count, lang
}

// removeHidden removes element subtrees whose style/attributes mark them
// effectively invisible. It returns the number of element nodes removed.
//
// A full implementation distinguishes a "resolved style" pass (computed
// after CSS cascade) from a raw inline-attribute pass; those only diverge
// when a CSS engine is available. There is no CSS engine here, so both
// collapse into one inline-style/attribute check — see DESIGN.md.
func removeHidden(n *html.Node, depth int) int {
	if depth > maxTraversalDepth {
		return 0
	}
	removed := 0

	// Snapshot children before mutating the sibling list.
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}

	for _, c := range children {
		if c.Type == html.ElementNode && isHidden(c) {
			n.RemoveChild(c)
			removed += countElements(c)
			continue
		}
		removed += removeHidden(c, depth+1)
	}
	return removed
}

func countElements(n *html.Node) int {
	count := 0
	if n.Type == html.ElementNode {
		count = 1
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += countElements(c)
	}
	return count
}

// isHidden reports whether an element is effectively invisible.
func isHidden(n *html.Node) bool {
	if hasBoolAttr(n, "hidden") {
		return true
	}
	if strings.EqualFold(attr(n, "aria-hidden"), "true") {
		return true
	}
	return isHiddenStyle(attr(n, "style"))
}

// isHiddenStyle applies precise hidden-style patterns: a zero-value check
// (via parsed float, not naive substring match) so "font-size:0" is removed
// but "font-size:0.5rem"/"font-size:0.875em" are retained.
func isHiddenStyle(style string) bool {
	if style == "" {
		return false
	}
	if styleDisplayNone.MatchString(style) {
		return true
	}
	if styleVisibilityHide.MatchString(style) {
		return true
	}
	if isZeroMatch(styleOpacityZero, style) {
		return true
	}
	if isZeroMatch(styleFontSizeZero, style) {
		return true
	}
	if styleOffscreen.MatchString(style) && isOffscreenPositioned(style) {
		return true
	}
	return false
}

// isZeroMatch extracts the numeric capture group from re and reports
// whether it parses to exactly zero. Using a parsed-float comparison
// (rather than a regex that tries to exclude "0.5" syntactically) avoids
// RE2's lack of lookahead while still rejecting any 0.<nonzero> value.
func isZeroMatch(re *regexp.Regexp, style string) bool {
	m := re.FindStringSubmatch(style)
	if m == nil {
		return false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false
	}
	return v == 0
}

// isOffscreenPositioned treats a left/top/text-indent offset of -1000px or
// more as off-screen; it does not look at position:absolute, which alone is
// extremely common for visible, intentionally-placed elements.
func isOffscreenPositioned(style string) bool {
	return regexp.MustCompile(`(?i)(?:left|top|text-indent)\s*:\s*-\d{4,}px`).MatchString(style)
}

func hasBoolAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

// attr returns the value of the named attribute, or "" if absent.
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// Attr is exported for downstream packages (C3/C4/C5) that need to read
// attributes off the same *html.Node tree without reimplementing the
// case-insensitive lookup.
func Attr(n *html.Node, name string) string {
	return attr(n, name)
}

// HasAttr is the exported form of hasBoolAttr.
func HasAttr(n *html.Node, name string) bool {
	return hasBoolAttr(n, name)
}

// TextContent concatenates all descendant text nodes, sanitized.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb, 0)
	return sanitize.Text(sb.String())
}

func collectText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > maxTraversalDepth {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript" || n.Data == "template") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, depth+1)
	}
}
