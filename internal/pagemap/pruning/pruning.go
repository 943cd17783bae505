// Package pruning is C5, the five-stage pipeline that turns a normalized
// DOM into the compressed `Info` block: attribute stripping, script-island
// removal, semantic filtering (AOM exemption, link-density penalty, grid
// whitelist), schema-aware chunking, and budget-constrained compression
// with a minimum-content-guarantee cascade.
package pruning

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/htmlnorm"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/sanitize"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/tokenbudget"
)

// Stage 1 — attribute strip & preprocessing.

var semanticClassPattern = regexp.MustCompile(`(?i)price|rating|review|itemprop`)

// StripAttributes removes style, class (unless it carries price/rating
// semantics), and data-* attributes (except data-price/data-value) from
// every element, and reduces srcset to its largest-width candidate.
func StripAttributes(n *html.Node) {
	if n.Type == html.ElementNode {
		n.Attr = filterAttrs(n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		StripAttributes(c)
	}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	for _, a := range attrs {
		switch {
		case a.Key == "style":
			continue
		case a.Key == "class":
			if semanticClassPattern.MatchString(a.Val) {
				out = append(out, a)
			}
		case a.Key == "data-price" || a.Key == "data-value":
			out = append(out, a)
		case strings.HasPrefix(a.Key, "data-"):
			continue
		case a.Key == "srcset":
			if largest := largestSrcsetCandidate(a.Val); largest != "" {
				out = append(out, html.Attribute{Key: "src", Val: largest})
			}
		default:
			out = append(out, a)
		}
	}
	return out
}

// largestSrcsetCandidate picks the URL with the largest width descriptor
// ("400w") out of a srcset list, falling back to the last candidate when
// no width descriptors are present.
func largestSrcsetCandidate(srcset string) string {
	candidates := strings.Split(srcset, ",")
	bestURL := ""
	bestWidth := -1
	for _, cand := range candidates {
		fields := strings.Fields(strings.TrimSpace(cand))
		if len(fields) == 0 {
			continue
		}
		url := fields[0]
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			width = parseLeadingInt(strings.TrimSuffix(fields[1], "w"))
		}
		if width >= bestWidth {
			bestWidth = width
			bestURL = url
		}
	}
	return bestURL
}

func parseLeadingInt(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Stage 2 — script-island extraction.

var scriptIslandTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

// RemoveScriptIslands deletes <script>/<style>/<noscript>/<template>
// subtrees from the tree used for chunking. JSON-LD/OG/RSC payloads must
// already have been handed to the structured-data extractor before this
// runs, since this stage discards them.
func RemoveScriptIslands(n *html.Node) int {
	removed := 0
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		if c.Type == html.ElementNode && scriptIslandTags[c.Data] {
			n.RemoveChild(c)
			removed++
			continue
		}
		removed += RemoveScriptIslands(c)
	}
	return removed
}

// Stage 3 — semantic filtering.

const linkDensityThreshold = 0.8
const readabilityExemptionChars = 80

var chromeTags = map[string]bool{"nav": true, "footer": true, "aside": true}

// SemanticFilter removes <nav>/<footer>/<aside> subtrees (unless they
// contain an already-referenced interactable, the AOM rule) and applies
// the link-density penalty, with a Readability-style exemption for
// in-article paragraphs and a grid whitelist for list/table-shaped
// content. Returns the count of removed element nodes.
func SemanticFilter(n *html.Node, xpath string, referencedXPaths []string) int {
	removed := 0
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		if c.Type != html.ElementNode {
			continue
		}
		childXPath := xpath + "/" + c.Data
		if shouldRemoveSemantic(c, childXPath, referencedXPaths) {
			n.RemoveChild(c)
			removed += countElements(c)
			continue
		}
		removed += SemanticFilter(c, childXPath, referencedXPaths)
	}
	return removed
}

func shouldRemoveSemantic(n *html.Node, xpath string, referencedXPaths []string) bool {
	if chromeTags[n.Data] {
		return !hasReferencedDescendant(xpath, referencedXPaths)
	}
	if isGridWhitelisted(n) {
		return false
	}
	switch n.Data {
	case "html", "body", "main", "article":
		return false // page-level containers are never dropped for link density
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if isGridWhitelisted(p) {
			return false // the whitelist covers the grid's rows and cells too
		}
	}
	total := textRuneLen(n)
	if total == 0 {
		return false
	}
	linked := linkTextRuneLen(n)
	density := float64(linked) / float64(total)
	if density <= linkDensityThreshold {
		return false
	}
	if n.Data == "p" && isInsideArticleOrMain(n) {
		if total-linked > readabilityExemptionChars {
			return false
		}
	}
	return true
}

func hasReferencedDescendant(xpath string, referencedXPaths []string) bool {
	for _, r := range referencedXPaths {
		if strings.HasPrefix(r, xpath) {
			return true
		}
	}
	return false
}

// isGridWhitelisted exempts list/table structures, and <section> elements
// with at least three structurally similar (same-tag) children, from the
// link-density penalty entirely.
func isGridWhitelisted(n *html.Node) bool {
	switch n.Data {
	case "ul", "ol", "table", "tbody":
		return true
	case "section":
		counts := map[string]int{}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				counts[c.Data]++
			}
		}
		for _, v := range counts {
			if v >= 3 {
				return true
			}
		}
	}
	return false
}

func isInsideArticleOrMain(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Data == "article" || p.Data == "main" {
			return true
		}
	}
	return false
}

func textRuneLen(n *html.Node) int {
	return len([]rune(rawText(n)))
}

func linkTextRuneLen(n *html.Node) int {
	total := 0
	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "a" {
			total += len([]rune(rawText(c)))
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return total
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			return
		}
		if c.Type == html.ElementNode && scriptIslandTags[c.Data] {
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
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

// Stage 4 — schema-aware chunking.

var chunkTags = map[string]model.ChunkType{
	"h1": model.ChunkHeading, "h2": model.ChunkHeading, "h3": model.ChunkHeading,
	"h4": model.ChunkHeading, "h5": model.ChunkHeading, "h6": model.ChunkHeading,
	"p":          model.ChunkParagraph,
	"ul":         model.ChunkList,
	"ol":         model.ChunkList,
	"table":      model.ChunkTable,
	"form":       model.ChunkForm,
	"img":        model.ChunkMedia,
	"video":      model.ChunkMedia,
	"picture":    model.ChunkMedia,
	"pre":        model.ChunkCode,
	"code":       model.ChunkCode,
	"blockquote": model.ChunkParagraph,
}

var chunkTypeWeight = map[model.ChunkType]float64{
	model.ChunkHeading:   3.0,
	model.ChunkParagraph: 1.0,
	model.ChunkList:      1.2,
	model.ChunkTable:     1.0,
	model.ChunkForm:      1.5,
	model.ChunkMedia:     0.5,
	model.ChunkCard:      1.3,
	model.ChunkCode:      0.8,
}

// Chunk converts the surviving tree into a flat, non-overlapping sequence
// of HtmlChunks. A div/section/li carrying a "card"-ish class is emitted as
// CARD; everything else chunk-worthy is emitted by tag and its subtree is
// not re-visited, so no chunk's text is a substring of another's.
func Chunk(n *html.Node, xpath string) []model.HtmlChunk {
	var chunks []model.HtmlChunk
	chunkWalk(n, xpath, &chunks)
	return chunks
}

func chunkWalk(n *html.Node, xpath string, out *[]model.HtmlChunk) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		childXPath := xpath + "/" + c.Data
		if isCardElement(c) {
			emitChunk(c, childXPath, model.ChunkCard, out)
			continue
		}
		if ct, ok := chunkTags[c.Data]; ok {
			emitChunk(c, childXPath, ct, out)
			continue
		}
		chunkWalk(c, childXPath, out)
	}
}

func isCardElement(n *html.Node) bool {
	if n.Data != "div" && n.Data != "section" && n.Data != "li" {
		return false
	}
	return strings.Contains(strings.ToLower(htmlnorm.Attr(n, "class")), "card")
}

func emitChunk(n *html.Node, xpath string, ct model.ChunkType, out *[]model.HtmlChunk) {
	text := htmlnorm.TextContent(n)
	if text == "" {
		return
	}
	attrs := carriedAttrs(n)
	// Structural type dominates ordering (scaled well above the length
	// term's range) so a long paragraph never outranks a short heading;
	// length only breaks ties within the same chunk type.
	weight := chunkTypeWeight[ct]*100 + math.Log(float64(len([]rune(text))+1))
	*out = append(*out, model.HtmlChunk{
		Type:        ct,
		Text:        text,
		Weight:      weight,
		Attrs:       attrs,
		XPathPrefix: xpath,
	})
}

func carriedAttrs(n *html.Node) map[string]string {
	attrs := map[string]string{}
	for _, a := range n.Attr {
		if a.Key == "itemprop" || a.Key == "class" || a.Key == "aria-label" || a.Key == "data-price" || a.Key == "data-value" {
			attrs[a.Key] = a.Val
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// Stage 5 — compression & ordering.

const minContentGuaranteeTokens = 10

// Fallback bundles the inputs for the minimum-content-guarantee cascade:
// OG description → pruned HTML head → raw HTML first-N chars.
type Fallback struct {
	OGDescription string
	HeadText      string
	RawHTMLHead   string
}

// Compress greedily assembles chunks by descending weight (ties broken by
// document order) until the token budget is exhausted, applies the
// script-language filter, and triggers the minimum-content-guarantee
// cascade if the result is under minContentGuaranteeTokens.
func Compress(chunks []model.HtmlChunk, budget int, locale string, fallback Fallback) (string, []string) {
	var warnings []string
	ordered := make([]model.HtmlChunk, len(chunks))
	copy(ordered, chunks)
	stableSortByWeightDesc(ordered)

	var lines []string
	used := 0
	for _, c := range ordered {
		remaining := budget - used
		if remaining <= 0 {
			break
		}
		cost := tokenbudget.Estimate(c.Text, locale)
		if cost <= remaining {
			lines = append(lines, c.Text)
			used += cost
			continue
		}
		// Chunk would overrun the remaining budget (even as the first,
		// highest-weight chunk): truncate it to what fits instead of
		// admitting it whole or dropping it.
		if truncated := truncateToTokens(c.Text, remaining, locale); truncated != "" {
			lines = append(lines, truncated)
			used += tokenbudget.Estimate(truncated, locale)
		}
		break
	}

	dominant := tokenbudget.DominantScript(strings.Join(lines, " "))
	filtered, filterWarnings := applyLanguageFilter(lines, dominant)
	warnings = append(warnings, filterWarnings...)

	text := strings.Join(filtered, "\n\n")
	if tokenbudget.Estimate(text, locale) < minContentGuaranteeTokens {
		text, warnings = mcgCascade(text, fallback, locale, warnings)
	}
	return text, warnings
}

// truncateToTokens cuts text down to the rune count that fits within
// remainingTokens for locale, respecting locale-specific chars-per-token
// density (CJK text packs far more meaning per rune than Latin text, so a
// byte-length cut would under-fill a CJK budget and over-fill a Latin one).
// Cuts on a rune boundary, then backs off to the last whitespace inside
// the cut (for any script) when there is one.
func truncateToTokens(text string, remainingTokens int, locale string) string {
	maxChars := tokenbudget.MaxChars(remainingTokens, locale)
	runes := []rune(text)
	if maxChars <= 0 || len(runes) == 0 {
		return ""
	}
	if len(runes) <= maxChars {
		return text
	}
	cut := runes[:maxChars]
	if last := strings.LastIndexAny(string(cut), " \n\t"); last > 0 {
		cut = []rune(string(cut)[:last])
	}
	return strings.TrimSpace(string(cut))
}

func stableSortByWeightDesc(chunks []model.HtmlChunk) {
	for i := 1; i < len(chunks); i++ {
		j := i
		for j > 0 && chunks[j-1].Weight < chunks[j].Weight {
			chunks[j-1], chunks[j] = chunks[j], chunks[j-1]
			j--
		}
	}
}

// applyLanguageFilter removes short lines whose dominant script disagrees
// with the page-dominant script (UI noise) and tags long disagreeing lines
// with a "[lang]" marker rather than deleting them outright.
func applyLanguageFilter(lines []string, dominant tokenbudget.Script) ([]string, []string) {
	var warnings []string
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if tokenbudget.AlwaysPassesLanguageFilter(line) {
			out = append(out, line)
			continue
		}
		script := tokenbudget.DominantScript(line)
		if script == dominant || script == tokenbudget.ScriptOther {
			out = append(out, line)
			continue
		}
		if len([]rune(line)) <= 40 {
			continue // short UI noise in a different script, drop
		}
		out = append(out, "[lang] "+line)
		warnings = append(warnings, "language filter tagged a mismatched-script line rather than dropping it")
	}
	return out, warnings
}

// mcgCascade falls through OG description → pruned HTML head → raw HTML
// first-N-chars when the primary output is under the minimum content
// floor.
func mcgCascade(text string, fallback Fallback, locale string, warnings []string) (string, []string) {
	if fallback.OGDescription != "" {
		warnings = append(warnings, "minimum-content-guarantee: fell back to OG description")
		return sanitize.Text(fallback.OGDescription), warnings
	}
	if fallback.HeadText != "" {
		warnings = append(warnings, "minimum-content-guarantee: fell back to pruned HTML head")
		return sanitize.Text(fallback.HeadText), warnings
	}
	if fallback.RawHTMLHead != "" {
		warnings = append(warnings, "minimum-content-guarantee: fell back to raw HTML prefix")
		n := len(fallback.RawHTMLHead)
		if n > 2000 {
			n = 2000
		}
		return sanitize.Text(fallback.RawHTMLHead[:n]), warnings
	}
	return text, warnings
}
