// Package structdata implements the structured-data extractor: a pass over
// JSON-LD script islands, a second pass over microdata attributes and
// <meta property="og:*">/<meta name="*"> tags, dispatched by @type into a
// per-schema parser registry. Every parser is adapted from the teacher's
// config-cascade idea of explicit, typed field readers rather than
// reflection — grounded on GangsterSamed-agent's snapshot-to-typed-struct
// conversion style.
package structdata

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/htmlnorm"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/sanitize"
)

// maxGraphDepth bounds recursion into nested @graph arrays to prevent a
// maliciously deep JSON-LD document from blowing the stack.
const maxGraphDepth = 5

// Extracted is everything C3 contributes to one pipeline pass.
type Extracted struct {
	Metadata model.Metadata
	Images   []string
	Warnings []string
}

// schemaParser converts raw JSON-LD/microdata fields into typed Metadata.
type schemaParser func(fields map[string]any) model.Metadata

var parserRegistry = map[string]schemaParser{
	"product":         parseProduct,
	"article":         parseArticle,
	"newsarticle":     parseArticle,
	"blogposting":     parseArticle,
	"videoobject":     parseVideo,
	"breadcrumblist":  parseBreadcrumbList,
	"faqpage":         parseFAQPage,
	"event":           parseEvent,
	"localbusiness":   parseLocalBusiness,
	"wikiarticle":     parseWikiArticle,
}

// Extract runs the two structured-data passes over a normalized document.
func Extract(doc *htmlnorm.Document) Extracted {
	var warnings []string
	var images []string

	objects, jsonLDWarnings := collectJSONLD(doc.Root)
	warnings = append(warnings, jsonLDWarnings...)

	metadata := model.Metadata{SchemaName: "Generic", Fields: map[string]any{}}
	found := false

	for _, obj := range objects {
		name, parser := resolveParser(obj)
		if parser == nil {
			continue
		}
		m := parser(obj)
		m.SchemaName = name
		metadata = mergeMetadata(metadata, m)
		found = true
		if img, ok := metadata.Fields["image"].(string); ok {
			if valid, ok := ValidateImageURL(img); ok {
				images = append(images, valid)
			}
		}
	}

	// Second pass: general microdata (itemscope/itemprop), not just the
	// image special-case — feeds the same schema parser registry JSON-LD
	// uses, since both describe the same typed-field contract.
	for _, obj := range collectMicrodataItems(doc.Root) {
		name, parser := resolveParser(obj)
		if parser == nil {
			continue
		}
		m := parser(obj)
		if !found {
			m.SchemaName = name
			metadata = mergeMetadata(metadata, m)
			found = true
		} else {
			metadata = mergeMetadataPreferExisting(metadata, m)
		}
	}

	ogFields, metaFields := collectMetaTags(doc.Root)
	if !found {
		if t, ok := ogFields["og:type"]; ok {
			if name, parser := parserByTypeString(t); parser != nil {
				m := parser(mergeStringMap(ogFields, metaFields))
				m.SchemaName = name
				metadata = mergeMetadata(metadata, m)
				found = true
			}
		}
	}
	if img, ok := ogFields["og:image"]; ok {
		if valid, ok := ValidateImageURL(img); ok {
			images = append(images, valid)
		}
	}

	microImages := collectMicrodataImages(doc.Root)
	images = append(images, microImages...)

	// Product price-recovery cascade (§4.7): JSON-LD and microdata already
	// had their shot above; fall through OG product price tags, then a
	// DOM class=".*price.*" scan (Amazon's visually-hidden ".a-offscreen"
	// span holds the full price string and wins over a visually-split one).
	if metadata.SchemaName == "Product" {
		if metadata.Fields == nil {
			metadata.Fields = map[string]any{}
		}
		priceRecoveryCascade(metadata.Fields, ogFields, metaFields, doc.Root)
	}

	return Extracted{
		Metadata: metadata,
		Images:   dedupeStrings(images),
		Warnings: warnings,
	}
}

// mergeMetadataPreferExisting merges incoming fields into base without
// overwriting a field base already has — used for microdata items once
// JSON-LD has produced metadata, so the more authoritative JSON-LD values
// win. The OG/meta/DOM price-recovery steps do not go through it.
func mergeMetadataPreferExisting(base, incoming model.Metadata) model.Metadata {
	if base.Fields == nil {
		base.Fields = map[string]any{}
	}
	for k, v := range incoming.Fields {
		if _, exists := base.Fields[k]; !exists {
			base.Fields[k] = v
		}
	}
	return base
}

// collectMicrodataItems walks itemscope subtrees and extracts each one's
// itemtype (schema name) and direct itemprop values, not descending into a
// nested itemscope's own subtree (that is a separate item, e.g. an Offer
// nested inside a Product).
func collectMicrodataItems(root *html.Node) []map[string]any {
	var items []map[string]any
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && htmlnorm.HasAttr(n, "itemscope") {
			fields := map[string]any{}
			if t := htmlnorm.Attr(n, "itemtype"); t != "" {
				fields["@type"] = microdataTypeName(t)
			}
			collectItemProps(n, fields)
			items = append(items, fields)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return items
}

// microdataTypeName takes the last path segment of an itemtype URL
// ("https://schema.org/Product" -> "Product").
func microdataTypeName(itemtype string) string {
	itemtype = strings.TrimRight(itemtype, "/")
	if idx := strings.LastIndex(itemtype, "/"); idx >= 0 {
		return itemtype[idx+1:]
	}
	return itemtype
}

// collectItemProps gathers itemprop values found directly inside n,
// stopping at a nested itemscope boundary.
func collectItemProps(n *html.Node, fields map[string]any) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if prop := htmlnorm.Attr(c, "itemprop"); prop != "" {
			fields[prop] = microdataPropValue(c)
		}
		if htmlnorm.HasAttr(c, "itemscope") {
			continue
		}
		collectItemProps(c, fields)
	}
}

// microdataPropValue reads an itemprop element's value per the microdata
// spec's per-tag rules (meta=content, img/media=src, a/link=href,
// time=datetime, input=value), falling back to text content.
func microdataPropValue(n *html.Node) string {
	switch n.Data {
	case "meta":
		return htmlnorm.Attr(n, "content")
	case "img", "audio", "video", "source", "iframe", "embed", "track":
		return htmlnorm.Attr(n, "src")
	case "a", "link", "area":
		return htmlnorm.Attr(n, "href")
	case "time":
		if v := htmlnorm.Attr(n, "datetime"); v != "" {
			return v
		}
	case "input":
		return htmlnorm.Attr(n, "value")
	}
	return sanitize.Text(htmlnorm.TextContent(n))
}

var pricyClassPattern = regexp.MustCompile(`(?i)price`)

// currencySymbols maps a literal currency symbol to its ISO 4217 code, for
// price strings that carry a symbol instead of an explicit code.
var currencySymbols = map[string]string{
	"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY", "₩": "KRW",
}

// priceRecoveryCascade fills fields["price"]/["currency"] from OG product
// tags, then a DOM class=".*price.*" scan, when neither JSON-LD nor
// microdata (both already applied by the caller) produced a price.
func priceRecoveryCascade(fields map[string]any, ogFields, metaFields map[string]string, root *html.Node) {
	if _, ok := fields["price"]; ok {
		return
	}
	if amount, ok := ogFields["og:price:amount"]; ok {
		if f, ok := ToFloat(amount); ok {
			fields["price"] = f
			if cur, ok := ogFields["og:price:currency"]; ok {
				fields["currency"] = cur
			}
			return
		}
	}
	if amount, ok := metaFields["product:price:amount"]; ok {
		if f, ok := ToFloat(amount); ok {
			fields["price"] = f
			if cur, ok := metaFields["product:price:currency"]; ok {
				fields["currency"] = cur
			}
			return
		}
	}
	if text, ok := findPriceInDOM(root); ok {
		if f, cur, ok := parsePriceText(text); ok {
			fields["price"] = f
			if cur != "" {
				fields["currency"] = cur
			}
		}
	}
}

// findPriceInDOM scans for elements whose class attribute mentions
// "price", preferring Amazon's visually-hidden ".a-offscreen" span (which
// carries the full price as one string) over a visually-split layout where
// currency symbol, integer, and fraction live in separate sibling spans.
func findPriceInDOM(root *html.Node) (string, bool) {
	var offscreen, generic string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := htmlnorm.Attr(n, "class")
			switch {
			case strings.Contains(class, "a-offscreen") && offscreen == "":
				offscreen = strings.TrimSpace(htmlnorm.TextContent(n))
			case pricyClassPattern.MatchString(class) && generic == "":
				generic = strings.TrimSpace(htmlnorm.TextContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if offscreen != "" {
		return offscreen, true
	}
	if generic != "" {
		return generic, true
	}
	return "", false
}

// parsePriceText extracts a numeric amount and, where recognizable, a
// currency code from a free-form price string ("$19.99", "KRW 139,000").
func parsePriceText(text string) (float64, string, bool) {
	currency := ""
	for sym, code := range currencySymbols {
		if strings.Contains(text, sym) {
			currency = code
			break
		}
	}
	if currency == "" {
		for _, word := range strings.Fields(text) {
			if len(word) == 3 && isUpperAlpha(word) {
				currency = word
				break
			}
		}
	}
	f, ok := ToFloat(text)
	if !ok {
		return 0, currency, false
	}
	return f, currency, true
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func mergeMetadata(base, incoming model.Metadata) model.Metadata {
	if base.Fields == nil {
		base.Fields = map[string]any{}
	}
	for k, v := range incoming.Fields {
		base.Fields[k] = v
	}
	if incoming.SchemaName != "" {
		base.SchemaName = incoming.SchemaName
	}
	return base
}

func mergeStringMap(a, b map[string]string) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// resolveParser determines the @type of a JSON-LD object and looks up its
// parser. Falls through explicit @type → fallback Generic.
func resolveParser(obj map[string]any) (string, schemaParser) {
	raw, ok := obj["@type"]
	if !ok {
		return "Generic", nil
	}
	switch v := raw.(type) {
	case string:
		if name, p := parserByTypeString(v); p != nil {
			return name, p
		}
		return v, nil
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				if name, p := parserByTypeString(s); p != nil {
					return name, p
				}
			}
		}
	}
	return "Generic", nil
}

func parserByTypeString(raw string) (string, schemaParser) {
	key := strings.ToLower(strings.TrimPrefix(raw, "schema:"))
	key = strings.TrimSpace(key)
	if p, ok := parserRegistry[key]; ok {
		return canonicalSchemaName(key), p
	}
	return "", nil
}

func canonicalSchemaName(key string) string {
	switch key {
	case "newsarticle":
		return "NewsArticle"
	case "blogposting":
		return "Article"
	case "videoobject":
		return "VideoObject"
	case "breadcrumblist":
		return "BreadcrumbList"
	case "faqpage":
		return "FAQPage"
	case "localbusiness":
		return "LocalBusiness"
	case "wikiarticle":
		return "WikiArticle"
	default:
		return strings.ToUpper(key[:1]) + key[1:]
	}
}

// collectJSONLD walks the document for <script type="application/ld+json">
// blocks and flattens any nested @graph arrays (bounded to maxGraphDepth).
func collectJSONLD(root *html.Node) ([]map[string]any, []string) {
	var objects []map[string]any
	var warnings []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && htmlnorm.Attr(n, "type") == "application/ld+json" {
			text := scriptText(n)
			parsed, err := parseJSONLDBlock(text)
			if err != nil {
				warnings = append(warnings, "json-ld parse error: "+sanitize.ScrubSecretDetail(err.Error()))
			} else {
				objects = append(objects, parsed...)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return objects, warnings
}

func scriptText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func parseJSONLDBlock(text string) ([]map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	var out []map[string]any
	flattenJSONLD(raw, 0, &out)
	return out, nil
}

// flattenJSONLD recurses into top-level arrays and @graph arrays, bounded
// by maxGraphDepth to prevent a deeply-nested document from causing
// unbounded recursion.
func flattenJSONLD(node any, depth int, out *[]map[string]any) {
	if depth > maxGraphDepth {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		*out = append(*out, v)
		if graph, ok := v["@graph"]; ok {
			flattenJSONLD(graph, depth+1, out)
		}
	case []any:
		for _, item := range v {
			flattenJSONLD(item, depth+1, out)
		}
	}
}

// collectMetaTags gathers <meta property="og:*"> and <meta name="*">
// values keyed by their property/name attribute.
func collectMetaTags(root *html.Node) (og map[string]string, named map[string]string) {
	og = map[string]string{}
	named = map[string]string{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			content := htmlnorm.Attr(n, "content")
			if prop := htmlnorm.Attr(n, "property"); strings.HasPrefix(prop, "og:") {
				og[prop] = sanitize.Text(content)
			}
			if name := htmlnorm.Attr(n, "name"); name != "" {
				named[name] = sanitize.Text(content)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return og, named
}

// collectMicrodataImages finds itemprop="image" elements and reads their
// src/content/href attribute, whichever is present.
func collectMicrodataImages(root *html.Node) []string {
	var images []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && htmlnorm.Attr(n, "itemprop") == "image" {
			for _, attr := range []string{"src", "content", "href"} {
				if v := htmlnorm.Attr(n, attr); v != "" {
					if valid, ok := ValidateImageURL(v); ok {
						images = append(images, valid)
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return images
}

// ValidateImageURL rejects everything but http/https schemes, refusing
// javascript: and data: URIs from reaching the PageMap's image list.
func ValidateImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return raw, true
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ToFloat parses either US ("1,500.99") or European ("1.500,99") decimal
// notation. When both separators appear, whichever comes last is the
// decimal point and the other a thousands grouping; a lone comma is a
// decimal point only when exactly two digits follow it ("19,99"), else a
// grouping ("139,000"); a lone dot is always a decimal point.
func ToFloat(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = stripNonNumericPrefix(s)
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	var normalized string
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			normalized = strings.ReplaceAll(s, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) == 2 {
			normalized = strings.Replace(s, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}
	default:
		normalized = s
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(normalized), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ToInt rounds rather than truncates: "4.9" becomes 5, not 4.
func ToInt(raw string) (int, bool) {
	f, ok := ToFloat(raw)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func stripNonNumericPrefix(s string) string {
	start := 0
	for start < len(s) {
		c := s[start]
		if c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.' || c == ',' {
			break
		}
		start++
	}
	return s[start:]
}

// anyToString coerces a JSON-decoded value to a sanitized string, or "" if
// it isn't string-shaped (numbers are formatted via fmt-free strconv to
// avoid surprising float formatting on integral prices).
func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return sanitize.Text(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
