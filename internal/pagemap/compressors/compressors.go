// Package compressors is C7: per-page-type rendering of the pruned chunk
// set into final prose. Product, article/wiki and video pages get a
// metadata summary, news portals get a numbered headline list pulled from
// their heading chunks, and every page type then gets the shared text-line
// fallback over whatever chunk budget remains. The news-portal headline list
// is the only page-type-specific pass over the chunks; form/checkout,
// blocked and the remaining page types get the fallback alone.
package compressors

import (
	"fmt"
	"strings"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/classify"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/pruning"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/tokenbudget"
)

// Compress renders metadata + pruned chunks into the final prose context
// for the given page type, respecting budget (in tokens) for locale.
func Compress(pt classify.PageType, meta model.Metadata, chunks []model.HtmlChunk, locale string, budget int, fallback pruning.Fallback) string {
	summary, consumed, chunks := metadataSummary(pt, meta, chunks, locale, budget)
	remaining := budget - consumed
	if remaining < 0 {
		remaining = 0
	}

	body, warnings := pruning.Compress(chunks, remaining, locale, fallback)
	_ = warnings // discarded: these language-filter and MCG warnings do not reach Stats.PruningWarnings

	if summary == "" {
		return body
	}
	if body == "" {
		return summary
	}
	return summary + "\n\n" + body
}

// metadataSummary returns the rendered summary, its token cost, and the
// chunk set still available to the shared text-line fallback — the news
// portal compressor consumes its heading chunks into a numbered list here
// so they aren't rendered a second time by the fallback pass.
func metadataSummary(pt classify.PageType, meta model.Metadata, chunks []model.HtmlChunk, locale string, budget int) (string, int, []model.HtmlChunk) {
	var lines []string
	switch pt {
	case classify.PageProduct:
		lines = productSummary(meta)
	case classify.PageArticleWiki:
		lines = articleSummary(meta)
	case classify.PageVideo:
		lines = videoSummary(meta)
	case classify.PageNewsPortal:
		var headlines []string
		headlines, chunks = newsPortalHeadlines(chunks)
		lines = headlines
	case classify.PageFormCheckout:
		lines = nil // forms are carried entirely through interactables, no metadata prose
	case classify.PageBlocked:
		lines = nil
	default:
		lines = nil
	}
	if len(lines) == 0 {
		return "", 0, chunks
	}
	text := strings.Join(lines, "\n")
	return text, tokenbudget.Estimate(text, locale), chunks
}

func productSummary(meta model.Metadata) []string {
	var lines []string
	if name, ok := meta.Get("name"); ok {
		lines = append(lines, fmt.Sprintf("Product: %v", name))
	}
	if brand, ok := meta.Get("brand"); ok {
		lines = append(lines, fmt.Sprintf("Brand: %v", brand))
	}
	price, hasPrice := meta.Get("price")
	currency, hasCurrency := meta.Get("currency")
	switch {
	case hasPrice && hasCurrency:
		lines = append(lines, fmt.Sprintf("Price: %v %v", price, currency))
	case hasPrice:
		lines = append(lines, fmt.Sprintf("Price: %v", price))
	}
	if avail, ok := meta.Get("availability"); ok {
		lines = append(lines, fmt.Sprintf("Availability: %v", avail))
	}
	rating, hasRating := meta.Get("rating")
	count, hasCount := meta.Get("reviewCount")
	switch {
	case hasRating && hasCount:
		lines = append(lines, fmt.Sprintf("Rating: %v (%v reviews)", rating, count))
	case hasRating:
		lines = append(lines, fmt.Sprintf("Rating: %v", rating))
	}
	return lines
}

func articleSummary(meta model.Metadata) []string {
	var lines []string
	if h, ok := meta.Get("headline"); ok {
		lines = append(lines, fmt.Sprintf("Headline: %v", h))
	}
	if t, ok := meta.Get("title"); ok {
		lines = append(lines, fmt.Sprintf("Title: %v", t))
	}
	if a, ok := meta.Get("author"); ok {
		lines = append(lines, fmt.Sprintf("Author: %v", a))
	}
	if d, ok := meta.Get("datePublished"); ok {
		lines = append(lines, fmt.Sprintf("Published: %v", d))
	}
	if s, ok := meta.Get("summary"); ok {
		lines = append(lines, fmt.Sprintf("Summary: %v", s))
	}
	return lines
}

func videoSummary(meta model.Metadata) []string {
	var lines []string
	if ch, ok := meta.Get("channel"); ok {
		lines = append(lines, fmt.Sprintf("Channel: %v", ch))
	}
	if d, ok := meta.Get("duration"); ok {
		lines = append(lines, fmt.Sprintf("Duration: %v", d))
	}
	vc, hasVC := meta.Get("view_count")
	lc, hasLC := meta.Get("like_count")
	switch {
	case hasVC && hasLC:
		lines = append(lines, fmt.Sprintf("%s views, %s likes", formatCount(vc), formatCount(lc)))
	case hasVC:
		lines = append(lines, fmt.Sprintf("%s views", formatCount(vc)))
	}
	return lines
}

// formatCount renders a raw interaction count with a K/M suffix above
// 1,000/1,000,000 (1500000 -> "1.5M"); anything smaller, or a non-numeric
// value, is rendered as-is so a malformed metadata field degrades
// gracefully instead of panicking.
func formatCount(v any) string {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case float64:
		n = t
	default:
		return fmt.Sprintf("%v", v)
	}
	switch {
	case n >= 1_000_000:
		return trimTrailingZero(n/1_000_000) + "M"
	case n >= 1_000:
		return trimTrailingZero(n/1_000) + "K"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func trimTrailingZero(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	return strings.TrimSuffix(strings.TrimSuffix(s, "0"), ".")
}

// newsPortalHeadlines pulls heading-type chunks into a numbered list (the
// portal's story index) and returns the remaining chunks for the shared
// fallback pass, so headline text isn't duplicated in the body.
func newsPortalHeadlines(chunks []model.HtmlChunk) ([]string, []model.HtmlChunk) {
	var headlines []string
	rest := make([]model.HtmlChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Type == model.ChunkHeading {
			headlines = append(headlines, fmt.Sprintf("%d. %s", len(headlines)+1, c.Text))
			continue
		}
		rest = append(rest, c)
	}
	return headlines, rest
}
