package structdata

import (
	"strings"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

// getString reads the first present key whose value (or whose nested
// "name" field, for object-shaped values like {"@type":"Brand","name":"Acme"})
// resolves to a non-empty sanitized string.
func getString(fields map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if s := anyToString(v); s != "" {
			return s, true
		}
		if m, ok := v.(map[string]any); ok {
			if name, ok := m["name"]; ok {
				if s := anyToString(name); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

// getNestedMap reads a nested object field, taking the first element if
// the field is an array (JSON-LD allows either shape for offers/author/…).
func getNestedMap(fields map[string]any, key string) map[string]any {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// getFloat reads a numeric field, accepting either a JSON number or a
// string in US/European decimal notation. An explicit ok=true/false is
// returned rather than a zero-value sentinel, so callers preserve price=0.
func getFloat(fields map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case string:
			if f, ok := ToFloat(t); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func getInt(fields map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int(t + 0.5), true
		case string:
			if n, ok := ToInt(t); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// cleanAvailability strips the schema.org namespace prefix from values
// like "https://schema.org/InStock", leaving just "InStock".
func cleanAvailability(s string) string {
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// getInteractionCount finds an InteractionCounter entry matching actionType
// (e.g. "WatchAction", "LikeAction") inside a VideoObject's
// interactionStatistic field.
func getInteractionCount(fields map[string]any, actionType string) (int, bool) {
	raw, ok := fields["interactionStatistic"]
	if !ok {
		return 0, false
	}
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		list = []any{t}
	default:
		return 0, false
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		it, _ := m["interactionType"].(string)
		if strings.Contains(it, actionType) {
			if v, ok := getInt(m, "userInteractionCount"); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func formatAddress(addr map[string]any) (string, bool) {
	var parts []string
	for _, k := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode", "addressCountry"} {
		if s, ok := getString(addr, k); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ", "), true
}

// parseProduct implements the Product schema contract: name, price+currency,
// rating/reviewCount, brand, availability, image. Price uses an explicit
// presence check (not `price || fallback`) so a genuine price=0 survives.
func parseProduct(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if name, ok := getString(fields, "name"); ok {
		out["name"] = name
	}
	if offers := getNestedMap(fields, "offers"); offers != nil {
		if price, ok := getFloat(offers, "price", "lowPrice"); ok {
			out["price"] = price
		}
		if cur, ok := getString(offers, "priceCurrency"); ok {
			out["currency"] = cur
		}
		if avail, ok := getString(offers, "availability"); ok {
			out["availability"] = cleanAvailability(avail)
		}
	} else {
		// Microdata commonly places price/priceCurrency directly on the
		// Product item rather than nesting an Offer.
		if price, ok := getFloat(fields, "price", "lowPrice"); ok {
			out["price"] = price
		}
		if cur, ok := getString(fields, "priceCurrency"); ok {
			out["currency"] = cur
		}
		if avail, ok := getString(fields, "availability"); ok {
			out["availability"] = cleanAvailability(avail)
		}
	}
	if rating := getNestedMap(fields, "aggregateRating"); rating != nil {
		if rv, ok := getFloat(rating, "ratingValue"); ok {
			out["rating"] = rv
		}
		if rc, ok := getInt(rating, "reviewCount", "ratingCount"); ok {
			out["reviewCount"] = rc
		}
	}
	if brand, ok := getString(fields, "brand"); ok {
		out["brand"] = brand
	}
	if img, ok := getString(fields, "image"); ok {
		out["image"] = img
	}
	return model.Metadata{Fields: out}
}

// parseArticle covers Article/NewsArticle/BlogPosting: headline, author,
// datePublished, body.
func parseArticle(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if h, ok := getString(fields, "headline", "name"); ok {
		out["headline"] = h
	}
	if a, ok := getString(fields, "author"); ok {
		out["author"] = a
	}
	if d, ok := getString(fields, "datePublished"); ok {
		out["datePublished"] = d
	}
	if b, ok := getString(fields, "articleBody"); ok {
		out["body"] = b
	}
	if img, ok := getString(fields, "image"); ok {
		out["image"] = img
	}
	return model.Metadata{Fields: out}
}

// parseVideo covers VideoObject: channel, duration, upload_date, view_count,
// like_count, thumbnail_url.
func parseVideo(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if ch, ok := getString(fields, "author", "publisher"); ok {
		out["channel"] = ch
	}
	if dur, ok := getString(fields, "duration"); ok {
		out["duration"] = dur
	}
	if ud, ok := getString(fields, "uploadDate"); ok {
		out["upload_date"] = ud
	}
	if vc, ok := getInteractionCount(fields, "WatchAction"); ok {
		out["view_count"] = vc
	}
	if lc, ok := getInteractionCount(fields, "LikeAction"); ok {
		out["like_count"] = lc
	}
	if thumb, ok := getString(fields, "thumbnailUrl"); ok {
		out["thumbnail_url"] = thumb
	}
	return model.Metadata{Fields: out}
}

// parseBreadcrumbList flattens itemListElement into an ordered name list.
func parseBreadcrumbList(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if items, ok := fields["itemListElement"].([]any); ok {
		var names []string
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if name, ok := getString(m, "name"); ok {
				names = append(names, name)
				continue
			}
			if item := getNestedMap(m, "item"); item != nil {
				if name, ok := getString(item, "name"); ok {
					names = append(names, name)
				}
			}
		}
		if len(names) > 0 {
			out["items"] = names
		}
	}
	return model.Metadata{Fields: out}
}

// parseFAQPage flattens mainEntity Question/acceptedAnswer pairs.
func parseFAQPage(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if qs, ok := fields["mainEntity"].([]any); ok {
		var pairs []map[string]string
		for _, q := range qs {
			m, ok := q.(map[string]any)
			if !ok {
				continue
			}
			question, _ := getString(m, "name")
			if question == "" {
				continue
			}
			answer := ""
			if ans := getNestedMap(m, "acceptedAnswer"); ans != nil {
				answer, _ = getString(ans, "text")
			}
			pairs = append(pairs, map[string]string{"question": question, "answer": answer})
		}
		if len(pairs) > 0 {
			out["faqs"] = pairs
		}
	}
	return model.Metadata{Fields: out}
}

// parseEvent covers Event: name, startDate, location, price/currency.
func parseEvent(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if name, ok := getString(fields, "name"); ok {
		out["name"] = name
	}
	if sd, ok := getString(fields, "startDate"); ok {
		out["startDate"] = sd
	}
	if loc := getNestedMap(fields, "location"); loc != nil {
		if ln, ok := getString(loc, "name"); ok {
			out["location"] = ln
		}
	}
	if offers := getNestedMap(fields, "offers"); offers != nil {
		if price, ok := getFloat(offers, "price"); ok {
			out["price"] = price
		}
		if cur, ok := getString(offers, "priceCurrency"); ok {
			out["currency"] = cur
		}
	}
	return model.Metadata{Fields: out}
}

// parseLocalBusiness covers LocalBusiness: name, address, telephone,
// priceRange, rating.
func parseLocalBusiness(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if name, ok := getString(fields, "name"); ok {
		out["name"] = name
	}
	if addr := getNestedMap(fields, "address"); addr != nil {
		if full, ok := formatAddress(addr); ok {
			out["address"] = full
		}
	} else if addr, ok := getString(fields, "address"); ok {
		out["address"] = addr
	}
	if tel, ok := getString(fields, "telephone"); ok {
		out["telephone"] = tel
	}
	if pr, ok := getString(fields, "priceRange"); ok {
		out["priceRange"] = pr
	}
	if rating := getNestedMap(fields, "aggregateRating"); rating != nil {
		if rv, ok := getFloat(rating, "ratingValue"); ok {
			out["rating"] = rv
		}
	}
	return model.Metadata{Fields: out}
}

// parseWikiArticle covers the WikiArticle schema override: title, summary,
// body.
func parseWikiArticle(fields map[string]any) model.Metadata {
	out := map[string]any{}
	if t, ok := getString(fields, "name", "headline"); ok {
		out["title"] = t
	}
	if s, ok := getString(fields, "abstract", "description"); ok {
		out["summary"] = s
	}
	if b, ok := getString(fields, "articleBody", "text"); ok {
		out["body"] = b
	}
	return model.Metadata{Fields: out}
}
