// Package classify is C6: a weighted-voting page-type classifier plus the
// captcha/WAF short-circuit check that runs ahead of it.
package classify

import (
	"strings"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

// PageType is one of the page archetypes a schema-aware compressor exists
// for.
type PageType string

const (
	PageProduct      PageType = "product"
	PageArticleWiki  PageType = "article_wiki"
	PageVideo        PageType = "video"
	PageNewsPortal   PageType = "news_portal"
	PageFormCheckout PageType = "form_checkout"
	PageDashboard    PageType = "dashboard_default"
	PageBlocked      PageType = "blocked"
)

// blockedSignature is one (vendor, needle) pair checked against the HTML
// body and title when short-circuiting to PageBlocked.
type blockedSignature struct {
	kind   string
	needle string
}

var blockedSignatures = []blockedSignature{
	{"cloudflare", "checking your browser before accessing"},
	{"cloudflare", "cf-browser-verification"},
	{"recaptcha", "g-recaptcha"},
	{"recaptcha", "recaptcha/api.js"},
	{"turnstile", "cf-turnstile"},
	{"hcaptcha", "h-captcha"},
	{"datadome", "datadome"},
	{"perimeterx", "_px-captcha"},
	{"perimeterx", "perimeterx"},
	{"imperva", "incapsula incident id"},
	{"imperva", "_incap_ls"},
}

// DetectBlocked short-circuits classification when a known challenge
// vendor's signature is present in the page body or title. VerifyRef is
// left 0; the caller fills it in once interactables are known, if a
// verification control (e.g. the Turnstile checkbox) was detected among
// them.
func DetectBlocked(bodyText, title string) *model.BlockedInfo {
	haystack := strings.ToLower(bodyText + " " + title)
	for _, sig := range blockedSignatures {
		if strings.Contains(haystack, sig.needle) {
			return &model.BlockedInfo{
				Kind:   sig.kind,
				Notice: "page appears to be a bot-verification challenge (" + sig.kind + ")",
			}
		}
	}
	return nil
}

// signal is one weighted vote toward a PageType.
type signal struct {
	pageType PageType
	weight   float64
}

// Signals is the raw evidence the classifier votes over: URL path,
// dominant JSON-LD schema name, meta og:type, and coarse DOM shape counts.
type Signals struct {
	URL             string
	SchemaName      string
	OGType          string
	FormCount       int
	InputCount      int
	VideoCount      int
	ArticleBodyLen  int
	ProductPriceSet bool
}

// schemaOverrides pins a handful of schema.org types directly to a
// PageType: these are stronger evidence than any heuristic vote.
var schemaOverrides = map[string]PageType{
	"WikiArticle":  PageArticleWiki,
	"VideoObject":  PageVideo,
	"Product":      PageProduct,
	"NewsArticle":  PageNewsPortal,
	"Article":      PageArticleWiki,
	"BlogPosting":  PageArticleWiki,
}

var urlPathSignals = []struct {
	needle   string
	pageType PageType
	weight   float64
}{
	{"/product/", PageProduct, 3},
	{"/p/", PageProduct, 2},
	{"/item/", PageProduct, 2},
	{"/wiki/", PageArticleWiki, 3},
	{"/article/", PageArticleWiki, 2},
	{"/news/", PageNewsPortal, 3},
	{"/watch", PageVideo, 3},
	{"/video/", PageVideo, 2},
	{"/checkout", PageFormCheckout, 3},
	{"/cart", PageFormCheckout, 2},
	{"/signup", PageFormCheckout, 2},
	{"/login", PageFormCheckout, 2},
	{"/dashboard", PageDashboard, 3},
	{"/admin", PageDashboard, 2},
}

var ogTypeSignals = map[string]signal{
	"product":      {PageProduct, 3},
	"article":      {PageArticleWiki, 3},
	"video.other":  {PageVideo, 3},
	"video.movie":  {PageVideo, 3},
	"website":      {PageArticleWiki, 0.5},
}

// Classify assigns the strongest-voted PageType. A schema override wins
// outright; otherwise URL, og:type, and DOM-shape signals accumulate
// weighted votes and the highest total wins, defaulting to
// PageDashboard when nothing clears a minimum threshold.
func Classify(s Signals) PageType {
	if pt, ok := schemaOverrides[s.SchemaName]; ok {
		return pt
	}

	votes := map[PageType]float64{}
	urlLower := strings.ToLower(s.URL)
	for _, sig := range urlPathSignals {
		if strings.Contains(urlLower, sig.needle) {
			votes[sig.pageType] += sig.weight
		}
	}
	if sig, ok := ogTypeSignals[strings.ToLower(s.OGType)]; ok {
		votes[sig.pageType] += sig.weight
	}
	if s.FormCount > 0 && s.InputCount >= 3 {
		votes[PageFormCheckout] += 2
	}
	if s.VideoCount > 0 {
		votes[PageVideo] += 1.5
	}
	if s.ProductPriceSet {
		votes[PageProduct] += 2
	}
	if s.ArticleBodyLen > 500 {
		votes[PageArticleWiki] += 1
	}

	best := PageDashboard
	bestWeight := 0.0
	// Deterministic tie-break order.
	for _, pt := range []PageType{PageFormCheckout, PageProduct, PageVideo, PageNewsPortal, PageArticleWiki, PageDashboard} {
		if votes[pt] > bestWeight {
			bestWeight = votes[pt]
			best = pt
		}
	}
	return best
}
