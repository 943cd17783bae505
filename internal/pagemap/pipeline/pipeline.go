// Package pipeline is the single public entry point: Build wires C1-C9
// together into one pipeline pass over a driver-supplied Snapshot,
// checking for cancellation between stages and enforcing the overall
// per-call deadline.
package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/assemble"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/cache"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/classify"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/compressors"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	pmerrors "github.com/Retio-ai/Retio-pagemap/internal/pagemap/errors"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/htmlnorm"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/interactive"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/pruning"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/sanitize"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/structdata"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/tokenbudget"
)

// defaultContentBudget is the token budget handed to the compressor when
// the caller doesn't override it via Config in the future; it covers the
// prose content only, interactables are never truncated by it.
const defaultContentBudget = 3000

// rawHTMLHeadBytes bounds how much of the raw snapshot the minimum-
// content-guarantee cascade's final fallback rung will quote.
const rawHTMLHeadBytes = 2000

// Build runs one full pipeline pass: normalize → extract → detect →
// classify → prune/compress → assemble, consulting and updating cache for
// repeated passes against the same URL.
func Build(ctx context.Context, snapshot model.Snapshot, cfg config.Config, c *cache.Cache) (*model.PageMap, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, cfg.PipelineTimeout)
	defer cancel()

	var tierB *model.PageMap
	if c != nil {
		switch pm, tier := c.Lookup(snapshot.FinalURL, snapshot.Fingerprint); tier {
		case cache.TierA:
			return &pm, nil
		case cache.TierB:
			tierB = &pm
		}
	}

	if err := stageDeadline(ctx, "normalize"); err != nil {
		return nil, err
	}
	doc, err := htmlnorm.Normalize(snapshot.HTML, cfg)
	if err != nil {
		return nil, err
	}

	locale := tokenbudget.ResolveLocale(cfg, snapshot, doc.Lang)

	if err := stageDeadline(ctx, "extract"); err != nil {
		return nil, err
	}
	extracted := structdata.Extract(doc)

	host := hostOf(snapshot.FinalURL)

	// Tier B (§4.9): the DOM structure fingerprint is unchanged, only
	// content differs, so the C4 interactable table and the C6
	// classification are still valid — reuse them and skip straight to
	// re-running pruning/compression (C5) over the fresh content. Tier
	// miss/C re-run C4 and C6 in full, since structure may have changed.
	var detected interactive.Result
	var blocked *model.BlockedInfo
	var pageType classify.PageType
	if tierB != nil {
		detected = interactive.Result{Interactables: tierB.Interactables}
		blocked = tierB.BlockedInfo
		pageType = classify.PageType(tierB.PageType)
	} else {
		if err := stageDeadline(ctx, "detect"); err != nil {
			return nil, err
		}
		detected = interactive.Detect(doc, snapshot)

		if err := stageDeadline(ctx, "classify"); err != nil {
			return nil, err
		}
		// Raw markup, not text content: several signatures are class names,
		// ids or script URLs that text extraction would strip.
		bodyText := string(snapshot.HTML)
		blocked = classify.DetectBlocked(bodyText, snapshot.Title)
		if blocked != nil {
			blocked.VerifyRef = findVerifyRef(detected.Interactables)
		}

		pageType = classify.PageBlocked
		if blocked == nil {
			signals := buildSignals(snapshot.URL, doc.Root, extracted.Metadata)
			pageType = classify.Classify(signals)
		}

		// The fingerprint missed entirely (a new URL on a host we've built
		// before) and detection came back empty: fall back to the last
		// known interactable shape for this host/page-type rather than
		// shipping an agent prompt with zero actions.
		if c != nil && blocked == nil && len(detected.Interactables) == 0 && host != "" {
			if tmpl, ok := c.Template(host, string(pageType)); ok {
				detected.Interactables = tmpl.Interactables
			}
		}
	}

	if err := stageDeadline(ctx, "prune"); err != nil {
		return nil, err
	}
	pruning.StripAttributes(doc.Root)
	removed := pruning.RemoveScriptIslands(doc.Root)
	referenced := referencedXPaths(detected.Interactables)
	removed += pruning.SemanticFilter(doc.Root, "", referenced)
	chunks := pruning.Chunk(doc.Root, "")

	if err := stageDeadline(ctx, "compress"); err != nil {
		return nil, err
	}
	fallback := pruning.Fallback{
		RawHTMLHead: string(headBytes(snapshot.HTML, rawHTMLHeadBytes)),
	}
	if desc, ok := extracted.Metadata.Get("description"); ok {
		if s, ok := desc.(string); ok {
			fallback.OGDescription = s
		}
	}
	prunedText := compressors.Compress(pageType, extracted.Metadata, chunks, locale, defaultContentBudget, fallback)

	warnings := append([]string{}, detected.Warnings...)
	warnings = append(warnings, extracted.Warnings...)

	pm := &model.PageMap{
		URL:           snapshot.URL,
		FinalURL:      snapshot.FinalURL,
		Title:         sanitize.Text(snapshot.Title),
		Locale:        locale,
		PageType:      string(pageType),
		SchemaName:    extracted.Metadata.SchemaName,
		BlockedInfo:   blocked,
		Interactables: detected.Interactables,
		PrunedContext: prunedText,
		Images:        extracted.Images,
		Metadata:      extracted.Metadata,
		Fingerprint:   snapshot.Fingerprint,
		Stats: model.Stats{
			TokensEstimate:   tokenbudget.Estimate(prunedText, locale),
			Interactables:    len(detected.Interactables),
			GenerationMillis: time.Since(start).Milliseconds(),
			RemovedNodes:     removed,
			PruningWarnings:  warnings,
			RoleCounts:       roleCounts(detected.Interactables),
		},
	}

	if c != nil {
		c.Store(snapshot.FinalURL, *pm)
		if blocked == nil && host != "" {
			c.StoreTemplate(host, string(pageType), cache.Template{
				PageType:      string(pageType),
				Interactables: detected.Interactables,
				SchemaName:    extracted.Metadata.SchemaName,
			})
		}
	}
	return pm, nil
}

// hostOf extracts the hostname from a page URL for template-cache keying;
// an unparseable URL yields "" and template lookups/stores are skipped.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// stageDeadline reports a PipelineTimeout error if ctx's deadline has
// already passed before entering the named stage.
func stageDeadline(ctx context.Context, stage string) error {
	select {
	case <-ctx.Done():
		return pmerrors.Timeout(stage)
	default:
		return nil
	}
}

func referencedXPaths(interactables []model.Interactable) []string {
	out := make([]string, 0, len(interactables))
	for _, i := range interactables {
		out = append(out, i.ParentXPath)
	}
	return out
}

func findVerifyRef(interactables []model.Interactable) int {
	for _, i := range interactables {
		name := strings.ToLower(i.Name)
		if strings.Contains(name, "verify") || strings.Contains(name, "i'm not a robot") || strings.Contains(name, "i am not a robot") {
			return i.Ref
		}
	}
	return 0
}

func roleCounts(interactables []model.Interactable) map[string]int {
	counts := map[string]int{}
	for _, i := range interactables {
		counts[i.Role]++
	}
	return counts
}

func headBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// buildSignals derives classify.Signals from the normalized tree's coarse
// shape: form/input counts, video presence, and product-price presence.
func buildSignals(url string, root *html.Node, meta model.Metadata) classify.Signals {
	s := classify.Signals{URL: url, SchemaName: meta.SchemaName}
	if ogType, ok := meta.Get("og:type"); ok {
		if str, ok := ogType.(string); ok {
			s.OGType = str
		}
	}
	if _, ok := meta.Get("price"); ok {
		s.ProductPriceSet = true
	}
	if body, ok := meta.Get("body"); ok {
		if str, ok := body.(string); ok {
			s.ArticleBodyLen = len(str)
		}
	}
	countShape(root, &s)
	return s
}

func countShape(n *html.Node, s *classify.Signals) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "form":
			s.FormCount++
		case "input", "select", "textarea":
			s.InputCount++
		case "video":
			s.VideoCount++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		countShape(c, s)
	}
}

// AssembleAgentPrompt and AssembleJSON are thin re-exports so callers of
// pipeline.Build don't need to import assemble directly for the common
// case.
func AssembleAgentPrompt(pm *model.PageMap) string { return assemble.AgentPrompt(*pm) }
func AssembleJSON(pm *model.PageMap) ([]byte, error) { return assemble.JSON(*pm) }
