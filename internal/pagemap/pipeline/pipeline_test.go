package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/cache"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

func TestBuildProductPage(t *testing.T) {
	html := `<html lang="en"><head>
	<script type="application/ld+json">
	{"@type":"Product","name":"Trail Runner","offers":{"price":99.99,"priceCurrency":"USD"}}
	</script>
	</head><body>
	<nav><a href="/">Home</a></nav>
	<main>
	<h1>Trail Runner</h1>
	<p>A great shoe for trail running enthusiasts who want reliable grip.</p>
	<button>Add to Cart</button>
	</main>
	</body></html>`

	snap := model.Snapshot{HTML: []byte(html), URL: "https://shop.example.com/product/trail-runner", FinalURL: "https://shop.example.com/product/trail-runner", Title: "Trail Runner"}
	pm, err := Build(context.Background(), snap, config.Defaults(), cache.New())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if pm.PageType != "product" {
		t.Errorf("PageType = %q, want product", pm.PageType)
	}
	if len(pm.Interactables) == 0 {
		t.Error("expected at least one interactable (Add to Cart button)")
	}
	if pm.PrunedContext == "" {
		t.Error("expected non-empty pruned context")
	}
}

func TestBuildCachesTierAOnRepeatedCall(t *testing.T) {
	html := `<html><body><button>Go</button></body></html>`
	snap := model.Snapshot{
		HTML: []byte(html), URL: "https://example.com", FinalURL: "https://example.com",
		Fingerprint: model.Fingerprint{StructureHash: "s1", ContentHash: "c1"},
	}
	c := cache.New()
	pm1, err := Build(context.Background(), snap, config.Defaults(), c)
	if err != nil {
		t.Fatalf("first Build error: %v", err)
	}
	pm2, err := Build(context.Background(), snap, config.Defaults(), c)
	if err != nil {
		t.Fatalf("second Build error: %v", err)
	}
	if pm1.Stats.GenerationMillis > 0 && pm2.Stats.GenerationMillis != pm1.Stats.GenerationMillis {
		t.Errorf("expected the cached Tier-A result to be returned verbatim, generation times differ: %d vs %d", pm1.Stats.GenerationMillis, pm2.Stats.GenerationMillis)
	}
}

func TestBuildTierBReusesInteractablesAndPageType(t *testing.T) {
	html1 := `<html><body><main><h1>Trail Runner</h1><button>Add to Cart</button></main></body></html>`
	html2 := `<html><body><main><h1>Trail Runner XL</h1><p>Now in stock with free shipping.</p><button>Add to Cart</button></main></body></html>`
	url := "https://shop.example.com/product/trail-runner"
	c := cache.New()

	snap1 := model.Snapshot{
		HTML: []byte(html1), URL: url, FinalURL: url, Title: "Trail Runner",
		Fingerprint: model.Fingerprint{StructureHash: "same-structure", ContentHash: "v1"},
	}
	pm1, err := Build(context.Background(), snap1, config.Defaults(), c)
	if err != nil {
		t.Fatalf("first Build error: %v", err)
	}

	// Same DOM shape, different prose: the cache should report Tier B and
	// the pipeline should reuse pm1's interactables/page type rather than
	// re-running detection and classification.
	snap2 := model.Snapshot{
		HTML: []byte(html2), URL: url, FinalURL: url, Title: "Trail Runner",
		Fingerprint: model.Fingerprint{StructureHash: "same-structure", ContentHash: "v2"},
	}
	pm2, err := Build(context.Background(), snap2, config.Defaults(), c)
	if err != nil {
		t.Fatalf("second Build error: %v", err)
	}
	if pm2.PageType != pm1.PageType {
		t.Errorf("PageType = %q, want reused %q", pm2.PageType, pm1.PageType)
	}
	if len(pm2.Interactables) != len(pm1.Interactables) {
		t.Fatalf("Interactables = %d, want reused count %d", len(pm2.Interactables), len(pm1.Interactables))
	}
	if !strings.Contains(pm2.PrunedContext, "free shipping") {
		t.Error("expected Tier B to still recompress the fresh content, not serve pm1 verbatim")
	}
}

func TestBuildDetectsBlockedChallenge(t *testing.T) {
	html := `<html><body>Checking your browser before accessing this site.</body></html>`
	snap := model.Snapshot{HTML: []byte(html), URL: "https://example.com", FinalURL: "https://example.com"}
	pm, err := Build(context.Background(), snap, config.Defaults(), nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if pm.BlockedInfo == nil || pm.BlockedInfo.Kind != "cloudflare" {
		t.Errorf("BlockedInfo = %+v, want cloudflare", pm.BlockedInfo)
	}
}

func TestBuildTimeoutExceeded(t *testing.T) {
	cfg := config.Defaults()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-canceled context
	snap := model.Snapshot{HTML: []byte(`<html></html>`), URL: "https://example.com", FinalURL: "https://example.com"}
	_, err := Build(ctx, snap, cfg, nil)
	if err == nil {
		t.Fatal("expected a timeout error from an already-canceled context")
	}
}
