package compressors

import (
	"strings"
	"testing"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/classify"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/pruning"
)

func TestCompressProductSummaryLeadsOutput(t *testing.T) {
	meta := model.Metadata{SchemaName: "Product", Fields: map[string]any{
		"name": "Widget", "price": 19.99, "currency": "USD",
	}}
	out := Compress(classify.PageProduct, meta, nil, "en", 500, pruning.Fallback{})
	if !strings.HasPrefix(out, "Product: Widget") {
		t.Errorf("out = %q, want it to start with the product summary", out)
	}
	if !strings.Contains(out, "Price: 19.99 USD") {
		t.Errorf("out = %q, want price line", out)
	}
}

func TestCompressProductPriceZeroRendersAsZero(t *testing.T) {
	meta := model.Metadata{Fields: map[string]any{"price": 0.0, "currency": "USD"}}
	out := Compress(classify.PageProduct, meta, nil, "en", 500, pruning.Fallback{})
	if !strings.Contains(out, "Price: 0 USD") {
		t.Errorf("out = %q, want a genuine zero price to render, not be omitted", out)
	}
}

func TestCompressFormCheckoutHasNoMetadataProse(t *testing.T) {
	meta := model.Metadata{Fields: map[string]any{"name": "irrelevant"}}
	chunks := []model.HtmlChunk{{Type: model.ChunkForm, Text: "Email address field", Weight: 2}}
	out := Compress(classify.PageFormCheckout, meta, chunks, "en", 500, pruning.Fallback{})
	if strings.Contains(out, "irrelevant") {
		t.Error("form_checkout should not render generic metadata fields as prose")
	}
	if !strings.Contains(out, "Email address field") {
		t.Error("form_checkout should still render the form chunk body")
	}
}

func TestCompressVideoSummary(t *testing.T) {
	meta := model.Metadata{Fields: map[string]any{"channel": "Acme Channel", "view_count": 1500000}}
	out := Compress(classify.PageVideo, meta, nil, "en", 500, pruning.Fallback{})
	if !strings.Contains(out, "Channel: Acme Channel") || !strings.Contains(out, "1.5M views") {
		t.Errorf("out = %q, want channel and a K/M-suffixed view count", out)
	}
}

func TestCompressVideoSummarySmallCountsUnsuffixed(t *testing.T) {
	meta := model.Metadata{Fields: map[string]any{"view_count": 42, "like_count": 7}}
	out := Compress(classify.PageVideo, meta, nil, "en", 500, pruning.Fallback{})
	if !strings.Contains(out, "42 views, 7 likes") {
		t.Errorf("out = %q, want small counts rendered without a suffix", out)
	}
}

func TestCompressNewsPortalNumbersHeadlines(t *testing.T) {
	chunks := []model.HtmlChunk{
		{Type: model.ChunkHeading, Text: "Markets rally on rate cut", Weight: 5},
		{Type: model.ChunkParagraph, Text: "Stocks closed higher across the board today.", Weight: 3},
		{Type: model.ChunkHeading, Text: "Local team wins championship", Weight: 4},
	}
	out := Compress(classify.PageNewsPortal, model.Metadata{}, chunks, "en", 500, pruning.Fallback{})
	if !strings.Contains(out, "1. Markets rally on rate cut") {
		t.Errorf("out = %q, want numbered headline 1", out)
	}
	if !strings.Contains(out, "2. Local team wins championship") {
		t.Errorf("out = %q, want numbered headline 2", out)
	}
	if !strings.Contains(out, "Stocks closed higher") {
		t.Errorf("out = %q, want the remaining paragraph chunk still rendered by the fallback pass", out)
	}
}
