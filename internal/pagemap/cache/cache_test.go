package cache

import (
	"testing"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := New()
	_, tier := c.Lookup("https://example.com", model.Fingerprint{})
	if tier != TierMiss {
		t.Errorf("tier = %v, want TierMiss", tier)
	}
}

func TestStoreThenLookupTierAOnExactMatch(t *testing.T) {
	c := New()
	fp := model.Fingerprint{StructureHash: "s1", ContentHash: "c1"}
	c.Store("https://example.com", model.PageMap{URL: "https://example.com", Fingerprint: fp})
	_, tier := c.Lookup("https://example.com", fp)
	if tier != TierA {
		t.Errorf("tier = %v, want TierA", tier)
	}
}

func TestLookupTierBWhenContentHashDiffers(t *testing.T) {
	c := New()
	c.Store("https://example.com", model.PageMap{Fingerprint: model.Fingerprint{StructureHash: "s1", ContentHash: "c1"}})
	_, tier := c.Lookup("https://example.com", model.Fingerprint{StructureHash: "s1", ContentHash: "c2"})
	if tier != TierB {
		t.Errorf("tier = %v, want TierB", tier)
	}
}

func TestLookupTierCWhenStructureHashDiffers(t *testing.T) {
	c := New()
	c.Store("https://example.com", model.PageMap{Fingerprint: model.Fingerprint{StructureHash: "s1", ContentHash: "c1"}})
	_, tier := c.Lookup("https://example.com", model.Fingerprint{StructureHash: "s2", ContentHash: "c1"})
	if tier != TierC {
		t.Errorf("tier = %v, want TierC", tier)
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New()
	fp := model.Fingerprint{StructureHash: "s1", ContentHash: "c1"}
	c.Store("https://example.com", model.PageMap{Fingerprint: fp})
	c.Invalidate("https://example.com", ReasonManual)
	_, tier := c.Lookup("https://example.com", fp)
	if tier != TierMiss {
		t.Errorf("tier = %v, want TierMiss after invalidate", tier)
	}
}

func TestStoreEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := New()
	for i := 0; i < capacity+1; i++ {
		url := "https://example.com/" + string(rune('a'+i))
		c.Store(url, model.PageMap{URL: url})
	}
	// the first-inserted entry should have been evicted
	_, tier := c.Lookup("https://example.com/a", model.Fingerprint{})
	if tier != TierMiss {
		t.Error("oldest entry should have been evicted once capacity was exceeded")
	}
}

func TestTemplateStoreAndFetch(t *testing.T) {
	c := New()
	c.StoreTemplate("example.com", "product", Template{PageType: "product"})
	tmpl, ok := c.Template("example.com", "product")
	if !ok || tmpl.PageType != "product" {
		t.Errorf("template = %+v, ok=%v", tmpl, ok)
	}
}
