package classify

import "testing"

func TestDetectBlockedCloudflare(t *testing.T) {
	info := DetectBlocked("Checking your browser before accessing example.com", "Just a moment...")
	if info == nil || info.Kind != "cloudflare" {
		t.Fatalf("got %+v, want cloudflare", info)
	}
}

func TestDetectBlockedTurnstile(t *testing.T) {
	info := DetectBlocked(`<div class="cf-turnstile"></div>`, "")
	if info == nil || info.Kind != "turnstile" {
		t.Fatalf("got %+v, want turnstile", info)
	}
}

func TestDetectBlockedNoneOnOrdinaryPage(t *testing.T) {
	if info := DetectBlocked("Welcome to our store", "Home"); info != nil {
		t.Errorf("got %+v, want nil", info)
	}
}

func TestClassifySchemaOverrideWins(t *testing.T) {
	pt := Classify(Signals{URL: "https://example.com/checkout", SchemaName: "WikiArticle"})
	if pt != PageArticleWiki {
		t.Errorf("pt = %v, want article_wiki (schema override beats URL heuristic)", pt)
	}
}

func TestClassifyProductByURL(t *testing.T) {
	pt := Classify(Signals{URL: "https://shop.example.com/product/widget-9000"})
	if pt != PageProduct {
		t.Errorf("pt = %v, want product", pt)
	}
}

func TestClassifyFormCheckoutByDOMShape(t *testing.T) {
	pt := Classify(Signals{URL: "https://example.com/onboarding", FormCount: 1, InputCount: 5})
	if pt != PageFormCheckout {
		t.Errorf("pt = %v, want form_checkout", pt)
	}
}

func TestClassifyDefaultsToDashboard(t *testing.T) {
	pt := Classify(Signals{URL: "https://example.com/settings/profile"})
	if pt != PageDashboard {
		t.Errorf("pt = %v, want dashboard_default default", pt)
	}
}
