package assemble

import (
	"strings"
	"testing"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

func TestAgentPromptIncludesHeaderAndInteractables(t *testing.T) {
	pm := model.PageMap{
		Title: "Widget Store", FinalURL: "https://example.com/p/widget", PageType: "product",
		Interactables: []model.Interactable{{Ref: 1, Role: "button", Name: "Add to Cart", Affordances: []model.Affordance{model.AffordanceClick}}},
		PrunedContext: "A great widget.",
		Images:        []string{"https://example.com/widget.png"},
		Stats:         model.Stats{TokensEstimate: 42, Interactables: 1, GenerationMillis: 7},
	}
	out := AgentPrompt(pm)
	if !strings.Contains(out, "Title: Widget Store") || !strings.Contains(out, "[1] button: Add to Cart (click)") {
		t.Errorf("out = %q, missing header or interactable line", out)
	}
	if !strings.Contains(out, "## Actions") || !strings.Contains(out, "## Info") ||
		!strings.Contains(out, "## Images") || !strings.Contains(out, "## Meta") {
		t.Errorf("out = %q, missing a canonical section header", out)
	}
	if !strings.Contains(out, "A great widget.") {
		t.Error("missing pruned content")
	}
	if !strings.Contains(out, "[0] https://example.com/widget.png") {
		t.Error("missing image line")
	}
	if !strings.Contains(out, "Tokens: ~42 | Interactables: 1 | Generation: 7ms") {
		t.Errorf("out = %q, missing meta line", out)
	}
}

func TestAgentPromptBlockedShortCircuitsContent(t *testing.T) {
	pm := model.PageMap{
		Title: "Just a moment...", FinalURL: "https://example.com",
		BlockedInfo:   &model.BlockedInfo{Kind: "cloudflare", Notice: "challenge page"},
		PrunedContext: "should not appear",
	}
	out := AgentPrompt(pm)
	if strings.Contains(out, "should not appear") {
		t.Error("blocked page should not render pruned content")
	}
	if !strings.Contains(out, "BLOCKED: challenge page (cloudflare)") {
		t.Errorf("out = %q, missing blocked notice", out)
	}
}

func TestJSONRoundTripsBasicFields(t *testing.T) {
	pm := model.PageMap{Title: "X", PageType: "product"}
	b, err := JSON(pm)
	if err != nil {
		t.Fatalf("JSON error: %v", err)
	}
	if !strings.Contains(string(b), `"page_type"`) && !strings.Contains(string(b), `"PageType"`) {
		t.Errorf("json = %s, missing page type field", b)
	}
}

func TestCompareDetectsAddedAndRemovedInteractables(t *testing.T) {
	prev := model.PageMap{Interactables: []model.Interactable{{Ref: 1}, {Ref: 2}}}
	next := model.PageMap{Interactables: []model.Interactable{{Ref: 1}, {Ref: 3}}}
	d := Compare(prev, next)
	if len(d.InteractablesAdded) != 1 || d.InteractablesAdded[0] != 3 {
		t.Errorf("added = %v, want [3]", d.InteractablesAdded)
	}
	if len(d.InteractablesGone) != 1 || d.InteractablesGone[0] != 2 {
		t.Errorf("removed = %v, want [2]", d.InteractablesGone)
	}
}

func TestCompareNotesPageTypeChange(t *testing.T) {
	prev := model.PageMap{PageType: "product"}
	next := model.PageMap{PageType: "form_checkout"}
	d := Compare(prev, next)
	if !d.PageTypeChanged || len(d.Notes) == 0 {
		t.Error("expected a page-type-change note")
	}
}

func TestTruncateRespectsMaxLength(t *testing.T) {
	out := truncate(strings.Repeat("a", 100), 50)
	if len(out) != 50 {
		t.Errorf("len(out) = %d, want 50", len(out))
	}
	if !strings.HasSuffix(out, tailMarker) {
		t.Error("truncated output should end with the tail marker")
	}
}
