package tokenbudget

import (
	"testing"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

func TestEstimateEnglish(t *testing.T) {
	text := "this is sixteen chrs" // 20 chars
	got := Estimate(text, "en")
	if got < 4 || got > 6 {
		t.Errorf("Estimate(en) = %d, want ~5", got)
	}
}

func TestEstimateKoreanDenserThanEnglish(t *testing.T) {
	text := "안녕하세요 반갑습니다 이것은"
	en := Estimate(text, "en")
	ko := Estimate(text, "ko")
	if ko <= en {
		t.Errorf("expected Korean token estimate (%d) to exceed English estimate (%d) for same text", ko, en)
	}
}

func TestEstimateUnknownLocaleFallsBackToEnglish(t *testing.T) {
	text := "abcdefgh"
	if Estimate(text, "xx") != Estimate(text, "en") {
		t.Errorf("unknown locale should fall back to English constant")
	}
}

func TestComputeSectionBudgetsSumsToTotal(t *testing.T) {
	weights := map[string]float64{"actions": 1, "info": 3, "meta": 1}
	budgets := ComputeSectionBudgets(1000, weights)
	sum := 0
	for _, v := range budgets {
		sum += v
	}
	if sum != 1000 {
		t.Errorf("budgets sum to %d, want 1000", sum)
	}
	if budgets["info"] <= budgets["actions"] {
		t.Errorf("info should get a larger share than actions: %+v", budgets)
	}
}

func TestComputeSectionBudgetsZeroTotal(t *testing.T) {
	budgets := ComputeSectionBudgets(0, map[string]float64{"a": 1, "b": 1})
	for k, v := range budgets {
		if v != 0 {
			t.Errorf("budgets[%s] = %d, want 0", k, v)
		}
	}
}

func TestResolveLocaleExplicitConfigWins(t *testing.T) {
	cfg := config.Defaults()
	snap := model.Snapshot{Locale: "ja", URL: "https://example.co.kr/"}
	if got := ResolveLocale(cfg, snap, "fr"); got != "ja" {
		t.Errorf("ResolveLocale = %q, want ja (explicit locale takes priority)", got)
	}
}

func TestResolveLocaleFromHostTLD(t *testing.T) {
	cfg := config.Defaults()
	snap := model.Snapshot{URL: "https://shop.example.co.kr/item/1"}
	if got := ResolveLocale(cfg, snap, ""); got != "ko" {
		t.Errorf("ResolveLocale = %q, want ko", got)
	}
}

func TestResolveLocaleFromHTMLLang(t *testing.T) {
	cfg := config.Defaults()
	snap := model.Snapshot{URL: "https://example.org/"}
	if got := ResolveLocale(cfg, snap, "de-DE"); got != "de" {
		t.Errorf("ResolveLocale = %q, want de", got)
	}
}

func TestResolveLocaleDefault(t *testing.T) {
	cfg := config.Defaults()
	snap := model.Snapshot{URL: "https://example.org/"}
	if got := ResolveLocale(cfg, snap, ""); got != "en" {
		t.Errorf("ResolveLocale = %q, want en default", got)
	}
}

func TestClassifyScript(t *testing.T) {
	cases := []struct {
		r    rune
		want Script
	}{
		{'a', ScriptLatin},
		{'A', ScriptLatin},
		{'한', ScriptHangul},
		{'漢', ScriptHan},
		{'あ', ScriptHiragana},
		{'ア', ScriptKatakana},
		{'д', ScriptCyrillic},
		{'1', ScriptOther},
	}
	for _, c := range cases {
		if got := ClassifyScript(c.r); got != c.want {
			t.Errorf("ClassifyScript(%q) = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestDominantScript(t *testing.T) {
	if got := DominantScript("Hello world this is English text"); got != ScriptLatin {
		t.Errorf("DominantScript = %v, want latin", got)
	}
	if got := DominantScript("안녕하세요 이것은 한국어 텍스트입니다"); got != ScriptHangul {
		t.Errorf("DominantScript = %v, want hangul", got)
	}
}

func TestAlwaysPassesLanguageFilter(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"hi", true},
		{"https://example.com/a", true},
		{"12,345.00", true},
		{"이것은 한국어로 작성된 충분히 긴 문장입니다", false},
	}
	for _, c := range cases {
		if got := AlwaysPassesLanguageFilter(c.line); got != c.want {
			t.Errorf("AlwaysPassesLanguageFilter(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestIsCJKLocale(t *testing.T) {
	for _, l := range []string{"ko", "ja", "zh"} {
		if !IsCJKLocale(l) {
			t.Errorf("IsCJKLocale(%q) = false, want true", l)
		}
	}
	if IsCJKLocale("en") {
		t.Errorf("IsCJKLocale(en) = true, want false")
	}
}
