// Package tokenbudget is C1: locale-aware char↔token estimates and
// per-section budget computation. Every budget elsewhere in
// the pipeline flows through this package so CJK content is not silently
// starved relative to English.
package tokenbudget

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

// charsPerToken is the per-locale chars-per-token constant.
var charsPerToken = map[string]float64{
	"en": 4.0,
	"ko": 0.6,
	"ja": 0.7,
	"zh": 0.7,
	"de": 3.6,
	"fr": 3.8,
	"es": 3.9,
	"it": 3.9,
	"ru": 3.5,
}

const defaultCharsPerToken = 4.0

// Estimate converts text length into a token-count estimate for the given
// locale, using the locale's chars_per_token constant. Falls back to the
// English constant for unrecognized locales.
func Estimate(text, locale string) int {
	if text == "" {
		return 0
	}
	cpt, ok := charsPerToken[locale]
	if !ok {
		cpt = defaultCharsPerToken
	}
	n := float64(len([]rune(text))) / cpt
	if n < 0 {
		n = 0
	}
	// round half up
	return int(n + 0.5)
}

// MaxChars returns the maximum rune count that fits within tokens for the
// given locale, the inverse of Estimate — used to truncate a single chunk
// of text down to a remaining budget instead of dropping it outright.
func MaxChars(tokens int, locale string) int {
	if tokens <= 0 {
		return 0
	}
	cpt, ok := charsPerToken[locale]
	if !ok {
		cpt = defaultCharsPerToken
	}
	return int(float64(tokens) * cpt)
}

// ComputeSectionBudgets splits a total token budget across named sections
// proportional to the given weights.
func ComputeSectionBudgets(total int, weights map[string]float64) map[string]int {
	out := make(map[string]int, len(weights))
	if total <= 0 || len(weights) == 0 {
		for k := range weights {
			out[k] = 0
		}
		return out
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return out
	}
	// Deterministic iteration order for remainder distribution.
	names := make([]string, 0, len(weights))
	for k := range weights {
		names = append(names, k)
	}
	sort.Strings(names)

	allocated := 0
	for i, name := range names {
		if i == len(names)-1 {
			out[name] = total - allocated // last section absorbs rounding remainder
			continue
		}
		share := int(float64(total) * weights[name] / sum)
		out[name] = share
		allocated += share
	}
	return out
}

// ResolveLocale applies the resolution order: explicit config → URL
// host-to-locale map (TLD + well-known domain table) → <html lang> →
// default.
func ResolveLocale(cfg config.Config, snapshot model.Snapshot, htmlLangAttr string) string {
	if snapshot.Locale != "" {
		return snapshot.Locale
	}
	if loc := localeFromHost(snapshot.FinalURL, cfg.LocaleTable); loc != "" {
		return loc
	}
	if snapshot.URL != "" {
		if loc := localeFromHost(snapshot.URL, cfg.LocaleTable); loc != "" {
			return loc
		}
	}
	if htmlLangAttr != "" {
		if loc := normalizeLangAttr(htmlLangAttr); loc != "" {
			return loc
		}
	}
	if cfg.DefaultLocale != "" {
		return cfg.DefaultLocale
	}
	return "en"
}

func normalizeLangAttr(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// localeFromHost walks the host's labels from most to least specific
// (longest suffix match wins) against the locale table.
func localeFromHost(rawURL string, table []config.LocaleEntry) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	var best string
	bestLen := -1
	for _, entry := range table {
		suffix := strings.ToLower(entry.Host)
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			if len(suffix) > bestLen {
				bestLen = len(suffix)
				best = entry.Locale
			}
		}
	}
	return best
}

// Script is a coarse Unicode-script classification used by the language
// filter (C5); the C7 compressors do not use it.
type Script string

const (
	ScriptLatin   Script = "latin"
	ScriptHangul  Script = "hangul"
	ScriptHan     Script = "han"
	ScriptHiragana Script = "hiragana"
	ScriptKatakana Script = "katakana"
	ScriptCyrillic Script = "cyrillic"
	ScriptOther    Script = "other"
)

// scriptRange is one row of the sorted-range table ClassifyScript bisects
// over.
type scriptRange struct {
	lo, hi rune
	script Script
}

// scriptRanges must stay sorted by lo for the bisect in ClassifyScript.
var scriptRanges = []scriptRange{
	{0x0041, 0x005A, ScriptLatin},
	{0x0061, 0x007A, ScriptLatin},
	{0x00C0, 0x024F, ScriptLatin},
	{0x0400, 0x04FF, ScriptCyrillic},
	{0x3040, 0x309F, ScriptHiragana},
	{0x30A0, 0x30FF, ScriptKatakana},
	{0x3130, 0x318F, ScriptHangul},
	{0x3400, 0x4DBF, ScriptHan},
	{0x4E00, 0x9FFF, ScriptHan},
	{0xAC00, 0xD7A3, ScriptHangul},
	{0xF900, 0xFAFF, ScriptHan},
}

// ClassifyScript returns the Unicode script bucket for a rune via binary
// search over the sorted range table, ScriptOther if none match.
func ClassifyScript(r rune) Script {
	lo, hi := 0, len(scriptRanges)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		rg := scriptRanges[mid]
		switch {
		case r < rg.lo:
			hi = mid - 1
		case r > rg.hi:
			lo = mid + 1
		default:
			return rg.script
		}
	}
	return ScriptOther
}

// DominantScript returns the most frequent non-Other script across text,
// used to establish the page-dominant script for the language filter.
func DominantScript(text string) Script {
	counts := map[Script]int{}
	for _, r := range text {
		s := ClassifyScript(r)
		if s == ScriptOther {
			continue
		}
		counts[s]++
	}
	best := ScriptOther
	bestN := 0
	// Deterministic tie-break: iterate in a fixed order.
	for _, s := range []Script{ScriptLatin, ScriptHan, ScriptHangul, ScriptHiragana, ScriptKatakana, ScriptCyrillic} {
		if counts[s] > bestN {
			bestN = counts[s]
			best = s
		}
	}
	return best
}

// cjkLocalesSet identifies locales whose chars_per_token ratio reflects CJK
// density, exposed through IsCJKLocale; the C7 compressors apply no
// CJK-specific budget factor.
var cjkLocalesSet = map[string]bool{"ko": true, "ja": true, "zh": true}

// IsCJKLocale reports whether locale is one of the CJK locales the budget
// model special-cases.
func IsCJKLocale(locale string) bool {
	return cjkLocalesSet[locale]
}

// numeralOrShortPattern matches numeral-only lines (digits with spaces and
// . , : / - separators), one of the cases AlwaysPassesLanguageFilter
// exempts; URLs and strings of 5 characters or fewer are checked there
// separately.
var numeralOrShortPattern = regexp.MustCompile(`^[\d\s.,:/\-]+$`)

// AlwaysPassesLanguageFilter reports whether a line of text is exempt from
// the script-language filter.
func AlwaysPassesLanguageFilter(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len([]rune(trimmed)) <= 5 {
		return true
	}
	if numeralOrShortPattern.MatchString(trimmed) {
		return true
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return true
	}
	return false
}
