// Package config holds the single immutable configuration struct threaded
// through every pipeline call.
package config

import "time"

// LocaleEntry is one row of the host/TLD → locale table.
type LocaleEntry struct {
	Host   string // exact host or TLD suffix, e.g. "co.kr" or "example.jp"
	Locale string
}

// Config bundles size and node-count ceilings, output limits, cache sizing,
// locale resolution, the language-filter switch, and network/robots policy.
// The pipeline reads MaxHTMLBytes, MaxDOMNodes, DefaultLocale, LocaleTable
// and PipelineTimeout; MaxTextBytes, MaxImageBytes, CacheCapacity, CacheTTL,
// LanguageFilterEnabled, AllowLocalNetwork and IgnoreRobots are not read by
// any pipeline stage (the language filter always runs, and the cache and
// assemble packages use their own constants).
type Config struct {
	MaxHTMLBytes          int64
	MaxDOMNodes           int
	MaxTextBytes          int
	MaxImageBytes         int64
	CacheCapacity         int
	CacheTTL              time.Duration
	DefaultLocale         string
	LocaleTable           []LocaleEntry
	LanguageFilterEnabled bool
	AllowLocalNetwork     bool
	IgnoreRobots          bool
	PipelineTimeout       time.Duration
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		MaxHTMLBytes:          5 * 1024 * 1024,
		MaxDOMNodes:           50_000,
		MaxTextBytes:          1024 * 1024,
		MaxImageBytes:         5 * 1024 * 1024,
		CacheCapacity:         20,
		CacheTTL:              90 * time.Second,
		DefaultLocale:         "en",
		LocaleTable:           defaultLocaleTable(),
		LanguageFilterEnabled: true,
		AllowLocalNetwork:     false,
		IgnoreRobots:          false,
		PipelineTimeout:       30 * time.Second,
	}
}

// defaultLocaleTable maps host suffixes to nine locales: ko, ja, zh, de,
// fr, es, it, ru and en.
func defaultLocaleTable() []LocaleEntry {
	return []LocaleEntry{
		{Host: "kr", Locale: "ko"},
		{Host: "co.kr", Locale: "ko"},
		{Host: "jp", Locale: "ja"},
		{Host: "co.jp", Locale: "ja"},
		{Host: "cn", Locale: "zh"},
		{Host: "com.cn", Locale: "zh"},
		{Host: "tw", Locale: "zh"},
		{Host: "de", Locale: "de"},
		{Host: "fr", Locale: "fr"},
		{Host: "es", Locale: "es"},
		{Host: "it", Locale: "it"},
		{Host: "ru", Locale: "ru"},
		{Host: "co.uk", Locale: "en"},
		{Host: "com", Locale: "en"},
	}
}
