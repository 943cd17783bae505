// main.go — Entry point for the pagemap-cli demo/harness binary.
// Reads a driver snapshot JSON file, runs it through the page-map
// pipeline, and prints the result in the requested format.
//
// Usage: pagemap-cli <snapshot.json> [--flags]
//
// Exit codes:
//
//	0 = success
//	1 = error (pipeline or I/O failure)
//	2 = usage error (missing args, invalid flags)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Retio-ai/Retio-pagemap/cmd/pagemap-cli/config"
	"github.com/Retio-ai/Retio-pagemap/cmd/pagemap-cli/output"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/cache"
	pmconfig "github.com/Retio-ai/Retio-pagemap/internal/pagemap/config"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/pipeline"
)

var version = "0.1.0"

const usageText = `pagemap-cli — build a compressed page map from a browser snapshot

Usage:
  pagemap-cli <snapshot.json> [--flags]

Flags:
  --format <agent|json|diff>   Output format (default: agent)
  --timeout <ms>               Pipeline deadline in ms (default: 30000)
  --locale <code>               Force a locale instead of auto-resolving it
  --version                    Show version
  --help                       Show this help

The snapshot file is a JSON document with html, url, final_url, title,
status, ax_tree, listener_hits, and fingerprint fields.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load() // optional .env for PAGEMAP_* overrides, missing file is fine

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Printf("pagemap-cli %s\n", version)
			return 0
		}
		if a == "--help" || a == "-h" {
			fmt.Print(usageText)
			return 0
		}
	}

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	snapshotPath := args[0]
	flags, _ := extractGlobalFlags(args[1:])

	cwd, err := os.Getwd()
	if err != nil {
		log.Error().Err(err).Msg("cannot determine working directory")
		return 1
	}
	cliCfg, err := config.Load(cwd, flags)
	if err != nil {
		log.Error().Err(err).Msg("configuration")
		return 2
	}

	snap, err := loadSnapshot(snapshotPath)
	if err != nil {
		log.Error().Err(err).Str("path", snapshotPath).Msg("load snapshot")
		return 1
	}
	if cliCfg.Locale != "" {
		snap.Locale = cliCfg.Locale
	}

	pCfg := pmconfig.Defaults()
	pCfg.MaxHTMLBytes = cliCfg.MaxHTMLBytes
	pCfg.PipelineTimeout = time.Duration(cliCfg.TimeoutMillis) * time.Millisecond

	c := cache.New()
	ctx := context.Background()
	pm, err := pipeline.Build(ctx, snap, pCfg, c)
	if err != nil {
		log.Error().Err(err).Msg("pipeline build")
		return 1
	}

	formatter := output.GetFormatter(cliCfg.Format)
	if err := formatter.Format(os.Stdout, &output.Result{PageMap: pm}); err != nil {
		log.Error().Err(err).Msg("format output")
		return 1
	}
	return 0
}

// snapshotFile is the on-disk JSON shape for a driver snapshot: HTML as a
// plain string (not base64 []byte) so the file stays human-editable.
type snapshotFile struct {
	HTML         string           `json:"html"`
	URL          string           `json:"url"`
	FinalURL     string           `json:"final_url"`
	Title        string           `json:"title"`
	Status       int              `json:"status"`
	Locale       string           `json:"locale"`
	AxTree       []axNodeFile     `json:"ax_tree"`
	ListenerHits []listenerHitDTO `json:"listener_hits"`
	Fingerprint  fingerprintDTO   `json:"fingerprint"`
}

type axNodeFile struct {
	Role        string       `json:"role"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Value       string       `json:"value"`
	Checked     *bool        `json:"checked,omitempty"`
	XPath       string       `json:"xpath"`
	Children    []axNodeFile `json:"children,omitempty"`
}

type listenerHitDTO struct {
	XPath string `json:"xpath"`
	Event string `json:"event"`
}

type fingerprintDTO struct {
	StructureHash string `json:"structure_hash"`
	ContentHash   string `json:"content_hash"`
}

func loadSnapshot(path string) (model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return model.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return toSnapshot(sf), nil
}

func toSnapshot(sf snapshotFile) model.Snapshot {
	hits := make([]model.ListenerHit, len(sf.ListenerHits))
	for i, h := range sf.ListenerHits {
		hits[i] = model.ListenerHit{XPath: h.XPath, Event: h.Event}
	}
	return model.Snapshot{
		HTML:         []byte(sf.HTML),
		AxTree:       toAxNodes(sf.AxTree),
		ListenerHits: hits,
		URL:          sf.URL,
		FinalURL:     firstNonEmpty(sf.FinalURL, sf.URL),
		Title:        sf.Title,
		Status:       sf.Status,
		Fingerprint:  model.Fingerprint{StructureHash: sf.Fingerprint.StructureHash, ContentHash: sf.Fingerprint.ContentHash},
		Locale:       sf.Locale,
	}
}

func toAxNodes(nodes []axNodeFile) []model.AxNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]model.AxNode, len(nodes))
	for i, n := range nodes {
		out[i] = model.AxNode{
			Role: n.Role, Name: n.Name, Description: n.Description, Value: n.Value,
			Checked: n.Checked, XPath: n.XPath, Children: toAxNodes(n.Children),
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractGlobalFlags extracts global flags from args and returns FlagOverrides + remaining args.
func extractGlobalFlags(args []string) (*config.FlagOverrides, []string) {
	flags := &config.FlagOverrides{}
	remaining := args

	var format string
	format, remaining = extractFlag(remaining, "--format")
	if format != "" {
		flags.Format = &format
	}

	var timeoutStr string
	timeoutStr, remaining = extractFlag(remaining, "--timeout")
	if timeoutStr != "" {
		if n := parseInt(timeoutStr); n > 0 {
			flags.TimeoutMillis = &n
		}
	}

	var locale string
	locale, remaining = extractFlag(remaining, "--locale")
	if locale != "" {
		flags.Locale = &locale
	}

	return flags, remaining
}

// extractFlag removes a flag and its value from args, returning the value and remaining args.
func extractFlag(args []string, flag string) (string, []string) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			val := args[i+1]
			remaining := make([]string, 0, len(args)-2)
			remaining = append(remaining, args[:i]...)
			remaining = append(remaining, args[i+2:]...)
			return val, remaining
		}
	}
	return "", args
}

// parseInt parses a string as a positive integer, returning 0 on failure.
func parseInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
