// Package assemble is C8: it builds the final PageMap artifact and
// renders it in the three output shapes an agent loop consumes — a
// compact agent-prompt string, a JSON document, and a diff against a
// prior PageMap for the same URL.
package assemble

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

const (
	maxAgentPromptBytes = 1 << 20 // 1 MiB
	maxJSONBytes        = 5 << 20 // 5 MiB
	tailMarker          = "\n...[truncated]"
)

// AgentPrompt renders a PageMap in the canonical, stable agent-prompt
// layout: field order and punctuation are part of the contract agents
// parse on (URL/Title/Type header, ## Actions, ## Info, ## Images,
// ## Meta), size-guarded to maxAgentPromptBytes. Exposed as a free
// function (not a PageMap method) since model.PageMap lives in an import
// the rendering stage depends on, not the other way around.
func AgentPrompt(pm model.PageMap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", pm.FinalURL)
	fmt.Fprintf(&sb, "Title: %s\n", pm.Title)
	fmt.Fprintf(&sb, "Type: %s\n", pm.PageType)
	if pm.BlockedInfo != nil {
		fmt.Fprintf(&sb, "\nBLOCKED: %s (%s)\n", pm.BlockedInfo.Notice, pm.BlockedInfo.Kind)
		return truncate(sb.String(), maxAgentPromptBytes)
	}

	sb.WriteString("\n## Actions\n")
	for _, i := range pm.Interactables {
		fmt.Fprintf(&sb, "[%d] %s: %s (%s)", i.Ref, i.Role, i.Name, joinAffordances(i.Affordances))
		if len(i.Options) > 0 {
			fmt.Fprintf(&sb, " [options=%s]", strings.Join(i.Options, "|"))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Info\n")
	sb.WriteString(pm.PrunedContext)
	sb.WriteString("\n")

	sb.WriteString("\n## Images\n")
	for n, url := range pm.Images {
		fmt.Fprintf(&sb, "  [%d] %s\n", n, url)
	}

	sb.WriteString("\n## Meta\n")
	fmt.Fprintf(&sb, "Tokens: ~%d | Interactables: %d | Generation: %dms\n",
		pm.Stats.TokensEstimate, pm.Stats.Interactables, pm.Stats.GenerationMillis)

	return truncate(sb.String(), maxAgentPromptBytes)
}

func joinAffordances(affs []model.Affordance) string {
	parts := make([]string, len(affs))
	for i, a := range affs {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}

// JSON renders a PageMap as its canonical JSON document, size-guarded to
// maxJSONBytes (truncation here drops the pruned_context tail, since
// dropping structured fields would produce invalid JSON).
func JSON(pm model.PageMap) ([]byte, error) {
	b, err := json.Marshal(pm)
	if err != nil {
		return nil, err
	}
	if len(b) <= maxJSONBytes {
		return b, nil
	}
	overflow := len(b) - maxJSONBytes
	trimmed := pm
	if len(trimmed.PrunedContext) > overflow {
		trimmed.PrunedContext = trimmed.PrunedContext[:len(trimmed.PrunedContext)-overflow] + "...[truncated]"
	} else {
		trimmed.PrunedContext = "...[truncated]"
	}
	return json.Marshal(trimmed)
}

// Diff describes what changed between two PageMap passes for the same
// session; Compare builds it from the previous and the next PageMap.
type Diff struct {
	URLChanged          bool     `json:"url_changed"`
	TitleChanged        bool     `json:"title_changed"`
	PageTypeChanged     bool     `json:"page_type_changed"`
	InteractablesAdded  []int    `json:"interactables_added"`
	InteractablesGone   []int    `json:"interactables_removed"`
	ContentChanged      bool     `json:"content_changed"`
	Notes               []string `json:"notes,omitempty"`
}

// Compare produces a Diff describing what changed from prev to next.
func Compare(prev, next model.PageMap) Diff {
	d := Diff{
		URLChanged:      prev.FinalURL != next.FinalURL,
		TitleChanged:    prev.Title != next.Title,
		PageTypeChanged: prev.PageType != next.PageType,
		ContentChanged:  prev.PrunedContext != next.PrunedContext,
	}
	prevRefs := map[int]bool{}
	for _, i := range prev.Interactables {
		prevRefs[i.Ref] = true
	}
	nextRefs := map[int]bool{}
	for _, i := range next.Interactables {
		nextRefs[i.Ref] = true
		if !prevRefs[i.Ref] {
			d.InteractablesAdded = append(d.InteractablesAdded, i.Ref)
		}
	}
	for ref := range prevRefs {
		if !nextRefs[ref] {
			d.InteractablesGone = append(d.InteractablesGone, ref)
		}
	}
	if d.PageTypeChanged {
		d.Notes = append(d.Notes, fmt.Sprintf("page type changed from %s to %s", prev.PageType, next.PageType))
	}
	return d
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(tailMarker)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + tailMarker
}
