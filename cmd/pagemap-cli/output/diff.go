// diff.go — Diff output formatter.
// Renders what changed between the previous cached PageMap pass and the
// one just built, for an agent loop that wants to act only on deltas.
package output

import (
	"encoding/json"
	"fmt"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/assemble"
)

// DiffFormatter writes a Diff against result.Prev. When no prior pass is
// available it falls back to the full agent-prompt rendering, since there
// is nothing to diff against.
type DiffFormatter struct{}

// Format writes the diff (or the full agent prompt, if no prior pass
// exists) for result.PageMap.
func (d *DiffFormatter) Format(w Writer, result *Result) error {
	if result.Prev == nil {
		fallback := &AgentFormatter{}
		return fallback.Format(w, result)
	}
	diff := assemble.Compare(*result.Prev, *result.PageMap)
	data, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(diff.Notes) > 0 {
		_, err = fmt.Fprintf(w, "%d note(s)\n", len(diff.Notes))
	}
	return err
}
