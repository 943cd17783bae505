// types.go — Shared types for output formatting.
package output

import "github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"

// Result is what the CLI hands to a Formatter: the PageMap just built,
// plus the prior pass for the same URL when one was available (needed by
// the diff formatter; nil otherwise).
type Result struct {
	PageMap *model.PageMap
	Prev    *model.PageMap
}

// Formatter is the interface for all output formatters.
type Formatter interface {
	Format(w Writer, result *Result) error
}

// Writer is a minimal write interface (matches io.Writer).
type Writer interface {
	Write(p []byte) (n int, err error)
}

// GetFormatter resolves the --format flag value to a Formatter.
// Unrecognized values fall back to AgentFormatter, matching the "agent" default.
func GetFormatter(format string) Formatter {
	switch format {
	case "json":
		return &JSONFormatter{}
	case "diff":
		return &DiffFormatter{}
	default:
		return &AgentFormatter{}
	}
}
