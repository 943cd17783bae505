// json.go — JSON output formatter.
// Produces the machine-parseable PageMap document.
package output

import "github.com/Retio-ai/Retio-pagemap/internal/pagemap/assemble"

// JSONFormatter writes the PageMap's canonical JSON document.
type JSONFormatter struct{}

// Format writes a JSON representation of result.PageMap.
func (f *JSONFormatter) Format(w Writer, result *Result) error {
	data, err := assemble.JSON(*result.PageMap)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
