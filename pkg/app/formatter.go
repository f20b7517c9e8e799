package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by FormatOutput
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table is implemented by results that can be printed as aligned columns
type Table interface {
	Header() []string
	Rows() [][]string
}

// FormatOutput writes v to w as a table, JSON or YAML
func FormatOutput(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		return formatJSON(w, v)
	case FormatYAML:
		return formatYAML(w, v)
	case FormatTable:
		return formatTable(w, v)
	default:
		return NewError(ErrCodeInvalidInput, fmt.Sprintf("unsupported output format: %s", format), nil)
	}
}

func formatTable(w io.Writer, v any) error {
	t, ok := v.(Table)
	if !ok {
		return fmt.Errorf("%T has no table form", v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := t.Header()
	if len(header) > 0 {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		rule := make([]string, len(header))
		for i, h := range header {
			rule[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(tw, strings.Join(rule, "\t"))
	}
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

func formatJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}

// FormatBytes formats byte count as human readable
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
