package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputTable    = "table"
	outputJSON     = "json"
	outputYAML     = "yaml"
	outputMarkdown = "markdown"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML, outputMarkdown:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json, yaml or markdown)", format)
}

// view is a result that can print itself as a table or as markdown
type view interface {
	table(w io.Writer)
	markdown() string
}

// printResult writes v in the format chosen with --output. data is what the
// json and yaml formats serialize.
func printResult(cmd *cobra.Command, data any, v view) error {
	ctx := getCliContext(cmd)
	w := cmd.OutOrStdout()

	switch ctx.Output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)

	case outputYAML:
		out, err := toYAML(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err

	case outputMarkdown:
		return printMarkdown(w, v.markdown(), ctx.Config.Rendering.Theme)

	default:
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		v.table(tw)
		return tw.Flush()
	}
}

// toYAML renders data as YAML using its JSON field names
func toYAML(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to convert result: %w", err)
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal yaml: %w", err)
	}
	return out, nil
}

// mdTable builds a markdown table
func mdTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}

func euro(v float64) string {
	return fmt.Sprintf("€%.2f", v)
}
