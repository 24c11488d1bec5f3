package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/solve"
)

var titleColor = color.New(color.Bold)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatGroup renders the solves of an average, trimmed ones in parentheses
// like the time list.
func formatGroup(avg *average.CalculatedAverage, plusTwo time.Duration) string {
	parts := make([]string, 0, len(avg.Considered))
	for _, sv := range avg.Considered {
		s := solve.FormatSolve(sv, plusTwo)
		if avg.IsTrimmed(sv.ID) {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// averageLine is "ao5: 12.58" or "Current Average: 3 solves".
func averageLine(avg *average.CalculatedAverage) string {
	if avg.IsCurrent() {
		return fmt.Sprintf("%s: %d solve(s)", avg.Label, len(avg.Considered))
	}
	return fmt.Sprintf("%s: %s", avg.Label, avg.String())
}

// printTable renders rows under headers.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
