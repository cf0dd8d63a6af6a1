package format

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// bom lets spreadsheet tools detect UTF-8, which usernames and log lines need
const bom = "\ufeff"

// WriteCSV writes a BOM, the header row and every row. Data cells are always quoted.
func WriteCSV[T any](w io.Writer, headers []string, items []T, row func(T) []string) error {
	if len(headers) == 0 {
		return fmt.Errorf("csv headers are required")
	}
	if row == nil {
		return fmt.Errorf("csv row mapper is required")
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	bw.WriteString(strings.Join(headers, ","))

	for _, item := range items {
		cells := row(item)
		quoted := make([]string, len(cells))
		for i, cell := range cells {
			quoted[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
		}
		bw.WriteString("\n")
		bw.WriteString(strings.Join(quoted, ","))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
