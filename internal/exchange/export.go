package exchange

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// ExportHeader is the fixed prefix of every exported file. Value/Score
// pairs follow it.
var ExportHeader = []string{
	"Template Name",
	"Tags",
	"Section Name",
	"Section Description",
	"Question",
	"Required",
	"Type",
	"Severity",
	"Knowledge Base",
}

// grid is the exported table before rendering. Cells hold a string, a
// float64 or nil.
type grid struct {
	header []string
	rows   [][]any
}

// exportGrid flattens t into one row per question. kbNames is accepted for
// the header contract but the Knowledge Base column is left empty.
func exportGrid(t assessment.Template, tagNames, kbNames []string) grid {
	tags := strings.Join(tagNames, ",")

	maxOptions := 0
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			maxOptions = max(maxOptions, len(q.Options))
		}
	}

	header := make([]string, 0, len(ExportHeader)+2*maxOptions)
	header = append(header, ExportHeader...)
	for range maxOptions {
		header = append(header, ValueHeader, ScoreHeader)
	}

	var rows [][]any
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			row := make([]any, len(header))
			row[0] = t.Name
			row[1] = tags
			row[2] = s.Name
			row[3] = s.Description
			row[4] = q.Name
			row[5] = yesNo(q.Required)
			row[6] = string(q.Type)
			row[7] = string(q.Severity)
			row[8] = nil

			for i, o := range q.Options {
				base := len(ExportHeader) + 2*i
				if o.Value != nil {
					row[base] = *o.Value
				}
				if o.Score != nil {
					row[base+1] = *o.Score
				}
			}
			rows = append(rows, row)
		}
	}
	return grid{header: header, rows: rows}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ExportCSV renders t as CSV text. Every non-empty string and every finite
// number, zero included, is quoted with embedded quotes doubled; anything
// else becomes an empty cell. Cells are joined by "," and rows by "\n".
func ExportCSV(t assessment.Template, tagNames, kbNames []string) string {
	g := exportGrid(t, tagNames, kbNames)

	lines := make([]string, 0, len(g.rows)+1)
	head := make([]string, len(g.header))
	for i, h := range g.header {
		head[i] = renderCell(h)
	}
	lines = append(lines, strings.Join(head, ","))

	for _, row := range g.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = renderCell(v)
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func renderCell(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		if x == "" {
			return ""
		}
		s = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExportFileName returns the download name for a CSV export of a template.
func ExportFileName(name string) string {
	return name + ".csv"
}

// ExportXLSXFileName returns the download name for an XLSX export.
func ExportXLSXFileName(name string) string {
	return name + ".xlsx"
}

// exportSheet is the sheet name used by ExportXLSX.
const exportSheet = "Template"

// ExportXLSX writes the same grid as ExportCSV to a workbook. Scores are
// stored as numbers.
func ExportXLSX(w io.Writer, t assessment.Template, tagNames, kbNames []string) error {
	g := exportGrid(t, tagNames, kbNames)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	write := func(r, c int, v any) error {
		name, err := excelize.CoordinatesToCellName(c+1, r+1)
		if err != nil {
			return err
		}
		return f.SetCellValue(exportSheet, name, v)
	}

	for c, h := range g.header {
		if err := write(0, c, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for r, row := range g.rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
				continue
			}
			if err := write(r+1, c, v); err != nil {
				return fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
