package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/faycaldjilali/sorabo/model"
)

const xlsxSheet = "Sheet1"

// Excel caps a cell at 32767 characters; longer values (typically
// pdf_content) are clipped so the workbook stays valid.
const maxCellChars = 32767

// ExportFilename builds a download name like
// BOAMP_2024-01-15_20240116_083000.xlsx.
func ExportFilename(targetDate, format string, now time.Time) string {
	return fmt.Sprintf("BOAMP_%s_%s.%s", targetDate, now.Format("20060102_150405"), format)
}

// WriteXLSX renders the table as a single-sheet workbook, header row first,
// column order preserved.
func WriteXLSX(w io.Writer, table *model.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, col := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetCellValue(xlsxSheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for r, row := range table.Rows {
		for i, col := range table.Columns {
			value := row[col]
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(xlsxSheet, cell, clipCell(value)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadXLSX loads the first sheet of an uploaded workbook, treating the
// first row as the header.
func ReadXLSX(r io.Reader) (*model.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return tableFromRows(rows), nil
}

// WriteCSV renders the table without the pdf_content column, whose bulk
// text does not belong in a csv download.
func WriteCSV(w io.Writer, table *model.Table) error {
	columns := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		if col == model.ColPDFContent {
			continue
		}
		columns = append(columns, col)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads an uploaded csv, treating the first row as the header.
// Short rows are padded with empty cells.
func ReadCSV(r io.Reader) (*model.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return tableFromRows(records), nil
}

// WriteJSON renders the table as an array of row objects, each carrying
// its original_row_index.
func WriteJSON(w io.Writer, table *model.Table) error {
	out := make([]map[string]any, 0, len(table.Rows))
	for i, row := range table.Rows {
		entry := make(map[string]any, len(table.Columns)+1)
		for _, col := range table.Columns {
			entry[col] = row[col]
		}
		entry["original_row_index"] = i
		out = append(out, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ModelOutput is one model answer for a processed row.
type ModelOutput struct {
	OriginalRowIndex int    `json:"original_row_index"`
	Raw              string `json:"raw"`
}

// ReformatModelOutputs parses each model answer as a JSON object and tags
// it with its row index. Answers that do not parse become
// {original_row_index, error, raw_ai_output} entries instead of failing
// the whole batch.
func ReformatModelOutputs(outputs []ModelOutput) []map[string]any {
	results := make([]map[string]any, 0, len(outputs))
	for _, out := range outputs {
		cleaned := strings.TrimSpace(out.Raw)
		// models wrap their JSON in markdown fences now and then
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)

		var parsed map[string]any
		dec := json.NewDecoder(strings.NewReader(cleaned))
		dec.UseNumber()
		if err := dec.Decode(&parsed); err != nil {
			results = append(results, map[string]any{
				"original_row_index": out.OriginalRowIndex,
				"error":              err.Error(),
				"raw_ai_output":      out.Raw,
			})
			continue
		}

		parsed["original_row_index"] = out.OriginalRowIndex
		results = append(results, parsed)
	}
	return results
}

func tableFromRows(source [][]string) *model.Table {
	if len(source) == 0 {
		return model.NewTable()
	}

	table := model.NewTable(source[0]...)
	table.Rows = make([]model.Row, 0, len(source)-1)
	for _, cells := range source[1:] {
		row := make(model.Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func clipCell(value string) string {
	if len(value) <= maxCellChars {
		return value
	}
	runes := []rune(value)
	if len(runes) <= maxCellChars {
		return value
	}
	return string(runes[:maxCellChars])
}
