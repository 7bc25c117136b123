package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/faycaldjilali/sorabo/model"
)

// Normalize flattens raw records into a table. Composite values become
// compact JSON text with accents intact, nulls become empty strings and
// scalars keep their literal form. Columns follow the first-seen field
// order across records; cells absent from a record stay empty.
func Normalize(records []model.Record) (*model.Table, error) {
	table := model.NewTable()
	seen := make(map[string]struct{})

	for _, rec := range records {
		row := make(model.Row, len(rec.Keys))
		for _, key := range rec.Keys {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				table.Columns = append(table.Columns, key)
			}

			cell, err := normalizeValue(rec.Fields[key])
			if err != nil {
				return nil, fmt.Errorf("failed to normalize field %q: %w", key, err)
			}
			row[key] = cell
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func normalizeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	}
}

// Match scans every column of every row for each keyword, case
// insensitively. A row matching a keyword yields one copy of it tagged
// with that keyword, so a row matching several keywords appears once per
// keyword. Output order is keyword-list order, input row order within a
// keyword.
func Match(table *model.Table, keywords []string, keywordColumn string) *model.Table {
	out := model.NewTable(table.Columns...)
	out.EnsureColumn(keywordColumn)
	out.Rows = make([]model.Row, 0)

	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		for _, row := range table.Rows {
			if rowContains(row, table.Columns, needle) {
				tagged := row.Clone()
				tagged[keywordColumn] = kw
				out.Rows = append(out.Rows, tagged)
			}
		}
	}

	return out
}

func rowContains(row model.Row, columns []string, needle string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(row[col]), needle) {
			return true
		}
	}
	return false
}

// Deduplicate collapses rows sharing an id into one row per notice. The
// first row of a group supplies every field except the keyword cell,
// which becomes the "; "-joined list of the group's distinct non-empty
// keywords in first-seen order. Group order follows first appearance.
func Deduplicate(table *model.Table, idColumn, keywordColumn string) (*model.Table, error) {
	if !table.HasColumn(idColumn) {
		return nil, &model.ValidationError{Field: idColumn, Reason: "column not found"}
	}
	if !table.HasColumn(keywordColumn) {
		return nil, &model.ValidationError{Field: keywordColumn, Reason: "column not found"}
	}

	out := model.NewTable(table.Columns...)
	index := make(map[string]int)
	var keywords [][]string
	var seen []map[string]struct{}

	for _, row := range table.Rows {
		id := row[idColumn]

		i, ok := index[id]
		if !ok {
			i = len(out.Rows)
			index[id] = i
			out.Rows = append(out.Rows, row.Clone())
			keywords = append(keywords, nil)
			seen = append(seen, make(map[string]struct{}))
		}

		kw := row[keywordColumn]
		if strings.TrimSpace(kw) == "" {
			continue
		}
		if _, dup := seen[i][kw]; dup {
			continue
		}
		seen[i][kw] = struct{}{}
		keywords[i] = append(keywords[i], kw)
	}

	for i := range out.Rows {
		out.Rows[i][keywordColumn] = strings.Join(keywords[i], "; ")
	}

	return out, nil
}
