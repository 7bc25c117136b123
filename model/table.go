package model

// Row holds one notice's cells keyed by column name. Every value is plain
// text; composite API values are serialized before they land here.
type Row map[string]string

// Table is the tabular form the pipeline works on. Columns keeps the
// first-seen field order so exports line up with the upstream payloads.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable returns an empty table with the given column order.
func NewTable(columns ...string) *Table {
	t := &Table{Columns: make([]string, len(columns))}
	copy(t.Columns, columns)
	return t
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// EnsureColumn appends the named column unless it is already declared.
func (t *Table) EnsureColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Clone returns a deep copy, safe to mutate independently.
func (t *Table) Clone() *Table {
	clone := NewTable(t.Columns...)
	clone.Rows = make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		clone.Rows = append(clone.Rows, row.Clone())
	}
	return clone
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	clone := make(Row, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Record is one raw notice as decoded from the listing API. Keys preserves
// the JSON field order of the payload, Fields holds the decoded values.
type Record struct {
	Keys   []string
	Fields map[string]any
}

// StringField returns the field's value when it is a plain string, ""
// for anything else including absent fields.
func (r Record) StringField(key string) string {
	if v, ok := r.Fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
