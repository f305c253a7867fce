// Package format turns one tabular demand record into the canonical sentence
// that gets chunked and indexed. The rendering is deliberately stable: the
// aggregation regexes in the QA pipeline assume the exact "<label> – <value>"
// shape produced here.
package format

import (
	"fmt"
	"strings"
)

// RowIDField is the reserved field name carrying the 1-based row identifier.
// It is bookkeeping only and is never rendered, so the internal ID cannot
// leak into indexed text.
const RowIDField = "row_id"

// Field is one named cell of a record. Values are kept as strings; the vector
// store coerces everything to text anyway.
type Field struct {
	Name  string
	Value string
}

// Record is one row of source data. Field order follows the source table's
// column order so formatted output is deterministic and mirrors the table.
// Records are never mutated by the pipeline once built.
type Record struct {
	// Fields holds the row's cells in column order.
	Fields []Field
}

// Get returns the value of the named field and whether it was present.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// RowID returns the record's row identifier, falling back to the 1-based
// position pos when the record carries no explicit row_id field.
func (r Record) RowID(pos int) string {
	if id, ok := r.Get(RowIDField); ok && id != "" {
		return id
	}
	return fmt.Sprintf("%d", pos+1)
}

// canonicalLabels maps known demand-table field names to the human-readable
// labels used in indexed text. CSV exports name these columns with
// underscores; both spellings resolve to the same label. Fields not listed
// here fall back to their raw name as the label.
var canonicalLabels = map[string]string{
	"Период планирования":           "Период планирования",
	"Период_планирования":           "Период планирования",
	"Покупатель спроса":             "Покупатель спроса",
	"Покупатель_спроса":             "Покупатель спроса",
	"Продукт спроса":                "Продукт спроса",
	"Продукт_спроса":                "Продукт спроса",
	"Общая выручка по заказу":       "Общая выручка по заказу",
	"Общая_выручка_по_заказу":       "Общая выручка по заказу",
	"Штрафы за недопоставку":        "Штрафы за недопоставку",
	"Штрафы_за_недопоставку":        "Штрафы за недопоставку",
	"Процент удовлетворения спроса": "Процент удовлетворения спроса",
	"Процент_удовлетворения_спроса": "Процент удовлетворения спроса",
}

// Row renders a record as a single sentence: `"<label> – <value>"` pairs
// joined by "; " and terminated with ".". The row_id field is skipped.
func Row(rec Record) string {
	parts := make([]string, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		if f.Name == RowIDField {
			continue
		}
		label := f.Name
		if canonical, ok := canonicalLabels[f.Name]; ok {
			label = canonical
		}
		parts = append(parts, fmt.Sprintf("%s – %s", label, f.Value))
	}

	return strings.Join(parts, "; ") + "."
}
