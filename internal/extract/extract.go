// Package extract maps raw database rows onto the handful of fields the
// notification needs.
//
// Rows are semi-structured: any column may be missing, empty or of an
// unexpected type. Extraction never fails; missing data degrades to an
// absent identity or to the placeholder text for display fields.
package extract

import (
	"strings"

	"orderbot/internal/source"
)

// Display field keys.
const (
	FieldCustomer = "customer"
	FieldAgent    = "agent"
)

// Normalized is the projection of a record used for dedup and rendering.
type Normalized struct {
	// Identity is the dedup key. Empty means the record has none and must
	// never be delivered nor recorded.
	Identity string
	// Display holds placeholder-filled values keyed by FieldCustomer/FieldAgent.
	Display map[string]string
	// PageID is the source row id, for logs only.
	PageID string
}

// HasIdentity reports whether the record is actionable.
func (n Normalized) HasIdentity() bool { return n.Identity != "" }

// Field returns a display value (the placeholder was already applied).
func (n Normalized) Field(key string) string { return n.Display[key] }

// Columns names the database properties read by the Extractor.
type Columns struct {
	Identity string
	Customer string
	Agent    string
}

// Extractor turns records into Normalized values.
type Extractor struct {
	cols        Columns
	placeholder string
}

func New(cols Columns, placeholder string) *Extractor {
	return &Extractor{cols: cols, placeholder: placeholder}
}

// Extract never fails. See the package doc for the degradation rules.
func (e *Extractor) Extract(rec source.Record) Normalized {
	n := Normalized{
		PageID:  rec.ID,
		Display: make(map[string]string, 2),
	}
	if id, ok := firstText(rec.Data, e.cols.Identity); ok {
		n.Identity = id
	}
	n.Display[FieldCustomer] = e.displayValue(rec.Data, e.cols.Customer)
	n.Display[FieldAgent] = e.displayValue(rec.Data, e.cols.Agent)
	return n
}

func (e *Extractor) displayValue(data any, column string) string {
	if v, ok := firstText(data, column); ok {
		return v
	}
	return e.placeholder
}

// richTextKeys are the property kinds holding a list of text fragments.
// Title columns use "title" instead of "rich_text".
var richTextKeys = []string{"rich_text", "title"}

// firstText returns the text of the first fragment of a column, or false
// when the column is missing, empty, or its first fragment has no text.
func firstText(data any, column string) (string, bool) {
	if column == "" {
		return "", false
	}
	for _, kind := range richTextKeys {
		list, ok := LookupList(data, Path{"properties", column, kind})
		if !ok {
			continue
		}
		if len(list) == 0 {
			return "", false
		}
		return fragmentText(list[0])
	}
	return "", false
}

func fragmentText(fragment any) (string, bool) {
	if s, ok := LookupString(fragment, Path{"text", "content"}); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	if s, ok := LookupString(fragment, Path{"plain_text"}); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	return "", false
}
