// Package codec provides the serializations of report records.
package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownCodec indicates a report format name that names no codec.
var ErrUnknownCodec = errors.New("unknown report format")

// Record is a report row that flattens into named cells.
//
// JSON, JSON Lines and YAML encode records by their struct tags; CSV and
// text use Header and Cells.
type Record interface {
	// Header returns the column names of the row.
	Header() []string

	// Cells returns the row values, aligned with Header.
	Cells() []string
}

// Texter is implemented by records with a plain-text rendering other than
// their tab-separated cells.
type Texter interface {
	Text() string
}

// Codec serializes a list of records.
type Codec interface {
	// Name returns the codec identifier.
	Name() string

	// Encode writes records to w.
	Encode(w io.Writer, records []Record) error
}

var registry = map[string]func() Codec{
	"text":  func() Codec { return NewText() },
	"csv":   func() Codec { return NewCSV() },
	"json":  func() Codec { return NewJSON() },
	"jsonl": func() Codec { return NewJSONL() },
	"yaml":  func() Codec { return NewYAML() },
}

// ByName returns the codec with the given name.
func ByName(name string) (Codec, error) {
	newCodec, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownCodec, name, strings.Join(Names(), ", "))
	}
	return newCodec(), nil
}

// Names returns the registered codec names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------
// Text
// -----------------------------------------------------------------------------

// Text writes one line per record: the record's Text when it implements
// Texter, its tab-separated cells otherwise.
type Text struct{}

// NewText creates a text codec.
func NewText() *Text { return &Text{} }

// Name returns the codec identifier.
func (t *Text) Name() string { return "text" }

// Encode writes records as lines.
func (t *Text) Encode(w io.Writer, records []Record) error {
	for _, r := range records {
		line := ""
		if tx, ok := r.(Texter); ok {
			line = tx.Text()
		} else {
			line = strings.Join(r.Cells(), "\t")
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// CSV
// -----------------------------------------------------------------------------

// CSV writes a header line followed by one line per record.
// Nothing is written for an empty record list.
type CSV struct{}

// NewCSV creates a CSV codec.
func NewCSV() *CSV { return &CSV{} }

// Name returns the codec identifier.
func (c *CSV) Name() string { return "csv" }

// Encode writes records as CSV.
func (c *CSV) Encode(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(records[0].Header()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// -----------------------------------------------------------------------------
// JSON
// -----------------------------------------------------------------------------

// JSON writes the records as one indented JSON array.
type JSON struct{}

// NewJSON creates a JSON codec.
func NewJSON() *JSON { return &JSON{} }

// Name returns the codec identifier.
func (j *JSON) Name() string { return "json" }

// Encode writes records as a JSON array.
func (j *JSON) Encode(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// -----------------------------------------------------------------------------
// YAML
// -----------------------------------------------------------------------------

// YAML writes the records as one YAML sequence.
type YAML struct{}

// NewYAML creates a YAML codec.
func NewYAML() *YAML { return &YAML{} }

// Name returns the codec identifier.
func (y *YAML) Name() string { return "yaml" }

// Encode writes records as a YAML sequence.
func (y *YAML) Encode(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}
