package codec

import (
	"bufio"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONL writes records in JSON Lines format.
// Each record is serialized as a single line of JSON.
type JSONL struct{}

// NewJSONL creates a JSONL codec.
func NewJSONL() *JSONL {
	return &JSONL{}
}

// Name returns the codec identifier.
func (j *JSONL) Name() string {
	return "jsonl"
}

// Encode writes records as JSON Lines to the given writer.
func (j *JSONL) Encode(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJSONL reads JSON Lines into generic maps.
func DecodeJSONL(r io.Reader) ([]map[string]any, error) {
	var records []map[string]any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var _ Codec = (*JSONL)(nil)
