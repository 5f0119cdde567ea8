package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON dumps
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a dump from JSON
func (c *JSONCodec) Parse(r io.Reader) (*Dump, error) {
	var d Dump
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &d, nil
}

// Export writes a dump as JSON
func (c *JSONCodec) Export(d *Dump, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
