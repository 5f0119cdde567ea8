package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML dumps
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads a dump from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*Dump, error) {
	var d Dump
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &d, nil
}

// Export writes a dump as YAML
func (c *YAMLCodec) Export(d *Dump, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
