package codec

import (
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// SnappyCodec wraps another codec in the snappy framing format
type SnappyCodec struct {
	inner Codec
}

// NewSnappyCodec wraps inner
func NewSnappyCodec(inner Codec) *SnappyCodec {
	return &SnappyCodec{inner: inner}
}

// Format returns the inner format with a .sz suffix
func (c *SnappyCodec) Format() string {
	return c.inner.Format() + ".sz"
}

// Parse decompresses r and hands it to the inner codec
func (c *SnappyCodec) Parse(r io.Reader) (*Dump, error) {
	return c.inner.Parse(snappy.NewReader(r))
}

// Export compresses the inner codec's output
func (c *SnappyCodec) Export(d *Dump, w io.Writer) error {
	sw := snappy.NewBufferedWriter(w)
	if err := c.inner.Export(d, sw); err != nil {
		sw.Close()
		return err
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to flush snappy stream: %w", err)
	}
	return nil
}
