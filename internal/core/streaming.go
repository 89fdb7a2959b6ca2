package core

// streaming.go provides line-oriented readers for whitespace-delimited source
// files. Files are scanned once with constant memory; each line is stripped of
// a leading UTF-8 BOM and invalid UTF-8 is replaced with '?'.

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxLineSize bounds a single source line.
const maxLineSize = 1 << 20

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 BOM.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// FieldScanner yields whitespace-split fields line by line.
type FieldScanner struct {
	sc   *bufio.Scanner
	line int
}

// NewFieldScanner wraps r for field scanning.
func NewFieldScanner(r io.Reader) *FieldScanner {
	sc := bufio.NewScanner(NewBOMSkippingReader(r))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &FieldScanner{sc: sc}
}

// Skip discards n lines. Returns false if input ends first.
func (f *FieldScanner) Skip(n int) bool {
	for i := 0; i < n; i++ {
		if !f.sc.Scan() {
			return false
		}
		f.line++
	}
	return true
}

// Next returns the fields of the next non-blank line, or nil at end of input.
func (f *FieldScanner) Next() []string {
	for f.sc.Scan() {
		f.line++
		text := strings.ToValidUTF8(f.sc.Text(), "?")
		if fields := strings.Fields(text); len(fields) > 0 {
			return fields
		}
	}
	return nil
}

// Line returns the 1-based number of the last line read.
func (f *FieldScanner) Line() int { return f.line }

// Err returns the first non-EOF scan error.
func (f *FieldScanner) Err() error { return f.sc.Err() }
