package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"shopcrawl/internal/collector"
)

// DelimitedHeader is the fixed header of delimited exports.
var DelimitedHeader = []string{"name", "price", "description"}

// WriteDelimited writes a header row and one row per product. delim is
// usually ',' or '\t'.
func WriteDelimited(w io.Writer, products []collector.Product, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(DelimitedHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range products {
		if err := cw.Write([]string{p.Name, p.Price, p.Description}); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatDelimited renders products the way WriteDelimited writes them.
func FormatDelimited(products []collector.Product, delim rune) (string, error) {
	var buf bytes.Buffer
	if err := WriteDelimited(&buf, products, delim); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteDelimitedFile creates (or truncates) path and writes products to it.
func WriteDelimitedFile(path string, products []collector.Product, delim rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteDelimited(f, products, delim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
