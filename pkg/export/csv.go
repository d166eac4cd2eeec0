package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSV renders tables as RFC 4180 text with a header row.
type CSV struct{}

// Render implements Renderer.
func (CSV) Render(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	headers := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = col.Header
	}
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func (CSV) ContentType() string { return "text/csv" }

func (CSV) Extension() string { return "csv" }
