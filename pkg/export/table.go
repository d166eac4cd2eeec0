package export

import "fmt"

// Column describes one exported column. Weight sizes PDF columns relative to each other.
type Column struct {
	Header string
	Weight float64
}

// Table is the tabular content handed to a renderer.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// Renderer turns a table into a downloadable document.
type Renderer interface {
	Render(Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat resolves a renderer by its short name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "csv":
		return CSV{}, nil
	case "pdf":
		return PDF{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}
