package export

import "fmt"

// Column describes one exported field.
type Column struct {
	Key   string
	Label string
	// Width is a relative weight used by the PDF layout; zero means 1.
	Width float64
}

// Table is the tabular content shared by every renderer.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
	Footer   []string
}

// Format names a supported output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Renderer turns a table into bytes.
type Renderer interface {
	Render(Table) ([]byte, error)
}

// ForFormat returns the renderer registered for format.
func ForFormat(format Format) (Renderer, error) {
	switch format {
	case FormatCSV:
		return NewCSVRenderer(), nil
	case FormatPDF:
		return NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	return nil
}

func (c Column) label() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}
