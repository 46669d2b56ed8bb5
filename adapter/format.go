package adapter

import "strings"

// Format is the rendered output kind for the virtual backend.
type Format string

const (
	FormatPNG  Format = "png"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// ParseFormat normalizes a configured output format, defaulting to png.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF
	case FormatJSON:
		return FormatJSON
	default:
		return FormatPNG
	}
}

// Ext is the file extension used for saved artifacts of this format.
func (f Format) Ext() string { return string(f) }

// ContentType is the MIME type requested from and served for this format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatJSON:
		return "application/json"
	default:
		return "image/png"
	}
}
