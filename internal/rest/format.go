package rest

import "strings"

// Format is the output encoding a request asks for with its dot-suffix.
type Format int

const (
	FormatUndefined Format = iota
	FormatBinary
	FormatHex
	FormatJSON
)

var formatNames = []struct {
	format Format
	suffix string
}{
	{FormatUndefined, ""},
	{FormatBinary, "bin"},
	{FormatHex, "hex"},
	{FormatJSON, "json"},
}

func (f Format) String() string {
	for _, n := range formatNames {
		if n.format == f && n.suffix != "" {
			return n.suffix
		}
	}
	return "undefined"
}

// ParseDataFormat splits s at its last '.' into the parameter and the
// requested format. Unknown suffixes give FormatUndefined but are still cut
// off the parameter.
func ParseDataFormat(s string) (string, Format) {
	pos := strings.LastIndexByte(s, '.')
	if pos < 0 {
		return s, FormatUndefined
	}
	param, suffix := s[:pos], s[pos+1:]
	for _, n := range formatNames {
		if n.suffix == suffix {
			return param, n.format
		}
	}
	return param, FormatUndefined
}

// availableFormats lists formats the way error messages show them, e.g.
// ".bin, .hex".
func availableFormats(formats ...Format) string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, "."+f.String())
	}
	return strings.Join(names, ", ")
}

var allFormats = []Format{FormatBinary, FormatHex, FormatJSON}

// supports reports whether f is one of the formats an endpoint serves.
func supports(f Format, formats []Format) bool {
	for _, ok := range formats {
		if f == ok {
			return true
		}
	}
	return false
}
