// Package tabular parses delimited schedule tables into named rows.
//
// The format is comma-separated text with a header line. A field may be
// wrapped in double quotes to protect interior commas; a quote character
// toggles the in-quotes state and is never an escape for another quote.
// Embedded "" sequences are not supported, matching the feeds this
// pipeline actually consumes.
package tabular

import "strings"

// Row is one parsed record. Header order from the source line is preserved.
type Row struct {
	headers []string
	values  map[string]string
}

// Get returns the value for the named column, or "" if the column is absent.
func (r Row) Get(name string) string {
	return r.values[name]
}

// Has reports whether the named column exists in this row's header set.
func (r Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Headers returns the column names in source order.
func (r Row) Headers() []string {
	return r.headers
}

// Parse turns raw table text into rows keyed by header name.
// Blank lines are skipped entirely; blank or header-only input yields nil.
// Values are always strings, with surrounding quotes stripped.
func Parse(text string) []Row {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return nil
	}

	headers := splitLine(lines[0])
	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitLine(line)
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(fields) {
				values[h] = fields[i]
			} else {
				values[h] = ""
			}
		}
		rows = append(rows, Row{headers: headers, values: values})
	}
	return rows
}

// splitLine splits on commas outside quotes. A double quote flips the
// in-quotes state; surrounding quotes are stripped from each field.
func splitLine(line string) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inQuotes = !inQuotes
			field.WriteByte(c)
		case c == ',' && !inQuotes:
			fields = append(fields, trimQuotes(field.String()))
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}
	fields = append(fields, trimQuotes(field.String()))
	return fields
}

// trimQuotes strips one leading and one trailing double quote, if present.
func trimQuotes(s string) string {
	if strings.HasPrefix(s, `"`) {
		s = s[1:]
	}
	if strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1]
	}
	return s
}
