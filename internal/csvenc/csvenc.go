// Package csvenc encodes extracted logins as CSV.
//
// The quoting rule is broader than RFC 4180: a cell is quoted when it
// contains a comma, a quote, a line break or a space. Importers of the
// files this tool produces depend on the space rule, so keep it.
package csvenc

import (
	"strings"

	"pwexport/internal/models"
)

// Header is the fixed first row of every document.
var Header = []string{"Title", "Login URL", "Login Username", "Login Password", "Additional URLs"}

// additionalURLSep joins multiple additional URLs inside the last cell.
const additionalURLSep = ","

// EncodeCell escapes a single cell value.
func EncodeCell(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `"`, `""`)
	if strings.ContainsAny(s, ", \"\r\n") {
		return `"` + s + `"`
	}
	return s
}

// EncodeRow escapes and joins the cells of one row.
func EncodeRow(cells []string) string {
	encoded := make([]string, len(cells))
	for i, c := range cells {
		encoded[i] = EncodeCell(c)
	}
	return strings.Join(encoded, ",")
}

// Encode joins rows with a single line feed. No trailing newline is written.
func Encode(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = EncodeRow(r)
	}
	return strings.Join(lines, "\n")
}

// Record converts an entry to its five cells.
func Record(e models.Entry) []string {
	return []string{
		e.Title,
		e.SiteURL,
		e.Username,
		e.Password,
		strings.Join(e.AdditionalURLs, additionalURLSep),
	}
}

// EncodeDocument encodes entries as a CSV document. The header line is
// written verbatim; only data rows go through the cell rule.
func EncodeDocument(entries []models.Entry) string {
	doc := Document(entries)
	header := strings.Join(doc[0], ",")
	if len(doc) == 1 {
		return header
	}
	return header + "\n" + Encode(doc[1:])
}

// Document builds the rows of a CSV document, header first.
func Document(entries []models.Entry) [][]string {
	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, e := range entries {
		rows = append(rows, Record(e))
	}
	return rows
}
