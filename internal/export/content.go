// Package export renders an extraction result in the supported output formats.
package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/jedib0t/go-pretty/v6/table"

	"pwexport/internal/csvenc"
	"pwexport/internal/models"
)

// Content holds an extraction result and implements formatter.Content.
type Content struct {
	source string
	result *models.ExtractionResult
}

// NewContent creates a Content. source names where the entries came from
// and is only used in headings.
func NewContent(source string, result *models.ExtractionResult) *Content {
	if result == nil {
		result = &models.ExtractionResult{}
	}
	return &Content{source: source, result: result}
}

// ToCSV returns the CSV document, header first.
func (c *Content) ToCSV() (string, error) {
	return csvenc.EncodeDocument(c.result.Entries), nil
}

// ToJSON returns the entries and the extraction counters.
func (c *Content) ToJSON() ([]byte, error) {
	entries := make([]models.Entry, len(c.result.Entries))
	for i, e := range c.result.Entries {
		if e.AdditionalURLs == nil {
			e.AdditionalURLs = []string{}
		}
		entries[i] = e
	}
	return json.MarshalIndent(struct {
		Source         string         `json:"source"`
		Entries        []models.Entry `json:"entries"`
		FailedRowCount int            `json:"failedRowCount"`
		StableCount    int            `json:"stableCount"`
		Visited        int            `json:"visited"`
	}{
		Source:         c.source,
		Entries:        entries,
		FailedRowCount: c.result.FailedRowCount,
		StableCount:    c.result.StableCount,
		Visited:        c.result.Visited,
	}, "", "  ")
}

// ToHTML returns the entries as an HTML table.
func (c *Content) ToHTML() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>Logins: %s</h1>\n", html.EscapeString(c.source)))
	sb.WriteString(fmt.Sprintf("<p>%d entries, %d rows failed</p>\n", len(c.result.Entries), c.result.FailedRowCount))
	sb.WriteString("<table>\n<thead>\n<tr>")
	for _, h := range csvenc.Header {
		sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	sb.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, e := range c.result.Entries {
		sb.WriteString("<tr>")
		for _, cell := range csvenc.Record(e) {
			sb.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</tbody>\n</table>\n")
	return sb.String(), nil
}

// ToMarkdown converts the HTML rendering to Markdown.
func (c *Content) ToMarkdown() (string, error) {
	h, err := c.ToHTML()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())

	markdown, err := converter.ConvertString(h)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return markdown, nil
}

// ToText returns the entries as a plain text table.
func (c *Content) ToText() (string, error) {
	t := table.NewWriter()
	t.SetTitle("Logins: " + c.source)

	header := table.Row{}
	for _, h := range csvenc.Header {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, e := range c.result.Entries {
		row := table.Row{}
		for _, cell := range csvenc.Record(e) {
			row = append(row, cell)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "", "", "entries", len(c.result.Entries)})
	t.AppendFooter(table.Row{"", "", "", "failed rows", c.result.FailedRowCount})
	return t.Render(), nil
}
