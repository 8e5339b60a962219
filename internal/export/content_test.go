package export_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pwexport/internal/export"
	"pwexport/internal/formatter"
	"pwexport/internal/models"
)

var _ formatter.Content = (*export.Content)(nil)

func sampleResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		Entries: []models.Entry{
			{
				Title:          "https://bank.example",
				SiteURL:        "https://bank.example",
				Username:       "alice",
				Password:       `p,w "1"`,
				AdditionalURLs: []string{"https://m.bank.example"},
			},
			{Title: "https://mail.example", SiteURL: "https://mail.example", Username: "bob", Password: "x"},
		},
		FailedRowCount: 1,
		StableCount:    3,
		Visited:        3,
	}
}

func TestContent_ToCSV(t *testing.T) {
	t.Parallel()

	out, err := export.NewContent("vault", sampleResult()).ToCSV()
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		`Title,Login URL,Login Username,Login Password,Additional URLs`,
		`https://bank.example,https://bank.example,alice,"p,w ""1""",https://m.bank.example`,
		`https://mail.example,https://mail.example,bob,x,`,
	}, "\n"), out)
}

func TestContent_ToJSON(t *testing.T) {
	t.Parallel()

	raw, err := export.NewContent("vault", sampleResult()).ToJSON()
	require.NoError(t, err)

	var got struct {
		Source         string `json:"source"`
		FailedRowCount int    `json:"failedRowCount"`
		Entries        []struct {
			Title          string   `json:"title"`
			AdditionalURLs []string `json:"additionalUrls"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "vault", got.Source)
	assert.Equal(t, 1, got.FailedRowCount)
	require.Len(t, got.Entries, 2)
	assert.NotNil(t, got.Entries[1].AdditionalURLs)
	assert.Empty(t, got.Entries[1].AdditionalURLs)
}

func TestContent_ToHTMLEscapes(t *testing.T) {
	t.Parallel()

	res := &models.ExtractionResult{Entries: []models.Entry{{Title: "<script>", Password: "a&b"}}}
	out, err := export.NewContent("v", res).ToHTML()
	require.NoError(t, err)

	assert.Contains(t, out, "<th>Login Password</th>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "a&amp;b")
	assert.NotContains(t, out, "<script>")
}

func TestContent_ToMarkdown(t *testing.T) {
	t.Parallel()

	out, err := export.NewContent("vault", sampleResult()).ToMarkdown()
	require.NoError(t, err)

	assert.Contains(t, out, "Logins: vault")
	assert.Contains(t, out, "|")
	assert.Contains(t, out, "Login Username")
	assert.Contains(t, out, "https://mail.example")
}

func TestContent_ToText(t *testing.T) {
	t.Parallel()

	out, err := export.NewContent("vault", sampleResult()).ToText()
	require.NoError(t, err)

	assert.Contains(t, out, "Logins: vault")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "https://m.bank.example")
}

func TestContent_NilResult(t *testing.T) {
	t.Parallel()

	out, err := export.NewContent("vault", nil).ToCSV()
	require.NoError(t, err)
	assert.Equal(t, "Title,Login URL,Login Username,Login Password,Additional URLs", out)
}
