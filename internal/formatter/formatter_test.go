package formatter_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pwexport/internal/formatter"
)

type fakeContent struct{ jsonErr error }

func (fakeContent) ToHTML() (string, error)     { return "<p>html</p>", nil }
func (fakeContent) ToText() (string, error)     { return "text", nil }
func (fakeContent) ToMarkdown() (string, error) { return "# md", nil }
func (f fakeContent) ToJSON() ([]byte, error)   { return []byte(`{"a":1}`), f.jsonErr }
func (fakeContent) ToCSV() (string, error)      { return "a,b", nil }

func TestFormat_Dispatch(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"csv":      "a,b",
		"json":     `{"a":1}`,
		"markdown": "# md",
		"text":     "text",
		"HTML":     "<p>html</p>",
	}
	for format, want := range tests {
		got, err := formatter.Format(fakeContent{}, format)
		require.NoError(t, err, format)
		assert.Equal(t, want, got, format)
	}
}

func TestFormat_Errors(t *testing.T) {
	t.Parallel()

	_, err := formatter.Format(fakeContent{}, "xml")
	assert.Error(t, err)

	_, err = formatter.Format(fakeContent{jsonErr: errors.New("boom")}, "json")
	assert.Error(t, err)
}

func TestInferFromExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "csv", formatter.InferFromExtension("/tmp/out.CSV"))
	assert.Equal(t, "markdown", formatter.InferFromExtension("report.md"))
	assert.Equal(t, "text", formatter.InferFromExtension("x.txt"))
	assert.Equal(t, "", formatter.InferFromExtension("noext"))
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, formatter.Valid("Markdown"))
	assert.False(t, formatter.Valid("yaml"))
}
