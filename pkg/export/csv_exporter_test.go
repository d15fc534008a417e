package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"Student", "Score"},
		Rows: []map[string]string{
			{"Student": "Arnold", "Score": "85"},
			{"Student": "Phoebe"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "\xef\xbb\xbfStudent,Score\r\nArnold,85\r\nPhoebe,\r\n", string(out))
}

func TestCSVExporterEscapesFormulaCells(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"Feedback"},
		Rows: []map[string]string{
			{"Feedback": "=HYPERLINK(\"http://evil\")"},
			{"Feedback": "plain remark"},
		},
	})
	require.NoError(t, err)
	require.Contains(t, string(out), `"'=HYPERLINK(""http://evil"")"`)
	require.Contains(t, string(out), "plain remark")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}
