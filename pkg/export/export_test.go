package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekDataset() Dataset {
	return Dataset{
		Title:    "Jadwal X-IPA-1",
		Subtitle: "Semester Ganjil 2026/2027",
		Headers:  []string{"Period", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		Rows: []map[string]string{
			{"Period": "1", "Mon": "Flag Ceremony", "Tue": "Matematika (Budi Santoso)"},
			{"Period": "2", "Mon": "Bahasa Indonesia, Sastra", "Sat": "Class Meeting"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())
	assert.Equal(t, "pdf", f.Extension())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRenderQuotesAndOrdersColumns(t *testing.T) {
	out, err := Render(FormatCSV, weekDataset())
	require.NoError(t, err)
	assert.Equal(t, "Period,Mon,Tue,Wed,Thu,Fri,Sat\n"+
		"1,Flag Ceremony,Matematika (Budi Santoso),,,,\n"+
		"2,\"Bahasa Indonesia, Sastra\",,,,,Class Meeting\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := Render(FormatPDF, weekDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = NewPDFExporter().Render(Dataset{Title: "empty"})
	assert.Error(t, err)
}
